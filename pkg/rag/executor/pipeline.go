package executor

import (
	"context"
	"strings"
	"time"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/pkg/llm"
	"socialsync-be/pkg/rag/classifier"
	"socialsync-be/pkg/rag/prompt"
	"socialsync-be/pkg/rag/protocol"
	"socialsync-be/pkg/rag/record"
	"socialsync-be/pkg/rag/response"
	"socialsync-be/pkg/rag/retrieval"
	"socialsync-be/pkg/rag/state"
	"socialsync-be/pkg/store"
)

// Outcome names what a turn ended up doing. Decision actions plus the assessment steps.
const (
	OutcomePassthrough   = "passthrough"
	OutcomeAskClarifying = "ask_clarifying"
	OutcomeSearch        = "search"
	OutcomeExhausted     = "exhausted"
	OutcomeConclude      = "conclude"
	OutcomeCompleted     = "completed"
	OutcomeAssessment    = "assessment"
	OutcomeClassified    = "classified"
)

// ExecutionResult is what one user turn produced.
type ExecutionResult struct {
	Text            string
	Events          []record.Event
	MissionComplete bool

	Outcome string
	Query   string
	// Retrieval is set when a search ran
	Retrieval *retrieval.Result
	// Tribe is set on the turn that classified the user
	Tribe string
	// Slot is set when a clarifying question was asked
	Slot protocol.Slot
}

// PipelineExecutor runs one user turn against a session: generation, decision,
// retrieval and the follow-up generation.
type PipelineExecutor struct {
	llmProvider  llm.LLMProvider
	protocol     *protocol.Protocol
	engine       *retrieval.Engine
	classifier   *classifier.Classifier
	stateManager *state.Manager
	steering     bool
	logger       logger.ILogger
	now          func() time.Time
}

func NewPipelineExecutor(
	llmProvider llm.LLMProvider,
	proto *protocol.Protocol,
	engine *retrieval.Engine,
	classifier *classifier.Classifier,
	stateManager *state.Manager,
	steering bool,
	logger logger.ILogger,
) *PipelineExecutor {
	return &PipelineExecutor{
		llmProvider:  llmProvider,
		protocol:     proto,
		engine:       engine,
		classifier:   classifier,
		stateManager: stateManager,
		steering:     steering,
		logger:       logger,
		now:          time.Now,
	}
}

// AppendUser records the user's message. A message identical to an unanswered last
// user turn is a retry and is not appended twice. Reports whether a turn was added.
func (p *PipelineExecutor) AppendUser(session *store.Session, message string) bool {
	if last := session.LastTurn(); last != nil && last.Role == store.RoleUser && last.Content == message {
		p.logger.Debug("Protocol", "Retry of unanswered message", map[string]interface{}{
			"session_id": session.ID,
		})
		return false
	}
	session.Append(store.RoleUser, message, p.now())
	return true
}

// Completed is the reply for a session that already concluded.
func Completed() *ExecutionResult {
	return &ExecutionResult{Text: response.Completion(), MissionComplete: true, Outcome: OutcomeCompleted}
}

// Execute answers the latest user turn of session and mutates session in place.
// On error the session must be discarded by the caller: nothing about it is
// guaranteed beyond the user turn it already held.
func (p *PipelineExecutor) Execute(ctx context.Context, session *store.Session) (*ExecutionResult, error) {
	if state.IsTerminal(session) {
		return Completed(), nil
	}
	if session.Phase == store.PhaseAssessment {
		return p.assess(ctx, session), nil
	}

	utterances := session.UserUtterances()
	missing := p.protocol.Missing(utterances)

	history := toMessages(session.Turns)
	if p.steering {
		// turn scoped, never stored
		history = append(history, llm.Message{Role: store.RoleSystem, Content: prompt.SteeringInstruction(missing)})
	}

	generated, err := p.llmProvider.Chat(ctx, history)
	if err != nil {
		p.logger.Error("Protocol", "Generation failed", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		return nil, err
	}

	decision := p.protocol.Decide(generated, utterances)
	p.stateManager.TrackSlots(session, len(missing))

	p.logger.Info("Protocol", "Decision", map[string]interface{}{
		"session_id":   session.ID,
		"action":       decision.Action.String(),
		"query":        decision.Query,
		"missing":      len(missing),
		"continuation": decision.Continuation,
		"phase":        session.Phase,
	})

	switch decision.Action {
	case protocol.Conclude:
		if err := p.stateManager.Advance(session, store.PhaseDone); err != nil {
			return nil, err
		}
		text := response.Completion()
		session.Append(store.RoleAssistant, text, p.now())
		return &ExecutionResult{Text: text, MissionComplete: true, Outcome: OutcomeConclude}, nil

	case protocol.AskClarifying:
		if err := p.stateManager.Advance(session, store.PhaseGathering); err != nil {
			return nil, err
		}
		text := response.ClarifyingQuestion(decision.Slot)
		session.Append(store.RoleAssistant, text, p.now())
		return &ExecutionResult{Text: text, Outcome: OutcomeAskClarifying, Slot: decision.Slot, Query: decision.Query}, nil

	case protocol.Search:
		return p.search(ctx, session, decision)
	}

	text := decision.Text
	session.Append(store.RoleAssistant, text, p.now())
	return &ExecutionResult{Text: text, Outcome: OutcomePassthrough}, nil
}

func (p *PipelineExecutor) search(ctx context.Context, session *store.Session, decision protocol.Decision) (*ExecutionResult, error) {
	query := withKeywords(decision.Query, classifier.Keywords(session.Tribe))

	res, err := p.engine.Search(ctx, query, session.Seen)
	if err != nil {
		return nil, err
	}
	session.LastQuery = query
	if err := p.stateManager.Advance(session, store.PhaseSearched); err != nil {
		return nil, err
	}

	result := &ExecutionResult{Outcome: OutcomeSearch, Query: query, Retrieval: res, Events: res.Events}

	if len(res.Events) == 0 {
		result.Outcome = OutcomeExhausted
		result.Text = response.Exhausted()
		session.Append(store.RoleAssistant, result.Text, p.now())
		return result, nil
	}

	firstPage := session.Pages == 0
	session.Pages++
	session.Append(store.RoleAssistant, prompt.SearchExecuted(query), p.now())
	session.Append(store.RoleSystem, prompt.FollowUpNote(len(res.Events), firstPage), p.now())

	followUp, err := p.llmProvider.Chat(ctx, toMessages(session.Turns))
	if err != nil {
		p.logger.Error("Protocol", "Follow-up generation failed", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		return nil, err
	}
	// markers in the follow-up stay in history for the next turn but are never shown
	session.Append(store.RoleAssistant, followUp, p.now())

	result.Text = protocol.Strip(followUp)
	if result.Text == "" {
		result.Text = response.FollowUpFallback()
	}
	return result, nil
}

func (p *PipelineExecutor) assess(ctx context.Context, session *store.Session) *ExecutionResult {
	if len(session.UserUtterances()) < 2 {
		text := response.AssessmentFollowUp()
		session.Append(store.RoleAssistant, text, p.now())
		return &ExecutionResult{Text: text, Outcome: OutcomeAssessment}
	}

	tribe, err := p.classifier.Classify(ctx, session.Turns)
	if err == nil {
		err = p.stateManager.Classified(session, tribe)
	}
	if err != nil {
		p.logger.Warn("Classifier", "Classification deferred", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		text := response.AssessmentRetry()
		session.Append(store.RoleAssistant, text, p.now())
		return &ExecutionResult{Text: text, Outcome: OutcomeAssessment}
	}

	text := response.AssessmentDone(tribe)
	session.Append(store.RoleAssistant, text, p.now())
	return &ExecutionResult{Text: text, Outcome: OutcomeClassified, Tribe: tribe}
}

func toMessages(turns []store.Turn) []llm.Message {
	out := make([]llm.Message, len(turns))
	for i, t := range turns {
		out[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// withKeywords appends the tribe keywords the query does not mention yet.
func withKeywords(query string, keywords []string) string {
	lower := strings.ToLower(query)
	var extra []string
	for _, k := range keywords {
		if !strings.Contains(lower, strings.ToLower(k)) {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return strings.TrimSpace(query + " " + strings.Join(extra, " "))
}
