package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/pkg/llm"
	"socialsync-be/pkg/llm/llmtest"
	"socialsync-be/pkg/rag/classifier"
	"socialsync-be/pkg/rag/prompt"
	"socialsync-be/pkg/rag/protocol"
	"socialsync-be/pkg/rag/record"
	"socialsync-be/pkg/rag/response"
	"socialsync-be/pkg/rag/retrieval"
	"socialsync-be/pkg/rag/search"
	"socialsync-be/pkg/rag/state"
	"socialsync-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalog = []string{
	"Event: Free Jazz Picnic\nDate: Saturday\nLocation: Old Town Square\nCost: Free\nDescription: Bring a blanket\nSource: https://example.com/jazz-picnic",
	"Event: Old Town Walking Tour\nDate: Sunday\nLocation: Old Town Gate\nCost: Free\nSource: https://example.com/tour",
	"Event: Weekend Board Game Cafe\nDate: Saturday\nLocation: Old Town\nCost: Free entry",
	"Event: Rooftop Salsa\nDate: Friday\nLocation: Downtown\nCost: $15",
	"Venue notes: the Old Town square is pedestrian only on weekends",
	"Event: Outdoor Climbing Meetup\nDate: Saturday\nLocation: Riverside\nCost: $20",
}

func newTestExecutor(provider llm.LLMProvider, blobs ...string) *PipelineExecutor {
	log := logger.NewNopLogger()
	engine := retrieval.NewEngine(search.NewMemoryStore(blobs...), record.NewParser(record.LastWins), retrieval.DefaultPolicy(), log)
	return NewPipelineExecutor(
		provider,
		protocol.NewProtocol(protocol.NewGate(), protocol.ConcludeFirst, "Event", log),
		engine,
		classifier.NewClassifier(provider, log),
		state.NewManager(log),
		true,
		log,
	)
}

func newSession(phase string) *store.Session {
	s := &store.Session{ID: "s1", Phase: phase, Seen: store.SeenSet{}}
	s.Append(store.RoleSystem, prompt.SystemPrompt(), time.Now())
	return s
}

func say(p *PipelineExecutor, s *store.Session, message string) (*ExecutionResult, error) {
	p.AppendUser(s, message)
	return p.Execute(context.Background(), s)
}

func TestAllSlotsGoStraightToSearch(t *testing.T) {
	provider := llmtest.New("Love that!\nSEARCH_ACTION: free weekend old town", "How do these look?")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseGathering)

	res, err := say(p, s, "I want something free this weekend in the old town")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSearch, res.Outcome)
	assert.Equal(t, store.PhaseSearched, s.Phase)
	assert.Len(t, res.Events, 2)
	assert.Len(t, s.Seen, len(res.Events))
	assert.Equal(t, "How do these look?", res.Text)
	assert.False(t, res.MissionComplete)

	roles := make([]string, len(s.Turns))
	for i, turn := range s.Turns {
		roles[i] = turn.Role
	}
	assert.Equal(t, []string{store.RoleSystem, store.RoleUser, store.RoleAssistant, store.RoleSystem, store.RoleAssistant}, roles)
	assert.Equal(t, "SEARCH_EXECUTED: free weekend old town", s.Turns[2].Content)
	assert.Equal(t, prompt.FollowUpNote(2, true), s.Turns[3].Content)

	first := provider.Calls[0]
	assert.Contains(t, first[len(first)-1].Content, "<checklist>")
	for _, turn := range s.Turns {
		assert.NotContains(t, turn.Content, "<checklist>")
	}
}

func TestContinuationOverridesSlotGate(t *testing.T) {
	provider := llmtest.New("SEARCH_ACTION: free old town", "Better?")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseSearched)
	s.Append(store.RoleUser, "hi", time.Now())
	s.Append(store.RoleAssistant, "What are you into?", time.Now())
	s.Seen.Add(record.Fingerprint(catalog[0]))
	s.Seen.Add(record.Fingerprint(catalog[1]))
	s.Pages = 1

	res, err := say(p, s, "show me more")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSearch, res.Outcome)
	require.NotEmpty(t, res.Events)
	for _, ev := range res.Events {
		assert.NotEqual(t, "Free Jazz Picnic", ev.Title)
		assert.NotEqual(t, "Old Town Walking Tour", ev.Title)
	}
	assert.Len(t, s.Seen, 2+len(res.Events))
	assert.Contains(t, s.Turns[len(s.Turns)-2].Content, "MORE events")
}

func TestMissingBudgetSuppressesSearch(t *testing.T) {
	provider := llmtest.New("On it!\nSEARCH_ACTION: jazz downtown friday")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseGathering)

	res, err := say(p, s, "Live jazz downtown on Friday")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAskClarifying, res.Outcome)
	assert.Equal(t, protocol.SlotBudget, res.Slot)
	assert.Equal(t, response.ClarifyingQuestion(protocol.SlotBudget), res.Text)
	assert.Empty(t, res.Events)
	assert.Empty(t, s.Seen)
	assert.Equal(t, store.PhaseGathering, s.Phase)
	assert.Equal(t, 1, provider.CallCount())
}

func TestPassthroughTracksSlots(t *testing.T) {
	provider := llmtest.New("Sounds great, anything else I should know?")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseGathering)

	res, err := say(p, s, "Cheap stuff in Brooklyn tonight")
	require.NoError(t, err)

	assert.Equal(t, OutcomePassthrough, res.Outcome)
	assert.Equal(t, store.PhaseReady, s.Phase)
	assert.Equal(t, "Sounds great, anything else I should know?", s.LastTurn().Content)
}

func TestGenerationFailureIsReported(t *testing.T) {
	p := newTestExecutor(llmtest.New().Fail("timeout"), catalog...)
	s := newSession(store.PhaseGathering)

	_, err := say(p, s, "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrGeneration))
}

func TestFollowUpFailureIsReported(t *testing.T) {
	provider := llmtest.New("SEARCH_ACTION: free old town weekend").Fail("rate limited")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseGathering)

	_, err := say(p, s, "Something free this weekend in the old town")
	assert.ErrorIs(t, err, llm.ErrGeneration)
}

func TestConcludeEndsSession(t *testing.T) {
	provider := llmtest.New("Have fun!\nMISSION_COMPLETE")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseSearched)

	res, err := say(p, s, "The picnic is perfect, thanks!")
	require.NoError(t, err)
	assert.True(t, res.MissionComplete)
	assert.Equal(t, response.Completion(), res.Text)
	assert.Equal(t, store.PhaseDone, s.Phase)

	res, err = say(p, s, "one more thing")
	require.NoError(t, err)
	assert.True(t, res.MissionComplete)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, provider.CallCount())
}

func TestExhaustedSearch(t *testing.T) {
	provider := llmtest.New("SEARCH_ACTION: more salsa")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseSearched)
	for _, b := range catalog {
		s.Seen.Add(record.Fingerprint(b))
	}

	res, err := say(p, s, "show me more")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, response.Exhausted(), res.Text)
	assert.Empty(t, res.Events)
	assert.Equal(t, store.PhaseSearched, s.Phase)
	assert.Equal(t, 1, provider.CallCount())
}

func TestFollowUpMarkersNeverShown(t *testing.T) {
	provider := llmtest.New("SEARCH_ACTION: free weekend old town", "Take a look!\nsearch_action: something else")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseGathering)

	res, err := say(p, s, "surprise me")
	require.NoError(t, err)
	assert.Equal(t, "Take a look!", res.Text)
	assert.False(t, protocol.ContainsMarker(res.Text))
}

func TestRetryDoesNotDuplicateUserTurn(t *testing.T) {
	p := newTestExecutor(llmtest.New(), catalog...)
	s := newSession(store.PhaseGathering)

	assert.True(t, p.AppendUser(s, "hello"))
	assert.False(t, p.AppendUser(s, "hello"))
	assert.Len(t, s.UserUtterances(), 1)

	s.Append(store.RoleAssistant, "hi!", time.Now())
	assert.True(t, p.AppendUser(s, "hello"))
	assert.Len(t, s.UserUtterances(), 2)
}

func TestAssessmentFlow(t *testing.T) {
	provider := llmtest.New(`{"tribe": "Adventurer"}`, "SEARCH_ACTION: free weekend old town", "Pick one!")
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseAssessment)

	res, err := say(p, s, "Big loud groups, always moving")
	require.NoError(t, err)
	assert.Equal(t, response.AssessmentFollowUp(), res.Text)
	assert.Equal(t, 0, provider.CallCount())

	res, err = say(p, s, "Climbing and hiking on weekends")
	require.NoError(t, err)
	assert.Equal(t, OutcomeClassified, res.Outcome)
	assert.Equal(t, "Adventurer", s.Tribe)
	assert.Equal(t, store.PhaseGathering, s.Phase)
	assert.Contains(t, res.Text, "**Adventurer**")

	res, err = say(p, s, "Anything free this weekend in the old town")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSearch, res.Outcome)
	assert.True(t, strings.HasSuffix(res.Query, "outdoor active adventure"))
}

func TestAssessmentClassificationRetry(t *testing.T) {
	provider := llmtest.New().Fail("unavailable").Then(`{"tribe": "Chill"}`)
	p := newTestExecutor(provider, catalog...)
	s := newSession(store.PhaseAssessment)

	_, _ = say(p, s, "small groups")
	res, err := say(p, s, "reading and tea")
	require.NoError(t, err)
	assert.Equal(t, response.AssessmentRetry(), res.Text)
	assert.Equal(t, store.PhaseAssessment, s.Phase)
	assert.Empty(t, s.Tribe)

	res, err = say(p, s, "maybe a quiet wine tasting")
	require.NoError(t, err)
	assert.Equal(t, OutcomeClassified, res.Outcome)
	assert.Equal(t, "Chill", s.Tribe)
}

func TestWithKeywords(t *testing.T) {
	assert.Equal(t, "jazz", withKeywords("jazz", nil))
	assert.Equal(t, "outdoor hike active adventure", withKeywords("outdoor hike", []string{"outdoor", "active", "adventure"}))
}
