package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"socialsync-be/internal/constant"
	"socialsync-be/internal/dto"
	"socialsync-be/internal/observability"
	"socialsync-be/internal/pkg/logger"
	"socialsync-be/pkg/events"
	"socialsync-be/pkg/llm"
	"socialsync-be/pkg/rag/executor"
	"socialsync-be/pkg/rag/prompt"
	"socialsync-be/pkg/rag/record"
	"socialsync-be/pkg/rag/response"
	"socialsync-be/pkg/rag/search"
	"socialsync-be/pkg/rag/session"
	"socialsync-be/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrTurnFailed marks a turn that failed on the generation or search service.
	// The session is left as it was before the turn and the message can be resent.
	ErrTurnFailed      = errors.New("turn failed")
	ErrSessionNotFound = errors.New("session not found")
)

// TurnError reports which external call failed a turn.
type TurnError struct {
	Stage string
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTurnFailed, e.Stage, e.Err)
}

func (e *TurnError) Unwrap() []error {
	return []error{ErrTurnFailed, e.Err}
}

func (e *TurnError) Retryable() bool {
	return true
}

type IChatbotService interface {
	Chat(ctx context.Context, request *dto.ChatRequest) (*dto.ChatResponse, error)
	Reset(ctx context.Context, request *dto.ResetRequest) (*dto.ResetResponse, error)
	Snapshot(ctx context.Context, sessionId string) (*dto.SessionSnapshotResponse, error)
	Greeting(ctx context.Context) *dto.GreetingResponse
}

type chatbotService struct {
	sessionManager   *session.Manager
	pipelineExecutor *executor.PipelineExecutor
	publisherService IPublisherService
	eventPublisher   events.Publisher
	metrics          *observability.Metrics
	logger           logger.ILogger
	flow             string
	now              func() time.Time
}

func NewChatbotService(
	sessionManager *session.Manager,
	pipelineExecutor *executor.PipelineExecutor,
	publisherService IPublisherService,
	eventPublisher events.Publisher,
	metrics *observability.Metrics,
	logger logger.ILogger,
) IChatbotService {
	flow := constant.ChatFlowStandard
	if sessionManager.AssessmentFirst() {
		flow = constant.ChatFlowAssessment
	}
	if publisherService == nil {
		publisherService = NewNopPublisherService()
	}
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &chatbotService{
		sessionManager:   sessionManager,
		pipelineExecutor: pipelineExecutor,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		metrics:          metrics,
		logger:           logger,
		flow:             flow,
		now:              time.Now,
	}
}

func (c *chatbotService) Chat(ctx context.Context, request *dto.ChatRequest) (*dto.ChatResponse, error) {
	started := c.now()
	ctx, span := otel.Tracer("chatbot").Start(ctx, "chatbot.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", request.SessionId))

	unlock, err := c.sessionManager.Lock(ctx, request.SessionId)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer unlock()

	sess, created, err := c.sessionManager.GetOrCreate(ctx, request.SessionId)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if created {
		c.metrics.SessionLifecycle.WithLabelValues("created").Inc()
		c.publishEvent(ctx, events.SessionCreated(sess.ID, sess.ArchiveID, c.flow, started))
	}

	if sess.Phase == store.PhaseDone {
		res := executor.Completed()
		c.metrics.ObserveTurn(res.Outcome, started)
		return toChatResponse(res), nil
	}

	committed := len(sess.Turns)
	c.pipelineExecutor.AppendUser(sess, request.Message)

	// The pipeline works on a copy; the stored session only changes when the turn succeeds.
	staged := sess.Clone()
	res, err := c.pipelineExecutor.Execute(ctx, staged)

	// A client that went away mid-turn must not keep the commit from landing.
	commitCtx := context.WithoutCancel(ctx)
	if err != nil {
		stage := failedStage(err)
		c.metrics.TurnFailures.WithLabelValues(stage).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		c.logger.Error("Chatbot", "Turn failed", map[string]interface{}{
			"session_id": sess.ID,
			"stage":      stage,
			"error":      err.Error(),
		})

		if saveErr := c.sessionManager.Save(commitCtx, sess); saveErr != nil {
			return nil, fmt.Errorf("save session: %w", saveErr)
		}
		c.archive(commitCtx, sess, committed, nil)
		return nil, &TurnError{Stage: stage, Err: err}
	}

	if err := c.sessionManager.Save(commitCtx, staged); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.archive(commitCtx, staged, committed, res.Events)
	c.afterTurn(commitCtx, staged, res)

	span.SetAttributes(
		attribute.String("turn.outcome", res.Outcome),
		attribute.String("session.phase", staged.Phase),
		attribute.Int("turn.events", len(res.Events)),
	)
	c.metrics.ObserveTurn(res.Outcome, started)

	return toChatResponse(res), nil
}

func (c *chatbotService) afterTurn(ctx context.Context, sess *store.Session, res *executor.ExecutionResult) {
	if res.Retrieval != nil {
		c.metrics.RetrievalDepth.Observe(float64(res.Retrieval.Depth))
		if res.Retrieval.Fallback {
			c.metrics.RetrievalFallbacks.Inc()
		}
		c.metrics.EventsSurfaced.Add(float64(len(res.Events)))
		c.publishEvent(ctx, events.SearchExecuted(sess.ID, res.Query, len(res.Events), res.Retrieval.Depth, res.Retrieval.Fallback, c.now()))
	}
	if res.Outcome == executor.OutcomeConclude {
		c.metrics.SessionLifecycle.WithLabelValues("completed").Inc()
		c.publishEvent(ctx, events.MissionCompleted(sess.ID, sess.Pages, c.now()))
	}
}

func (c *chatbotService) Reset(ctx context.Context, request *dto.ResetRequest) (*dto.ResetResponse, error) {
	unlock, err := c.sessionManager.Lock(ctx, request.SessionId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := c.sessionManager.Reset(ctx, request.SessionId)
	if err != nil {
		return nil, err
	}
	c.metrics.SessionLifecycle.WithLabelValues("reset").Inc()
	c.publishEvent(ctx, events.SessionReset(sess.ID, sess.ArchiveID, c.now()))

	return &dto.ResetResponse{
		Status:    "reset",
		SessionId: sess.ID,
	}, nil
}

func (c *chatbotService) Snapshot(ctx context.Context, sessionId string) (*dto.SessionSnapshotResponse, error) {
	sess, found, err := c.sessionManager.Find(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	turns := make([]dto.ChatTurnDTO, 0, len(sess.Turns))
	for _, t := range sess.Turns {
		if prompt.IsBookkeeping(t) {
			continue
		}
		turns = append(turns, dto.ChatTurnDTO{
			Role:      t.Role,
			Text:      t.Content,
			CreatedAt: t.CreatedAt,
		})
	}

	return &dto.SessionSnapshotResponse{
		SessionId: sess.ID,
		Phase:     sess.Phase,
		Tribe:     sess.Tribe,
		SeenCount: len(sess.Seen),
		Pages:     sess.Pages,
		LastQuery: sess.LastQuery,
		Turns:     turns,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}, nil
}

func (c *chatbotService) Greeting(ctx context.Context) *dto.GreetingResponse {
	return &dto.GreetingResponse{
		Text: response.Greeting(c.flow),
		Flow: c.flow,
	}
}

// archive publishes the turns appended since committed. The events of the turn are
// attached to its final assistant turn.
func (c *chatbotService) archive(ctx context.Context, sess *store.Session, committed int, shown []record.Event) {
	if committed >= len(sess.Turns) {
		return
	}

	msg := dto.ArchiveTurnsMessage{
		SessionKey: sess.ID,
		ArchiveId:  sess.ArchiveID,
		Flow:       c.flow,
		Phase:      sess.Phase,
		Tribe:      sess.Tribe,
	}
	last := len(sess.Turns) - 1
	for seq := committed; seq <= last; seq++ {
		t := sess.Turns[seq]
		turn := dto.ArchivedTurnDTO{
			Seq:       seq,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		}
		if seq == last && t.Role == store.RoleAssistant {
			turn.Events = shown
		}
		msg.Turns = append(msg.Turns, turn)
	}

	payload, err := json.Marshal(msg)
	if err == nil {
		err = c.publisherService.Publish(ctx, payload)
	}
	// The archive is auxiliary: a lost batch never fails the turn.
	if err != nil {
		c.logger.Warn("Chatbot", "Failed to publish archive batch", map[string]interface{}{
			"session_id": sess.ID,
			"turns":      len(msg.Turns),
			"error":      err.Error(),
		})
	}
}

func (c *chatbotService) publishEvent(ctx context.Context, evt events.Event) {
	if err := c.eventPublisher.Publish(ctx, evt); err != nil {
		c.logger.Warn("Chatbot", "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}

func failedStage(err error) string {
	switch {
	case errors.Is(err, llm.ErrGeneration):
		return "generation"
	case errors.Is(err, search.ErrSearch):
		return "search"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func toChatResponse(res *executor.ExecutionResult) *dto.ChatResponse {
	evts := res.Events
	if evts == nil {
		evts = []record.Event{}
	}
	return &dto.ChatResponse{
		Text:            res.Text,
		Events:          evts,
		MissionComplete: res.MissionComplete,
	}
}
