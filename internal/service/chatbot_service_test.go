package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"socialsync-be/internal/constant"
	"socialsync-be/internal/dto"
	"socialsync-be/internal/observability"
	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/repository/memory"
	"socialsync-be/pkg/events"
	"socialsync-be/pkg/llm"
	"socialsync-be/pkg/llm/llmtest"
	"socialsync-be/pkg/rag/classifier"
	"socialsync-be/pkg/rag/executor"
	"socialsync-be/pkg/rag/protocol"
	"socialsync-be/pkg/rag/record"
	"socialsync-be/pkg/rag/response"
	"socialsync-be/pkg/rag/retrieval"
	"socialsync-be/pkg/rag/search"
	"socialsync-be/pkg/rag/session"
	"socialsync-be/pkg/rag/state"
	"socialsync-be/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var listings = []string{
	"Event: Free Jazz Picnic\nDate: Saturday\nLocation: Old Town Square\nCost: Free",
	"Event: Old Town Walking Tour\nDate: Sunday\nLocation: Old Town Gate\nCost: Free",
	"Event: Weekend Board Game Cafe\nDate: Saturday\nLocation: Old Town\nCost: Free entry",
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches []dto.ArchiveTurnsMessage
}

func (r *recordingPublisher) Publish(_ context.Context, payload []byte) error {
	var msg dto.ArchiveTurnsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, msg)
	return nil
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, evt.EventType())
	return nil
}

type fixture struct {
	service  IChatbotService
	sessions *session.Manager
	provider *llmtest.Scripted
	archive  *recordingPublisher
	events   *recordingEvents
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, assessmentFirst bool, provider *llmtest.Scripted) *fixture {
	t.Helper()
	log := logger.NewNopLogger()

	repo := memory.NewSessionRepository(time.Hour, time.Hour)
	sessions := session.NewManager(repo, assessmentFirst, log)
	engine := retrieval.NewEngine(search.NewMemoryStore(listings...), record.NewParser(record.LastWins), retrieval.DefaultPolicy(), log)
	pipeline := executor.NewPipelineExecutor(
		provider,
		protocol.NewProtocol(protocol.NewGate(), protocol.ConcludeFirst, "Event", log),
		engine,
		classifier.NewClassifier(provider, log),
		state.NewManager(log),
		true,
		log,
	)

	f := &fixture{
		sessions: sessions,
		provider: provider,
		archive:  &recordingPublisher{},
		events:   &recordingEvents{},
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
	}
	f.service = NewChatbotService(sessions, pipeline, f.archive, f.events, f.metrics, log)
	return f
}

func chat(t *testing.T, f *fixture, message string) (*dto.ChatResponse, error) {
	t.Helper()
	return f.service.Chat(context.Background(), &dto.ChatRequest{SessionId: "abc", Message: message})
}

func TestChatSearchTurn(t *testing.T) {
	f := newFixture(t, false, llmtest.New("SEARCH_ACTION: free weekend old town", "Which one?"))

	res, err := chat(t, f, "Anything free this weekend in the old town?")
	require.NoError(t, err)
	assert.Equal(t, "Which one?", res.Text)
	assert.Len(t, res.Events, 2)
	assert.False(t, res.MissionComplete)

	stored, found, err := f.sessions.Find(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.PhaseSearched, stored.Phase)
	assert.Len(t, stored.Seen, 2)

	assert.Equal(t, []string{events.TypeSessionCreated, events.TypeSearchExecuted}, f.events.types)

	require.Len(t, f.archive.batches, 1)
	batch := f.archive.batches[0]
	assert.Equal(t, stored.ArchiveID, batch.ArchiveId)
	require.Len(t, batch.Turns, 4)
	assert.Equal(t, 1, batch.Turns[0].Seq)
	assert.Equal(t, store.RoleUser, batch.Turns[0].Role)
	assert.Len(t, batch.Turns[3].Events, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Turns.WithLabelValues(executor.OutcomeSearch)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.EventsSurfaced))
}

func TestChatGenerationFailureKeepsState(t *testing.T) {
	f := newFixture(t, false, llmtest.New().Fail("timeout").Then("Tell me more about the vibe you want."))

	_, err := chat(t, f, "hello there")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTurnFailed)
	assert.ErrorIs(t, err, llm.ErrGeneration)

	var turnErr *TurnError
	require.True(t, errors.As(err, &turnErr))
	assert.True(t, turnErr.Retryable())
	assert.Equal(t, "generation", turnErr.Stage)

	stored, _, _ := f.sessions.Find(context.Background(), "abc")
	assert.Equal(t, store.PhaseGathering, stored.Phase)
	assert.Equal(t, store.RoleUser, stored.LastTurn().Role)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TurnFailures.WithLabelValues("generation")))

	res, err := chat(t, f, "hello there")
	require.NoError(t, err)
	assert.Equal(t, "Tell me more about the vibe you want.", res.Text)

	stored, _, _ = f.sessions.Find(context.Background(), "abc")
	assert.Equal(t, []string{"hello there"}, stored.UserUtterances())

	// user turn archived once by the failed attempt, the reply by the retry
	require.Len(t, f.archive.batches, 2)
	assert.Equal(t, store.RoleUser, f.archive.batches[0].Turns[0].Role)
	require.Len(t, f.archive.batches[1].Turns, 1)
	assert.Equal(t, 2, f.archive.batches[1].Turns[0].Seq)
}

func TestChatOnCompletedSession(t *testing.T) {
	f := newFixture(t, false, llmtest.New("Enjoy!\nMISSION_COMPLETE"))

	res, err := chat(t, f, "The picnic is perfect, thanks")
	require.NoError(t, err)
	assert.True(t, res.MissionComplete)
	assert.Contains(t, f.events.types, events.TypeMissionCompleted)

	res, err = chat(t, f, "are you still there?")
	require.NoError(t, err)
	assert.True(t, res.MissionComplete)
	assert.Equal(t, response.Completion(), res.Text)
	assert.Empty(t, res.Events)
	assert.Equal(t, 1, f.provider.CallCount())
}

func TestResetStartsOver(t *testing.T) {
	f := newFixture(t, false, llmtest.New("SEARCH_ACTION: free weekend old town", "Which one?"))
	_, err := chat(t, f, "Anything free this weekend in the old town?")
	require.NoError(t, err)
	before, _, _ := f.sessions.Find(context.Background(), "abc")

	res, err := f.service.Reset(context.Background(), &dto.ResetRequest{SessionId: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "reset", res.Status)
	assert.Equal(t, "abc", res.SessionId)

	after, found, _ := f.sessions.Find(context.Background(), "abc")
	require.True(t, found)
	assert.NotEqual(t, before.ArchiveID, after.ArchiveID)
	assert.Empty(t, after.Seen)
	assert.Len(t, after.Turns, 1)
	assert.Equal(t, store.PhaseGathering, after.Phase)
	assert.Contains(t, f.events.types, events.TypeSessionReset)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, false, llmtest.New("SEARCH_ACTION: free weekend old town", "Which one?"))

	_, err := f.service.Snapshot(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = chat(t, f, "Anything free this weekend in the old town?")
	require.NoError(t, err)

	snap, err := f.service.Snapshot(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseSearched, snap.Phase)
	assert.Equal(t, 2, snap.SeenCount)
	assert.Equal(t, 1, snap.Pages)
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, store.RoleUser, snap.Turns[0].Role)
	assert.Equal(t, "Which one?", snap.Turns[1].Text)
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		name            string
		assessmentFirst bool
		flow            string
	}{
		{"standard", false, constant.ChatFlowStandard},
		{"assessment", true, constant.ChatFlowAssessment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.assessmentFirst, llmtest.New())
			res := f.service.Greeting(context.Background())
			assert.Equal(t, tt.flow, res.Flow)
			assert.Equal(t, response.Greeting(tt.flow), res.Text)
		})
	}
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	provider := llmtest.New()
	provider.Fallback = "Tell me more!"
	f := newFixture(t, false, provider)

	var wg sync.WaitGroup
	for _, msg := range []string{"one", "two", "three", "four"} {
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			_, err := chat(t, f, msg)
			assert.NoError(t, err)
		}(msg)
	}
	wg.Wait()

	stored, _, _ := f.sessions.Find(context.Background(), "abc")
	require.Len(t, stored.Turns, 9)
	for i := 1; i < len(stored.Turns); i += 2 {
		assert.Equal(t, store.RoleUser, stored.Turns[i].Role)
		assert.Equal(t, store.RoleAssistant, stored.Turns[i+1].Role)
	}
}
