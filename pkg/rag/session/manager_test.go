package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/repository/memory"
	"socialsync-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

func newManager(assessment bool) *Manager {
	return NewManager(memory.NewSessionRepository(time.Hour, time.Hour), assessment, logger.NewNopLogger())
}

func TestGetOrCreateSeedsSystemTurn(t *testing.T) {
	ctx := context.Background()
	m := newManager(false)

	s, created, err := m.GetOrCreate(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, s.Turns, 1)
	assert.Equal(t, store.RoleSystem, s.Turns[0].Role)
	assert.Contains(t, s.Turns[0].Content, "SEARCH_ACTION")
	assert.Equal(t, store.PhaseGathering, s.Phase)
	assert.Empty(t, s.Seen)
	assert.NotEmpty(t, s.ArchiveID)

	again, created, err := m.GetOrCreate(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.ArchiveID, again.ArchiveID)
}

func TestAssessmentFlowStartsInAssessment(t *testing.T) {
	s, _, err := newManager(true).GetOrCreate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseAssessment, s.Phase)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := newManager(false)

	a, _, _ := m.GetOrCreate(ctx, "a")
	a.Seen.Add("fp")
	a.Append(store.RoleUser, "hello", time.Now())
	require.NoError(t, m.Save(ctx, a))

	b, _, _ := m.GetOrCreate(ctx, "b")
	assert.Empty(t, b.Seen)
	assert.Len(t, b.Turns, 1)
}

func TestResetBehavesLikeNewSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(false)

	s, _, _ := m.GetOrCreate(ctx, "a")
	oldArchive := s.ArchiveID
	s.Seen.Add("fp")
	s.Tribe = "Creative"
	s.Phase = store.PhaseDone
	s.Append(store.RoleUser, "hello", time.Now())
	require.NoError(t, m.Save(ctx, s))

	fresh, err := m.Reset(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, fresh.Turns, 1)
	assert.Empty(t, fresh.Seen)
	assert.Empty(t, fresh.Tribe)
	assert.Equal(t, store.PhaseGathering, fresh.Phase)
	assert.NotEqual(t, oldArchive, fresh.ArchiveID)

	loaded, created, err := m.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fresh.ArchiveID, loaded.ArchiveID)

	_, err = m.Reset(ctx, "never-seen")
	require.NoError(t, err)
}

func TestLockSerializesOneKey(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "same")
			require.NoError(t, err)
			defer unlock()

			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
	assert.Equal(t, 0, l.Len())
}

func TestLockDifferentKeysDoNotBlock(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
}

func TestLockHonoursCancellation(t *testing.T) {
	l := NewKeyedLocker()

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockWait)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, l.Len())
}
