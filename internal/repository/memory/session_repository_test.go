package memory

import (
	"context"
	"os"
	"testing"
	"time"

	"socialsync-be/pkg/store"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(id string) *store.Session {
	s := &store.Session{ID: id, Phase: store.PhaseGathering, Seen: store.SeenSet{}}
	s.Append(store.RoleSystem, "instructions", time.Now())
	s.Seen.Add("fp-1")
	return s
}

func TestSessionRepositoryIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Hour, time.Minute)

	s := sampleSession("a")
	require.NoError(t, repo.Save(ctx, s))

	s.Seen.Add("fp-2")
	s.Append(store.RoleUser, "hi", time.Now())

	got, found, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, got.Seen, 1)
	assert.Len(t, got.Turns, 1)

	got.Phase = store.PhaseDone
	again, _, _ := repo.Get(ctx, "a")
	assert.Equal(t, store.PhaseGathering, again.Phase)
}

func TestSessionRepositoryDeleteAndExpiry(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(30*time.Millisecond, 10*time.Millisecond)

	evicted := make(chan string, 2)
	repo.OnEvicted(func(id string) { evicted <- id })

	require.NoError(t, repo.Save(ctx, sampleSession("gone")))
	require.NoError(t, repo.Delete(ctx, "gone"))
	_, found, _ := repo.Get(ctx, "gone")
	assert.False(t, found)

	require.NoError(t, repo.Save(ctx, sampleSession("idle")))
	assert.Eventually(t, func() bool {
		_, found, _ := repo.Get(ctx, "idle")
		return !found
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "gone", <-evicted)
}

func TestRedisSessionRepository(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx := context.Background()
	repo := NewRedisSessionRepository(rdb, time.Minute)

	s := sampleSession("redis-test")
	s.Tribe = "Creative"
	require.NoError(t, repo.Save(ctx, s))
	defer repo.Delete(ctx, s.ID)

	got, found, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Creative", got.Tribe)
	assert.True(t, got.Seen.Has("fp-1"))
	assert.Equal(t, "instructions", got.Turns[0].Content)

	require.NoError(t, repo.Delete(ctx, s.ID))
	_, found, err = repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, found)
}
