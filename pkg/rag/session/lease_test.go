package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/repository/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInstance builds a manager the way one API replica does with the redis store.
func newInstance(t *testing.T, mr *miniredis.Miniredis) *Manager {
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	locker := NewLeaseLocker(memory.NewRedisLease(rdb), time.Minute, logger.NewNopLogger())
	return NewManager(memory.NewRedisSessionRepository(rdb, time.Hour), false, logger.NewNopLogger(), WithLocker(locker))
}

func TestLeaseSerializesTurnsAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	instances := []*Manager{newInstance(t, mr), newInstance(t, mr)}

	const turns = 10
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, turns)

	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := instances[i%len(instances)]

			unlock, err := m.Lock(ctx, "shared")
			if err != nil {
				errs <- err
				return
			}
			defer unlock()

			s, _, err := m.GetOrCreate(ctx, "shared")
			if err != nil {
				errs <- err
				return
			}
			s.Seen.Add(fmt.Sprintf("fp-%d", i))
			time.Sleep(5 * time.Millisecond)
			errs <- m.Save(ctx, s)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s, found, err := instances[0].Find(ctx, "shared")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, s.Seen, turns)
	assert.False(t, mr.Exists("socialsync:lease:shared"))
}

func TestLeaseWaitHonoursCancellation(t *testing.T) {
	mr := miniredis.RunT(t)
	a, b := newInstance(t, mr), newInstance(t, mr)

	unlock, err := a.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = b.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockWait)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	unlockB, err := b.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlockB()
}
