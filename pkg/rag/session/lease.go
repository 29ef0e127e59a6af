package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"socialsync-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Locker serializes turns on one session key.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Lease is an expiring exclusive claim on a key, shared by every API instance.
// Acquire reports false while another token holds the key. Release must only
// remove the claim when token still holds it.
type Lease interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// LeaseLocker queues turns of this instance on a KeyedLocker and then claims the
// shared lease, so at most one instance runs a turn for a key at a time.
type LeaseLocker struct {
	local  *KeyedLocker
	lease  Lease
	ttl    time.Duration
	retry  time.Duration
	logger logger.ILogger
}

// NewLeaseLocker claims leases for ttl, which must outlast the slowest turn.
func NewLeaseLocker(lease Lease, ttl time.Duration, logger logger.ILogger) *LeaseLocker {
	return &LeaseLocker{
		local:  NewKeyedLocker(),
		lease:  lease,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		logger: logger,
	}
}

func (l *LeaseLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.lease.Acquire(ctx, key, token, l.ttl)
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("acquire session lease: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, fmt.Errorf("%w: %w", ErrLockWait, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.lease.Release(releaseCtx, key, token); err != nil {
				l.logger.Warn("Session", "Failed to release session lease", map[string]interface{}{
					"session_id": key,
					"error":      err.Error(),
				})
			}
			unlockLocal()
		})
	}, nil
}
