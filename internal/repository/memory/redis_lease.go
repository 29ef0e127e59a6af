package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "socialsync:lease:"

// ErrLeaseLost means the lease expired and may now belong to someone else.
var ErrLeaseLost = errors.New("session lease lost")

var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease hands out per-session turn leases shared by every API instance.
type RedisLease struct {
	rdb *redis.Client
}

func NewRedisLease(rdb *redis.Client) *RedisLease {
	return &RedisLease{rdb: rdb}
}

func (r *RedisLease) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, leaseKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx lease: %w", err)
	}
	return ok, nil
}

// Release deletes the lease only while token still holds it.
func (r *RedisLease) Release(ctx context.Context, key, token string) error {
	n, err := releaseLease.Run(ctx, r.rdb, []string{leaseKeyPrefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release lease: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
