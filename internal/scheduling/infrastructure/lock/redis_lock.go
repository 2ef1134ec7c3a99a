// Package lock provides a Redis-backed reservation lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

const keyPrefix = "slotwise:"

// RedisLock implements domain.ReservationLock with redsync. The caller's
// token is the mutex value, so a release only succeeds for the holder.
type RedisLock struct {
	rs *redsync.Redsync
}

// NewRedisLock creates a lock backed by a single Redis client.
func NewRedisLock(client redis.UniversalClient) *RedisLock {
	return &RedisLock{rs: redsync.New(goredis.NewPool(client))}
}

// Acquire tries once to take the lock.
func (l *RedisLock) Acquire(ctx context.Context, key domain.LockKey, token string, ttl time.Duration) (bool, error) {
	mutex := l.rs.NewMutex(keyPrefix+key.String(),
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
		redsync.WithGenValueFunc(func() (string, error) { return token, nil }),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire reservation lock %s: %w", key, err)
	}
	return true, nil
}

// Release unlocks the mutex if it is still held under token.
func (l *RedisLock) Release(ctx context.Context, key domain.LockKey, token string) error {
	mutex := l.rs.NewMutex(keyPrefix+key.String(), redsync.WithValue(token))
	if _, err := mutex.UnlockContext(ctx); err != nil && !isContention(err) {
		return fmt.Errorf("failed to release reservation lock %s: %w", key, err)
	}
	return nil
}

// redsync reports a held or foreign lock through several error shapes.
func isContention(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) || errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") ||
		strings.Contains(msg, "failed to acquire lock") ||
		strings.Contains(msg, "already expired")
}
