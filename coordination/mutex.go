// Package coordination provides the distributed primitives the rest of
// Artiller is built on: an advisory mutex with a lease, a unique work queue
// and a windowed rate limiter. All of them keep their state in Redis; none
// of them rely on in-process locking, so any number of processes can share
// them safely.
package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLease is how long a lock is held before it expires on its own.
	DefaultLease = 10 * time.Second

	// DefaultPollInterval is how often Wait re-checks the lock.
	DefaultPollInterval = 100 * time.Millisecond
)

// releaseScript deletes the lock key only while it still holds our token, so
// a lease that expired and was re-acquired by someone else is never deleted.
var releaseScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

// Mutex is an advisory per-key lock with a lease. Can be instantiated once
// for all uses or per use or anywhere in between; the key carries all state.
type Mutex struct {
	client redis.Cmdable
	key    string
}

// NewMutex creates a mutex over the given key. The key must not be written
// by anything else.
func NewMutex(client redis.Cmdable, key string) *Mutex {
	return &Mutex{client: client, key: key}
}

// TryLock attempts to acquire the lock for the lease duration. It returns
// the owner token and true on success, or "" and false if somebody else
// holds an unexpired lease. Pass lease <= 0 for DefaultLease.
func (m *Mutex) TryLock(ctx context.Context, lease time.Duration) (string, bool, error) {
	if lease <= 0 {
		lease = DefaultLease
	}

	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, m.key, token, lease).Result()
	if err != nil {
		return "", false, fmt.Errorf("mutex %s: acquire: %w", m.key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// IsLocked reports whether an unexpired lease exists, without acquiring.
func (m *Mutex) IsLocked(ctx context.Context) (bool, error) {
	n, err := m.client.Exists(ctx, m.key).Result()
	if err != nil {
		return false, fmt.Errorf("mutex %s: exists: %w", m.key, err)
	}
	return n > 0, nil
}

// Release deletes the lock if it is still held under token. It returns false
// when the lease had already expired (and possibly been re-acquired).
func (m *Mutex) Release(ctx context.Context, token string) (bool, error) {
	res, err := releaseScript.Run(ctx, m.client, []string{m.key}, token).Int()
	if err != nil {
		return false, fmt.Errorf("mutex %s: release: %w", m.key, err)
	}
	return res == 1, nil
}

// Wait polls until the lock is released or ctx is cancelled. Pass
// pollInterval <= 0 for DefaultPollInterval.
func (m *Mutex) Wait(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		locked, err := m.IsLocked(ctx)
		if err != nil {
			return err
		}
		if !locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// With runs fn while holding the lock, releasing it on every exit path. It
// returns false with a nil error if the lock could not be obtained; when fn
// runs, its error is returned alongside true.
func (m *Mutex) With(ctx context.Context, lease time.Duration, fn func(ctx context.Context) error) (bool, error) {
	token, ok, err := m.TryLock(ctx, lease)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	defer func() {
		// Release errors are not worth failing the caller over; the lease
		// expires on its own.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = m.Release(releaseCtx, token)
	}()

	return true, fn(ctx)
}
