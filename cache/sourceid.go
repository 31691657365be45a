package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"artiller/coordination"

	"github.com/redis/go-redis/v9"
)

func sourceIDKey(source, sourceID string) string {
	return fmt.Sprintf("source:%s:%s:article-id", source, sourceID)
}

// SourceIDs maps a (source, source-article-id) pair to the internally
// assigned article id. Resolve gives single-flight semantics across
// concurrent resolvers, system-wide: for a given pair, the compute function
// runs at most once per cache-miss episode, no matter how many processes
// race on it.
type SourceIDs struct {
	client   redis.Cmdable
	ttl      time.Duration
	lockTTL  time.Duration
	pollWait time.Duration
}

// NewSourceIDs creates the resolution cache. ttl <= 0 uses DefaultTTL.
func NewSourceIDs(client redis.Cmdable, ttl time.Duration) *SourceIDs {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SourceIDs{
		client:   client,
		ttl:      ttl,
		lockTTL:  coordination.DefaultLease,
		pollWait: coordination.DefaultPollInterval,
	}
}

// Lookup returns the cached article id for the ref, or "" if none is cached.
func (s *SourceIDs) Lookup(ctx context.Context, source, sourceID string) (string, error) {
	id, err := s.client.Get(ctx, sourceIDKey(source, sourceID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("source-id cache: get %s:%s: %w", source, sourceID, err)
	}
	return id, nil
}

// Set caches the mapping. Exposed for ingestion paths that already know the
// id; Resolve uses it internally.
func (s *SourceIDs) Set(ctx context.Context, source, sourceID, articleID string) error {
	if err := s.client.Set(ctx, sourceIDKey(source, sourceID), articleID, s.ttl).Err(); err != nil {
		return fmt.Errorf("source-id cache: set %s:%s: %w", source, sourceID, err)
	}
	return nil
}

// Resolve returns the article id for the ref, computing it under a
// distributed lock when it is not cached. compute typically checks the
// durable store first and falls back to fetching and creating the article.
//
// compute returning ("", nil) means the ref could not be resolved; that
// outcome is not cached, so a later caller will retry. If compute fails the
// lock is still released and the cache left unset, and the error propagates
// to this caller only - concurrent waiters simply find no value and take
// their own turn.
func (s *SourceIDs) Resolve(ctx context.Context, source, sourceID string, compute func(ctx context.Context) (string, error)) (string, error) {
	// fast path, no locking
	if id, err := s.Lookup(ctx, source, sourceID); err != nil || id != "" {
		return id, err
	}

	mutex := coordination.NewMutex(s.client, sourceIDKey(source, sourceID)+":mutex")

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// if another resolver is already computing, wait for it and reuse
		// its result
		locked, err := mutex.IsLocked(ctx)
		if err != nil {
			return "", err
		}
		if locked {
			if err := mutex.Wait(ctx, s.pollWait); err != nil {
				return "", err
			}
			if id, err := s.Lookup(ctx, source, sourceID); err != nil || id != "" {
				return id, err
			}
			// the other resolver produced nothing; fall through and try
			// to take the lock ourselves
		}

		token, ok, err := mutex.TryLock(ctx, s.lockTTL)
		if err != nil {
			return "", err
		}
		if !ok {
			// lost the race between IsLocked and TryLock; treat it as
			// "someone else is computing" and go around again
			log.Printf("source-id cache: lost lock race for %s:%s, waiting", source, sourceID)
			continue
		}

		id, err := s.computeLocked(ctx, mutex, token, source, sourceID, compute)
		return id, err
	}
}

func (s *SourceIDs) computeLocked(ctx context.Context, mutex *coordination.Mutex, token, source, sourceID string, compute func(ctx context.Context) (string, error)) (string, error) {
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = mutex.Release(releaseCtx, token)
	}()

	// one final check: covers the race between the fast path and the lock
	if id, err := s.Lookup(ctx, source, sourceID); err != nil || id != "" {
		return id, err
	}

	id, err := compute(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", nil
	}

	if err := s.Set(ctx, source, sourceID, id); err != nil {
		return "", err
	}
	return id, nil
}
