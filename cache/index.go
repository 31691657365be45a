package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueryThreshold is the membership size under which it is still
// worth hitting origin sources for more results.
const DefaultQueryThreshold = 10

// Kind selects which search index an Index instance manages.
type Kind int

const (
	// KindTag indexes article ids by normalised tag.
	KindTag Kind = iota
	// KindWord indexes article ids by normalised search word.
	KindWord
)

func (k Kind) prefix() string {
	switch k {
	case KindTag:
		return "tag"
	case KindWord:
		return "word"
	default:
		panic(fmt.Sprintf("cache: unknown index kind %d", int(k)))
	}
}

// Index is the cached search index for one key kind: a membership set of
// article ids per tag/word, plus a "checked recently" flag that gates how
// often origin sources are queried for that key. The two kinds are
// structurally identical and differ only in key namespace.
type Index struct {
	client    redis.Cmdable
	kind      Kind
	ttl       time.Duration
	threshold int64
}

// NewIndex creates the index for the given kind. ttl <= 0 uses DefaultTTL,
// threshold <= 0 uses DefaultQueryThreshold.
func NewIndex(client redis.Cmdable, kind Kind, ttl time.Duration, threshold int64) *Index {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if threshold <= 0 {
		threshold = DefaultQueryThreshold
	}
	return &Index{client: client, kind: kind, ttl: ttl, threshold: threshold}
}

func (ix *Index) usagesKey(key string) string {
	return fmt.Sprintf("%s:%s:usages", ix.kind.prefix(), key)
}

func (ix *Index) checkKey(key string) string {
	return fmt.Sprintf("%s:%s:check", ix.kind.prefix(), key)
}

// Threshold returns the membership size above which origin queries are
// skipped.
func (ix *Index) Threshold() int64 {
	return ix.threshold
}

// Members returns the cached article ids for key.
func (ix *Index) Members(ctx context.Context, key string) ([]string, error) {
	ids, err := ix.client.SMembers(ctx, ix.usagesKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s index: members %s: %w", ix.kind.prefix(), key, err)
	}
	return ids, nil
}

// Add records article ids as matching key. Empty input is a no-op so the
// TTL is not reset pointlessly.
func (ix *Index) Add(ctx context.Context, key string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	usages := ix.usagesKey(key)
	if err := ix.client.SAdd(ctx, usages, members...).Err(); err != nil {
		return fmt.Errorf("%s index: add %s: %w", ix.kind.prefix(), key, err)
	}
	if err := ix.client.Expire(ctx, usages, ix.ttl).Err(); err != nil {
		return fmt.Errorf("%s index: expire %s: %w", ix.kind.prefix(), key, err)
	}
	return nil
}

// ShouldQuery reports whether it is worth hitting origin sources for key:
// either it has not been checked recently, or the cached membership is
// still below the threshold.
func (ix *Index) ShouldQuery(ctx context.Context, key string) (bool, error) {
	checked, err := ix.client.Exists(ctx, ix.checkKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%s index: check %s: %w", ix.kind.prefix(), key, err)
	}
	if checked == 0 {
		return true, nil
	}

	size, err := ix.client.SCard(ctx, ix.usagesKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%s index: size %s: %w", ix.kind.prefix(), key, err)
	}
	return size < ix.threshold, nil
}

// MarkQueried sets the "checked recently" flag for key.
func (ix *Index) MarkQueried(ctx context.Context, key string) error {
	if err := ix.client.Set(ctx, ix.checkKey(key), 1, ix.ttl).Err(); err != nil {
		return fmt.Errorf("%s index: mark %s: %w", ix.kind.prefix(), key, err)
	}
	return nil
}

// UnmarkQueried clears the flag, so a failed origin query does not delay
// the next attempt for the whole TTL.
func (ix *Index) UnmarkQueried(ctx context.Context, key string) error {
	if err := ix.client.Del(ctx, ix.checkKey(key)).Err(); err != nil {
		return fmt.Errorf("%s index: unmark %s: %w", ix.kind.prefix(), key, err)
	}
	return nil
}
