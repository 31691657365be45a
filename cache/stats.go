package cache

import (
	"context"
	"fmt"
	"time"

	"artiller/store"

	"github.com/redis/go-redis/v9"
)

// DefaultStatsTTL keeps count stats fresh enough for a landing page without
// running count queries on every request.
const DefaultStatsTTL = 5 * time.Minute

// Stats caches the aggregate count queries (articles, tags, authors) with a
// short TTL and read-through to the store.
type Stats struct {
	client redis.Cmdable
	store  store.ArticleStore
	ttl    time.Duration
}

// NewStats creates the stats cache. ttl <= 0 uses DefaultStatsTTL.
func NewStats(client redis.Cmdable, st store.ArticleStore, ttl time.Duration) *Stats {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &Stats{client: client, store: st, ttl: ttl}
}

func (s *Stats) cachedCount(ctx context.Context, name string, query func(ctx context.Context) (int64, error)) (int64, error) {
	key := "stats:" + name

	cached, err := s.client.Get(ctx, key).Int64()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		return 0, fmt.Errorf("stats cache: get %s: %w", name, err)
	}

	count, err := query(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.client.Set(ctx, key, count, s.ttl).Err(); err != nil {
		return 0, fmt.Errorf("stats cache: set %s: %w", name, err)
	}
	return count, nil
}

// ArticleCount returns the cached article count.
func (s *Stats) ArticleCount(ctx context.Context) (int64, error) {
	return s.cachedCount(ctx, "articles", s.store.ArticleCount)
}

// TagCount returns the cached distinct tag count.
func (s *Stats) TagCount(ctx context.Context) (int64, error) {
	return s.cachedCount(ctx, "tags", s.store.TagCount)
}

// AuthorCount returns the cached distinct author count.
func (s *Stats) AuthorCount(ctx context.Context) (int64, error) {
	return s.cachedCount(ctx, "authors", s.store.AuthorCount)
}
