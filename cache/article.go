// Package cache holds the Redis-backed caches between the request path and
// the durable article store: full articles by id, source-ref to article-id
// resolution with single-flight semantics, the per-tag/per-word search index
// sets with their freshness gates, and the aggregate count stats.
//
// Keys are namespaced by purpose (article:, source:, tag:, word:, stats:)
// so the caches can share one Redis database without collisions.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"artiller/store"
	"artiller/types"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds every cache entry in this package. The store is the
// source of truth and small staleness windows are acceptable, so there is
// no invalidation beyond expiry.
const DefaultTTL = time.Hour

func articleKey(id string) string {
	return "article:" + id
}

// Articles caches full articles by id with read-through to the store.
type Articles struct {
	client redis.Cmdable
	store  store.ArticleStore
	ttl    time.Duration
}

// NewArticles creates an article cache. ttl <= 0 uses DefaultTTL.
func NewArticles(client redis.Cmdable, st store.ArticleStore, ttl time.Duration) *Articles {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Articles{client: client, store: st, ttl: ttl}
}

func (a *Articles) getCached(ctx context.Context, id string) (*types.Article, error) {
	raw, err := a.client.Get(ctx, articleKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("article cache: get %s: %w", id, err)
	}

	var article types.Article
	if err := json.Unmarshal([]byte(raw), &article); err != nil {
		return nil, fmt.Errorf("article cache: decode %s: %w", id, err)
	}
	return &article, nil
}

func (a *Articles) populate(ctx context.Context, article *types.Article) error {
	raw, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("article cache: encode %s: %w", article.ID, err)
	}

	// SetNX so a concurrently-written fresher value is not clobbered by a
	// read-through populate.
	if err := a.client.SetNX(ctx, articleKey(article.ID), raw, a.ttl).Err(); err != nil {
		return fmt.Errorf("article cache: populate %s: %w", article.ID, err)
	}
	return nil
}

// Get returns the article, reading through to the store on a cache miss.
// A nil article with a nil error means it does not exist anywhere.
func (a *Articles) Get(ctx context.Context, id string) (*types.Article, error) {
	cached, err := a.getCached(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	fromStore, err := a.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fromStore == nil {
		return nil, nil
	}

	if err := a.populate(ctx, fromStore); err != nil {
		return nil, err
	}
	return fromStore, nil
}

// GetMany returns the articles for ids, partitioning into cached and
// uncached and bulk-reading the rest from the store. Order is not
// guaranteed; callers re-key by id. Missing articles are skipped.
func (a *Articles) GetMany(ctx context.Context, ids []string) ([]*types.Article, error) {
	result := make([]*types.Article, 0, len(ids))
	uncached := make([]string, 0, len(ids))

	for _, id := range ids {
		cached, err := a.getCached(ctx, id)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			result = append(result, cached)
		} else {
			uncached = append(uncached, id)
		}
	}

	if len(uncached) == 0 {
		return result, nil
	}

	fromStore, err := a.store.GetManyByIDs(ctx, uncached)
	if err != nil {
		return nil, err
	}
	for _, article := range fromStore {
		if err := a.populate(ctx, article); err != nil {
			return nil, err
		}
		result = append(result, article)
	}
	return result, nil
}

// Put unconditionally refreshes the cached copy. Called on create and
// update paths where the new value is known to be the freshest.
func (a *Articles) Put(ctx context.Context, article *types.Article) error {
	raw, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("article cache: encode %s: %w", article.ID, err)
	}
	if err := a.client.Set(ctx, articleKey(article.ID), raw, a.ttl).Err(); err != nil {
		return fmt.Errorf("article cache: put %s: %w", article.ID, err)
	}
	return nil
}
