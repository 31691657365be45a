package discovery

import (
	"context"
	"fmt"
	"log"
	"strings"

	"artiller/cache"
	"artiller/coordination"
	"artiller/store"

	"github.com/redis/go-redis/v9"
)

// RateLimitKey names the shared limiter that paces suggester calls across
// every worker process.
const RateLimitKey = "rate-limit:tag-generator"

// Generator drains the discovery queue in batches and attaches suggested
// tags to the articles. All side effects go through the store first and the
// article cache second, so a crash between the two only costs cache
// freshness.
type Generator struct {
	queue     *Queue
	store     store.ArticleStore
	articles  *cache.Articles
	suggester Suggester
	limiter   *coordination.RateLimiter
}

func NewGenerator(q *Queue, st store.ArticleStore, articles *cache.Articles, suggester Suggester, limiter *coordination.RateLimiter) *Generator {
	return &Generator{
		queue:     q,
		store:     st,
		articles:  articles,
		suggester: suggester,
		limiter:   limiter,
	}
}

// ProcessBatch claims one batch and runs it through the suggester. conn must
// be a dedicated connection; ProcessBatch blocks on it until a batch is
// available.
//
// A rate limiter timeout or a suggester failure puts the whole batch back on
// the queue. Individual articles the suggester returned nothing for are also
// re-queued, so they get another chance in a different batch.
func (g *Generator) ProcessBatch(ctx context.Context, conn redis.Cmdable) error {
	ids, err := g.queue.DequeueBatch(ctx, conn, BatchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	admitted, err := g.limiter.Trigger(ctx, strings.Join(ids, ","), g.limiter.CheckInterval, g.limiter.CancelTimeout)
	if err != nil {
		g.requeue(ctx, ids)
		return err
	}
	if !admitted {
		log.Printf("tag generator: rate limited, re-queueing batch of %d", len(ids))
		g.requeue(ctx, ids)
		return nil
	}

	articles, err := g.articles.GetMany(ctx, ids)
	if err != nil {
		g.requeue(ctx, ids)
		return err
	}
	titleByID := make(map[string]string, len(articles))
	for _, article := range articles {
		titleByID[article.ID] = article.Title
	}

	titles := make([]string, len(ids))
	for i, id := range ids {
		titles[i] = titleByID[id]
	}

	suggestions, err := g.suggester.SuggestTags(ctx, titles)
	if err != nil {
		g.requeue(ctx, ids)
		return fmt.Errorf("suggesting tags for batch: %w", err)
	}

	if err := g.queue.Finish(ctx, ids); err != nil {
		log.Printf("tag generator: %v", err)
	}

	for i, id := range ids {
		var tags []string
		if i < len(suggestions) {
			tags = suggestions[i]
		}

		if len(tags) == 0 || titles[i] == "" {
			// no usable suggestion for this slot; try again in a later batch
			if _, err := g.queue.Enqueue(ctx, id); err != nil {
				log.Printf("tag generator: re-queueing %s: %v", id, err)
			}
			continue
		}

		if err := g.applyTags(ctx, id, tags); err != nil {
			log.Printf("tag generator: applying tags to %s: %v", id, err)
		}
	}
	return nil
}

func (g *Generator) applyTags(ctx context.Context, id string, tags []string) error {
	if err := g.store.AddTags(ctx, id, tags); err != nil {
		return err
	}

	// refresh the cached copy so readers stop seeing the loading flag
	article, err := g.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if article == nil {
		return fmt.Errorf("article %s disappeared after tagging", id)
	}
	return g.articles.Put(ctx, article)
}

// requeue puts a claimed batch back, clearing its in-progress marks first so
// IsQueued stays accurate for articles waiting on their retry.
func (g *Generator) requeue(ctx context.Context, ids []string) {
	if err := g.queue.Finish(ctx, ids); err != nil {
		log.Printf("tag generator: %v", err)
	}
	for _, id := range ids {
		if _, err := g.queue.Enqueue(ctx, id); err != nil {
			log.Printf("tag generator: re-queueing %s: %v", id, err)
		}
	}
}
