package workers

import (
	"context"
	"log"

	"artiller/cache"
	"artiller/coordination"
	"artiller/discovery"
	"artiller/search"

	"github.com/redis/go-redis/v9"
)

// Queue keys and limiter names shared between the API (which enqueues) and
// the worker loops (which drain).
const (
	TagSearchQueueKey  = "worker:tag-search"
	WordSearchQueueKey = "worker:word-search"

	WordSearchRateLimitKey = "rate-limit:word-search"
)

// TagSearchLoop drains the tag search queue: for each queued tag that has
// not been checked recently, it fans out to the searchers for more articles.
func TagSearchLoop(lookup *search.Lookup, tags *cache.Index, queue *coordination.UniqueQueue) Iterate {
	return func(ctx context.Context, conn redis.Cmdable) error {
		tag, err := queue.Dequeue(ctx, conn)
		if err != nil {
			return err
		}

		should, err := tags.ShouldQuery(ctx, tag)
		if err != nil {
			return err
		}
		if !should {
			return nil
		}

		log.Printf("workers: querying sources for tag %q", tag)
		if _, err := lookup.QueryMoreByTag(ctx, tag); err != nil {
			return err
		}
		return nil
	}
}

// WordSearchLoop is TagSearchLoop for title words, with a rate limiter in
// front of the fan-out. A word that loses the rate limiter goes back on the
// queue instead of being dropped.
func WordSearchLoop(lookup *search.Lookup, words *cache.Index, queue *coordination.UniqueQueue, limiter *coordination.RateLimiter) Iterate {
	return func(ctx context.Context, conn redis.Cmdable) error {
		word, err := queue.Dequeue(ctx, conn)
		if err != nil {
			return err
		}

		should, err := words.ShouldQuery(ctx, word)
		if err != nil {
			return err
		}
		if !should {
			return nil
		}

		admitted, err := limiter.Trigger(ctx, word, limiter.CheckInterval, limiter.CancelTimeout)
		if err != nil {
			return err
		}
		if !admitted {
			if _, err := queue.Enqueue(ctx, word); err != nil {
				return err
			}
			return nil
		}

		log.Printf("workers: querying sources for word %q", word)
		if _, err := lookup.QueryMoreByWord(ctx, word); err != nil {
			return err
		}
		return nil
	}
}

// TagGenerationLoop drains the discovery queue in batches through the
// suggester.
func TagGenerationLoop(generator *discovery.Generator) Iterate {
	return generator.ProcessBatch
}
