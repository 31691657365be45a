// Package discovery batches articles that are missing tags into fixed-size
// groups and runs them through an AI tag suggester. Batching exists because
// the suggester's prompt format expects exactly three titles at a time, and
// each call costs money.
package discovery

import (
	"context"
	"fmt"
	"log"

	"artiller/coordination"

	"github.com/redis/go-redis/v9"
)

// BatchSize is the exact number of articles per suggester call.
const BatchSize = 3

const (
	pendingKey    = "tag-discovery"
	waitingKey    = "tag-discovery:waiting"
	inProgressKey = "tag-discovery:in-progress"
)

// drainScript atomically reads and clears the waiting set. Reading and
// deleting separately would let two workers both claim the same staged
// items.
var drainScript = redis.NewScript(`
    local items = redis.call("smembers", KEYS[1])
    if #items > 0 then
        redis.call("del", KEYS[1])
    end
    return items
`)

// Queue stages articles through three places: the pending unique queue,
// a waiting set (pulled off pending but not yet a full batch) and an
// in-progress set (handed to a worker but not yet confirmed tagged).
// IsQueued checks all three, so article responses can report "tags still
// loading" across the whole gap.
type Queue struct {
	client  redis.Cmdable
	pending *coordination.UniqueQueue
}

// NewQueue creates the discovery queue over the shared client.
func NewQueue(client redis.Cmdable) *Queue {
	return &Queue{
		client:  client,
		pending: coordination.NewUniqueQueue(client, pendingKey),
	}
}

// Enqueue queues an article for tag discovery. Returns false if it is
// already pending.
func (q *Queue) Enqueue(ctx context.Context, articleID string) (bool, error) {
	return q.pending.Enqueue(ctx, articleID)
}

// Size returns the number of articles waiting in the pending queue.
func (q *Queue) Size(ctx context.Context) (int64, error) {
	return q.pending.Size(ctx)
}

// IsQueued reports whether the article is anywhere in the discovery
// pipeline: pending, staged for a batch, or being processed.
func (q *Queue) IsQueued(ctx context.Context, articleID string) (bool, error) {
	pending, err := q.pending.Has(ctx, articleID)
	if err != nil {
		return false, err
	}
	if pending {
		return true, nil
	}

	for _, key := range []string{waitingKey, inProgressKey} {
		member, err := q.client.SIsMember(ctx, key, articleID).Result()
		if err != nil {
			return false, fmt.Errorf("discovery queue: check %s: %w", key, err)
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}

// DequeueBatch blocks until n articles have been staged, then claims them.
// conn must be a dedicated connection (it backs the blocking dequeue).
//
// Because another worker can drain the waiting set between our stage and
// our claim, the claim may come back with more or fewer than n items; in
// that case everything claimed is pushed back onto the pending queue
// (best-effort FIFO) and an empty batch is returned so the caller just
// tries again.
func (q *Queue) DequeueBatch(ctx context.Context, conn redis.Cmdable, n int) ([]string, error) {
	if n <= 0 {
		n = BatchSize
	}

	for {
		staged, err := q.client.SCard(ctx, waitingKey).Result()
		if err != nil {
			return nil, fmt.Errorf("discovery queue: waiting size: %w", err)
		}
		if staged >= int64(n) {
			break
		}

		item, err := q.pending.Dequeue(ctx, conn)
		if err != nil {
			return nil, err
		}
		if err := q.client.SAdd(ctx, waitingKey, item).Err(); err != nil {
			return nil, fmt.Errorf("discovery queue: stage %s: %w", item, err)
		}
	}

	items, err := drainScript.Run(ctx, q.client, []string{waitingKey}).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("discovery queue: drain waiting: %w", err)
	}

	if len(items) != n {
		// another worker stole part of the batch (or dumped extra items in);
		// putting everything back is cheaper than processing a malformed
		// batch
		log.Printf("discovery queue: drained %d items, want %d; re-queueing", len(items), n)
		for _, item := range items {
			if _, err := q.pending.Enqueue(ctx, item); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	members := make([]interface{}, len(items))
	for i, item := range items {
		members[i] = item
	}
	if err := q.client.SAdd(ctx, inProgressKey, members...).Err(); err != nil {
		return nil, fmt.Errorf("discovery queue: mark in progress: %w", err)
	}
	return items, nil
}

// Finish removes articles from the in-progress set once their batch has
// completed, whether or not the suggester produced tags for them.
func (q *Queue) Finish(ctx context.Context, articleIDs []string) error {
	if len(articleIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(articleIDs))
	for i, id := range articleIDs {
		members[i] = id
	}
	if err := q.client.SRem(ctx, inProgressKey, members...).Err(); err != nil {
		return fmt.Errorf("discovery queue: finish: %w", err)
	}
	return nil
}
