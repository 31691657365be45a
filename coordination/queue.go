package coordination

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// UniqueQueue is a FIFO queue that only lets each item exist in it once.
// It is backed by two keys: the list items are pushed to and popped from,
// and an index set used for the membership guarantee. An item is in the
// list if and only if it is in the index, except during the dequeue
// transition.
type UniqueQueue struct {
	client   redis.Cmdable
	listKey  string
	indexKey string
}

// NewUniqueQueue creates a queue rooted at key. The client is used for all
// operations except the blocking part of Dequeue, which needs its own
// connection.
func NewUniqueQueue(client redis.Cmdable, key string) *UniqueQueue {
	return &UniqueQueue{
		client:   client,
		listKey:  key + ":list",
		indexKey: key + ":index",
	}
}

// Enqueue adds value to the queue. If it is already queued it is not added
// again and false is returned.
func (q *UniqueQueue) Enqueue(ctx context.Context, value string) (bool, error) {
	added, err := q.client.SAdd(ctx, q.indexKey, value).Result()
	if err != nil {
		return false, fmt.Errorf("queue %s: index add: %w", q.indexKey, err)
	}
	if added == 0 {
		return false, nil
	}

	if err := q.client.LPush(ctx, q.listKey, value).Err(); err != nil {
		return false, fmt.Errorf("queue %s: push: %w", q.listKey, err)
	}
	return true, nil
}

// Has reports whether value is currently queued.
func (q *UniqueQueue) Has(ctx context.Context, value string) (bool, error) {
	member, err := q.client.SIsMember(ctx, q.indexKey, value).Result()
	if err != nil {
		return false, fmt.Errorf("queue %s: index check: %w", q.indexKey, err)
	}
	return member, nil
}

// Size returns the number of queued items. The index set is the source of
// truth since the list briefly disagrees during a dequeue.
func (q *UniqueQueue) Size(ctx context.Context) (int64, error) {
	size, err := q.client.SCard(ctx, q.indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue %s: size: %w", q.indexKey, err)
	}
	return size, nil
}

// Dequeue blocks until an item is available and returns it. The blocking pop
// holds conn for the whole wait, so conn must be a dedicated connection that
// is not used for anything else (see Client.Conn in go-redis).
func (q *UniqueQueue) Dequeue(ctx context.Context, conn redis.Cmdable) (string, error) {
	res, err := conn.BRPop(ctx, 0, q.listKey).Result()
	if err != nil {
		return "", fmt.Errorf("queue %s: pop: %w", q.listKey, err)
	}

	// BRPOP returns [key, value].
	value := res[1]

	if err := q.client.SRem(ctx, q.indexKey, value).Err(); err != nil {
		return "", fmt.Errorf("queue %s: index remove: %w", q.indexKey, err)
	}
	return value, nil
}
