package discovery

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestQueueDeduplicates(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	q := NewQueue(client)

	added, err := q.Enqueue(ctx, "article-1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !added {
		t.Fatal("first Enqueue should report added")
	}

	added, err = q.Enqueue(ctx, "article-1")
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if added {
		t.Fatal("second Enqueue of the same id should report not added")
	}

	size, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1 {
		t.Fatalf("Size = %d, want 1", size)
	}
}

func TestQueueDequeueBatch(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	q := NewQueue(client)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		if _, err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}

	conn := client.Conn()
	defer conn.Close()

	first, err := q.DequeueBatch(ctx, conn, 3)
	if err != nil {
		t.Fatalf("first DequeueBatch: %v", err)
	}
	second, err := q.DequeueBatch(ctx, conn, 3)
	if err != nil {
		t.Fatalf("second DequeueBatch: %v", err)
	}

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("batch sizes = %d, %d, want 3, 3", len(first), len(second))
	}

	got := append(append([]string{}, first...), second...)
	sort.Strings(got)
	want := []string{"a", "b", "c", "d", "e", "f"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("claimed ids = %v, want %v", got, want)
		}
	}

	size, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size after claiming everything = %d, want 0", size)
	}
}

func TestQueueBatchWaitsForFullBatch(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	q := NewQueue(client)
	for _, id := range []string{"a", "b"} {
		if _, err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}

	type result struct {
		batch []string
		err   error
	}
	results := make(chan result, 1)

	go func() {
		conn := client.Conn()
		defer conn.Close()

		batch, err := q.DequeueBatch(ctx, conn, 3)
		results <- result{batch, err}
	}()

	select {
	case res := <-results:
		t.Fatalf("DequeueBatch returned early with %v, %v", res.batch, res.err)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.Enqueue(ctx, "c"); err != nil {
		t.Fatalf("Enqueue c: %v", err)
	}

	select {
	case res := <-results:
		if res.err != nil {
			t.Fatalf("DequeueBatch: %v", res.err)
		}
		if len(res.batch) != 3 {
			t.Fatalf("batch size = %d, want 3", len(res.batch))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("DequeueBatch did not complete after the third item arrived")
	}
}

func TestQueueIsQueuedAcrossStages(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	q := NewQueue(client)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}

	queued, err := q.IsQueued(ctx, "a")
	if err != nil {
		t.Fatalf("IsQueued while pending: %v", err)
	}
	if !queued {
		t.Fatal("article should report queued while pending")
	}

	conn := client.Conn()
	defer conn.Close()

	batch, err := q.DequeueBatch(ctx, conn, 3)
	if err != nil {
		t.Fatalf("DequeueBatch: %v", err)
	}

	queued, err = q.IsQueued(ctx, "a")
	if err != nil {
		t.Fatalf("IsQueued while in progress: %v", err)
	}
	if !queued {
		t.Fatal("article should report queued while its batch is in progress")
	}

	if err := q.Finish(ctx, batch); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	queued, err = q.IsQueued(ctx, "a")
	if err != nil {
		t.Fatalf("IsQueued after finish: %v", err)
	}
	if queued {
		t.Fatal("article should not report queued after its batch finished")
	}
}
