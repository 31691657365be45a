package coordination

import (
	"context"
	"testing"
)

func TestUniqueQueueUniqueness(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	q := NewUniqueQueue(client, "queues:test")

	added, err := q.Enqueue(ctx, "item")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !added {
		t.Fatal("first Enqueue should add")
	}

	added, err = q.Enqueue(ctx, "item")
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if added {
		t.Fatal("second Enqueue of the same item should be a no-op")
	}

	size, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1 {
		t.Fatalf("Size = %d, want 1", size)
	}
}

func TestUniqueQueueFIFO(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	q := NewUniqueQueue(client, "queues:fifo")
	for _, v := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(ctx, v); err != nil {
			t.Fatalf("Enqueue %s: %v", v, err)
		}
	}

	conn := client.Conn()
	defer conn.Close()

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx, conn)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if got != want {
			t.Fatalf("Dequeue = %q, want %q", got, want)
		}
	}

	size, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size after draining = %d, want 0", size)
	}
}

func TestUniqueQueueHasAndReEnqueue(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	q := NewUniqueQueue(client, "queues:requeue")
	if _, err := q.Enqueue(ctx, "x"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	has, err := q.Has(ctx, "x")
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatal("Has should be true while queued")
	}

	conn := client.Conn()
	defer conn.Close()

	if _, err := q.Dequeue(ctx, conn); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	has, err = q.Has(ctx, "x")
	if err != nil {
		t.Fatalf("Has after dequeue: %v", err)
	}
	if has {
		t.Fatal("Has should be false after dequeue")
	}

	// dequeued items may be queued again
	added, err := q.Enqueue(ctx, "x")
	if err != nil {
		t.Fatalf("re-Enqueue: %v", err)
	}
	if !added {
		t.Fatal("re-enqueue after dequeue should add a fresh entry")
	}
}
