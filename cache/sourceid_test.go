package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
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

func TestSourceIDsSingleFlight(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	s := NewSourceIDs(client, 0)

	var computeCalls int32
	compute := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&computeCalls, 1)
		// hold the lock long enough for the other resolvers to pile up
		time.Sleep(50 * time.Millisecond)
		return "article-1", nil
	}

	const resolvers = 8
	results := make([]string, resolvers)
	errs := make([]error, resolvers)

	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Resolve(ctx, "medium", "post-9", compute)
		}(i)
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&computeCalls); calls != 1 {
		t.Fatalf("compute ran %d times, want exactly 1", calls)
	}
	for i := 0; i < resolvers; i++ {
		if errs[i] != nil {
			t.Fatalf("resolver %d: %v", i, errs[i])
		}
		if results[i] != "article-1" {
			t.Fatalf("resolver %d got %q, want article-1", i, results[i])
		}
	}
}

func TestSourceIDsResolveFastPath(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	s := NewSourceIDs(client, 0)
	if err := s.Set(ctx, "medium", "post-1", "article-7"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	id, err := s.Resolve(ctx, "medium", "post-1", func(ctx context.Context) (string, error) {
		t.Error("compute must not run when the mapping is cached")
		return "", nil
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != "article-7" {
		t.Fatalf("Resolve = %q, want article-7", id)
	}
}

func TestSourceIDsComputeFailureLeavesCacheUnset(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	s := NewSourceIDs(client, 0)

	wantErr := errors.New("origin down")
	_, err := s.Resolve(ctx, "medium", "post-2", func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Resolve should propagate the compute error, got %v", err)
	}

	// the lock must have been released and the value left unset, so a
	// later caller retries compute
	id, err := s.Resolve(ctx, "medium", "post-2", func(ctx context.Context) (string, error) {
		return "article-2", nil
	})
	if err != nil {
		t.Fatalf("retry Resolve: %v", err)
	}
	if id != "article-2" {
		t.Fatalf("retry Resolve = %q, want article-2", id)
	}
}

func TestSourceIDsUnresolvedNotCached(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	s := NewSourceIDs(client, 0)

	id, err := s.Resolve(ctx, "hn", "https://example.com", func(ctx context.Context) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != "" {
		t.Fatalf("Resolve = %q, want empty for unresolvable ref", id)
	}

	cached, err := s.Lookup(ctx, "hn", "https://example.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if cached != "" {
		t.Fatal("unresolvable outcome must not be cached")
	}
}
