package coordination

import (
	"context"
	"errors"
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

func TestMutexExclusivity(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	a := NewMutex(client, "locks:test")
	b := NewMutex(client, "locks:test")

	tokenA, okA, err := a.TryLock(ctx, 0)
	if err != nil {
		t.Fatalf("first TryLock: %v", err)
	}
	if !okA {
		t.Fatal("first TryLock should succeed")
	}

	_, okB, err := b.TryLock(ctx, 0)
	if err != nil {
		t.Fatalf("second TryLock: %v", err)
	}
	if okB {
		t.Fatal("second TryLock should fail while held")
	}

	released, err := a.Release(ctx, tokenA)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !released {
		t.Fatal("Release should report success for the holder")
	}

	_, okB, err = b.TryLock(ctx, 0)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	if !okB {
		t.Fatal("TryLock should succeed after release")
	}
}

func TestMutexLeaseExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	m := NewMutex(client, "locks:lease")

	if _, ok, err := m.TryLock(ctx, 50*time.Millisecond); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	mr.FastForward(60 * time.Millisecond)

	_, ok, err := m.TryLock(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("TryLock after expiry: %v", err)
	}
	if !ok {
		t.Fatal("lock should be acquirable after the lease expired")
	}
}

func TestMutexReleaseRequiresToken(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	m := NewMutex(client, "locks:token")

	if _, ok, err := m.TryLock(ctx, 0); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	released, err := m.Release(ctx, "not-the-token")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released {
		t.Fatal("Release with a stale token must not delete the lease")
	}

	locked, err := m.IsLocked(ctx)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Fatal("lock should still be held")
	}
}

func TestMutexWith(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	m := NewMutex(client, "locks:with")

	wantErr := errors.New("boom")
	ran, err := m.With(ctx, 0, func(ctx context.Context) error {
		locked, err := m.IsLocked(ctx)
		if err != nil {
			return err
		}
		if !locked {
			t.Error("lock should be held inside With")
		}
		return wantErr
	})
	if !ran {
		t.Fatal("With should have obtained the lock")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("With should surface the callback error, got %v", err)
	}

	// the lock must be released even though the callback failed
	locked, err := m.IsLocked(ctx)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if locked {
		t.Fatal("lock should be released after With")
	}
}

func TestMutexWithBusy(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	m := NewMutex(client, "locks:busy")
	if _, ok, err := m.TryLock(ctx, 0); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	ran, err := m.With(ctx, 0, func(ctx context.Context) error {
		t.Error("callback must not run when the lock is busy")
		return nil
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if ran {
		t.Fatal("With should report that it did not run")
	}
}

func TestMutexWait(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	m := NewMutex(client, "locks:wait")
	token, ok, err := m.TryLock(ctx, 0)
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- m.Wait(ctx, 10*time.Millisecond)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while the lock was still held")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := m.Release(ctx, token); err != nil {
		t.Fatalf("Release: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe the release")
	}
}
