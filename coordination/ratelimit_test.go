package coordination

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAdmitsMaxCountPerWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	r := NewRateLimiter(client, "rate-limit:test", 3)

	for i := 0; i < 3; i++ {
		admitted, err := r.Trigger(ctx, "call", 10*time.Millisecond, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Trigger %d: %v", i, err)
		}
		if !admitted {
			t.Fatalf("Trigger %d should be admitted immediately", i)
		}
	}

	// fourth call in the same window times out
	admitted, err := r.Trigger(ctx, "overflow", 10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Trigger overflow: %v", err)
	}
	if admitted {
		t.Fatal("fourth call in the window should not be admitted")
	}

	// window resets ten seconds after the first increment
	mr.FastForward(10 * time.Second)

	admitted, err = r.Trigger(ctx, "next-window", 10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Trigger next window: %v", err)
	}
	if !admitted {
		t.Fatal("call after window reset should be admitted")
	}
}

func TestRateLimiterAdmitsOnceWindowClears(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	r := NewRateLimiter(client, "rate-limit:clears", 1)

	if admitted, err := r.Trigger(ctx, "first", 10*time.Millisecond, 0); err != nil || !admitted {
		t.Fatalf("first Trigger: admitted=%v err=%v", admitted, err)
	}

	done := make(chan bool, 1)
	go func() {
		admitted, err := r.Trigger(ctx, "second", 10*time.Millisecond, time.Second)
		if err != nil {
			t.Errorf("second Trigger: %v", err)
		}
		done <- admitted
	}()

	// release the window while the second caller is polling
	time.Sleep(30 * time.Millisecond)
	mr.FastForward(10 * time.Second)

	select {
	case admitted := <-done:
		if !admitted {
			t.Fatal("second caller should be admitted once the window cleared")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
}
