package coordination

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitWindow is how long a counter lives after its first increment.
	rateLimitWindow = 10 * time.Second

	// DefaultCheckInterval is how often Trigger retries a full limiter.
	DefaultCheckInterval = 500 * time.Millisecond

	// DefaultCancelTimeout is how long Trigger waits before giving up.
	DefaultCancelTimeout = 30 * time.Second
)

// Based on the INCR rate limiter pattern from the Redis documentation: the
// counter expires ten seconds after the first increment of the window, and
// the increment plus the expiry must happen atomically or a crash in between
// would leave a counter that never resets.
var rateLimitScript = redis.NewScript(`
    local current = redis.call("incr", KEYS[1])
    if current == 1 then
        redis.call("expire", KEYS[1], 10)
    end
    return current
`)

// RateLimiter bounds calls per ten-second window. If the window is full,
// Trigger polls until a slot opens or the timeout passes. It exists to cap
// outbound traffic to origin sources and the AI suggester; callers that time
// out are expected to re-queue their work rather than drop it.
type RateLimiter struct {
	client   redis.Cmdable
	key      string
	maxCount int64

	// CheckInterval and CancelTimeout are the poll cadence and give-up
	// bound its consumers pass to Trigger. They start at the package
	// defaults; deployments and tests can shorten them per limiter.
	CheckInterval time.Duration
	CancelTimeout time.Duration
}

// NewRateLimiter creates a limiter storing its counter at key, admitting at
// most maxCount calls per ten seconds.
func NewRateLimiter(client redis.Cmdable, key string, maxCount int64) *RateLimiter {
	return &RateLimiter{
		client:        client,
		key:           key,
		maxCount:      maxCount,
		CheckInterval: DefaultCheckInterval,
		CancelTimeout: DefaultCancelTimeout,
	}
}

func (r *RateLimiter) attempt(ctx context.Context) (bool, error) {
	current, err := rateLimitScript.Run(ctx, r.client, []string{r.key}).Int64()
	if err != nil {
		return false, err
	}
	return current <= r.maxCount, nil
}

// Trigger attempts to claim a slot in the current window. description only
// identifies the call in logs. checkInterval <= 0 uses the default;
// cancelTimeout == 0 waits forever. Returns false if the timeout elapsed
// first.
func (r *RateLimiter) Trigger(ctx context.Context, description string, checkInterval, cancelTimeout time.Duration) (bool, error) {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}

	admitted, err := r.attempt(ctx)
	if err != nil {
		return false, err
	}
	if admitted {
		return true, nil
	}

	var deadline <-chan time.Time
	if cancelTimeout > 0 {
		timer := time.NewTimer(cancelTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			log.Printf("rate limiter %s: consumer timed out (%s)", r.key, description)
			return false, nil
		case <-ticker.C:
			admitted, err := r.attempt(ctx)
			if err != nil {
				return false, err
			}
			if admitted {
				return true, nil
			}
		}
	}
}
