package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultJitterMax bounds the random component added to each retry delay.
const DefaultJitterMax = 250 * time.Millisecond

// Backoff returns the delay before retrying after the given failed attempt
// (1-based): min(base*2^(attempt-1), max) plus whatever jitter returns.
func Backoff(attempt int, base, max time.Duration, jitter func() time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	if jitter != nil {
		delay += jitter()
	}
	return delay
}

// uniformJitter draws from [0, limit).
func uniformJitter(limit time.Duration) func() time.Duration {
	return func() time.Duration {
		if limit <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(limit)))
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
