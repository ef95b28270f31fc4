package pgutils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// Retry calls fn until it succeeds, returns a non-retryable error, or runs
// out of attempts. The jittered delay doubles from Base up to Max.
func Retry(ctx context.Context, b Backoff, retryable func(error) bool, fn func(attempt int) error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Base

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !retryable(err) || attempt == attempts {
			break
		}

		serr := sleepWithContext(ctx, jitter(delay))
		if serr != nil {
			return fmt.Errorf("retry aborted: %w (last error: %w)", serr, err)
		}

		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}

	return err
}

func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}

	return d/2 + rand.N(d/2)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
