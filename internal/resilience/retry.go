package resilience

import (
	"context"
	"time"
)

// Retry runs fn up to 1+maxRetries times with a doubling backoff between
// attempts, starting at backoff. It returns nil on the first success, the
// last error once attempts are exhausted, or the context error if the
// context is cancelled while waiting.
func Retry(ctx context.Context, maxRetries int, backoff time.Duration, fn func() error) error {
	var err error
	wait := backoff
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}
