package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config controls Do. A zero BaseDelay retries immediately; MaxDelay and
// Jitter only apply when BaseDelay is positive.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    time.Duration
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds or Attempts calls have failed. The returned
// error wraps the error of the last attempt.
func Do(ctx context.Context, config Config, fn func() error) error {
	attempts := config.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	maxDelay := config.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	var lastErr error
	delay := config.BaseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt, lastErr)
			}
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}
		if delay <= 0 {
			continue
		}

		sleep := delay
		if config.Jitter > 0 {
			sleep += time.Duration(rand.Int63n(int64(config.Jitter)))
		}
		if sleep > maxDelay {
			sleep = maxDelay
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return fmt.Errorf("retry failed after %d attempts: %w", attempts, lastErr)
}
