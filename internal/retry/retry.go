// Package retry provides exponential backoff for calls against the content service.
//
// The delay before retry n (0-based) is BaseDelay * 2^n, capped at MaxDelay.
// Rate-limit responses (HTTP 429) are retried without consuming the attempt
// budget, bounded only by MaxRateLimitRetries.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

const (
	defaultMaxAttempts         = 3
	defaultBaseDelay           = 1 * time.Second
	defaultMaxDelay            = 30 * time.Second
	defaultMaxRateLimitRetries = 10
)

// Config provides retry configuration
type Config struct {
	MaxAttempts         int           // Attempts for generic failures (0 = default 3)
	BaseDelay           time.Duration // Delay before the first retry
	MaxDelay            time.Duration // Upper bound for any single delay
	MaxRateLimitRetries int           // Extra attempts granted to 429 responses (0 = default 10)

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns the defaults used by the fetcher.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         defaultMaxAttempts,
		BaseDelay:           defaultBaseDelay,
		MaxDelay:            defaultMaxDelay,
		MaxRateLimitRetries: defaultMaxRateLimitRetries,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxRateLimitRetries <= 0 {
		c.MaxRateLimitRetries = defaultMaxRateLimitRetries
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	return c
}

// Backoff returns the delay applied before retry number attempt (0-based).
func (c Config) Backoff(attempt int) time.Duration {
	c = c.normalized()
	if attempt < 0 {
		attempt = 0
	}
	delay := c.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxDelay || delay <= 0 {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// Do executes fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The returned error wraps the last failure.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.normalized()

	var lastErr error
	attempts := 0   // every call, indexes the backoff
	failures := 0   // generic failures, bounded by MaxAttempts
	rateLimits := 0 // 429 responses, bounded by MaxRateLimitRetries

	for {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempts, stderrors.Join(err, lastErr))
			}
			return err
		}

		err := fn(ctx)
		attempts++
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return err
		}

		if stderrors.Is(err, errors.ErrRateLimited) {
			rateLimits++
			if rateLimits > cfg.MaxRateLimitRetries {
				return fmt.Errorf("retry failed after %d rate-limited attempts: %w", rateLimits, err)
			}
		} else {
			failures++
			if failures >= cfg.MaxAttempts {
				return fmt.Errorf("retry failed after %d attempts: %w", attempts, err)
			}
		}

		delay := cfg.Backoff(attempts - 1)
		var rl *errors.RateLimitedError
		if stderrors.As(err, &rl) && rl.RetryAfter > delay {
			delay = min(rl.RetryAfter, cfg.MaxDelay)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempts, delay, err)
		}
		if serr := cfg.Sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempts+1, stderrors.Join(serr, lastErr))
		}
	}
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
