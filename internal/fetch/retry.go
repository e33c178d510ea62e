package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/roadmap"
)

const (
	backoffBase    = 1 * time.Second
	backoffCap     = 30 * time.Second
	jitterFraction = 0.3
)

// FetchWithRetry attempts FetchOnce up to RetryCount+1 times.
//
// Between attempts it sleeps min(base * 2^n, cap) plus random jitter of up to
// 30% of that value, n counting from zero for the sleep after the first
// failure. Non-retryable failures (shape validation, caller cancellation)
// abort immediately. Intermediate failures are logged and discarded; only the
// final failure is surfaced.
func (c *Client) FetchWithRetry(ctx context.Context) ([]roadmap.Item, error) {
	attempts := c.cfg.RetryCount + 1

	var lastErr error

	for attempt := range attempts {
		if attempt > 0 {
			delay := c.backoffDelay(attempt - 1)

			c.logger.Warn("Fetch attempt failed, backing off",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("backoff interrupted: %w", ctx.Err())
			}
		}

		items, err := c.FetchOnce(ctx)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Fetch recovered after retry",
					slog.Int("attempt", attempt+1),
					slog.Int("items", len(items)),
				)
			}

			return items, nil
		}

		if !Retryable(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("all %d fetch attempts failed: %w", attempts, lastErr)
}

// backoffDelay computes the sleep before attempt n+1, n counting failed
// attempts from zero: min(base * 2^n, cap) + jitter(<= 30%).
func (c *Client) backoffDelay(n int) time.Duration {
	delay := c.backoffBase << n
	if delay > c.backoffCap || delay <= 0 {
		delay = c.backoffCap
	}

	jitter := time.Duration(rand.Float64() * jitterFraction * float64(delay))

	return delay + jitter
}
