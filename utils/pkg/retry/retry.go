// Package retry is the caller-side retry policy for transient infrastructure
// failures (database connects, container startup). The ledger core never
// retries; a typed ledger failure is terminal and is not retryable here.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseBackoff: 250 * time.Millisecond,
		MaxBackoff:  4 * time.Second,
	}
}

// Do runs fn with exponential backoff and jitter until it succeeds, the
// error is not retryable, or attempts are exhausted.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(cfg, attempt-1)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// IsRetryable reports whether an error looks like a transient connectivity
// failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"broken pipe",
		"eof",
		"timeout",
		"temporary failure",
		"service unavailable",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// backoff is base * 2^attempt capped at max, scaled by a random factor in
// [0.5, 1.0) to spread out concurrent retries.
func backoff(cfg Config, attempt int) time.Duration {
	d := cfg.BaseBackoff * time.Duration(1<<uint(attempt))
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
}
