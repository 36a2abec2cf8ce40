// Package retry provides exponential-backoff retry for transient
// failures on external calls (GitHub API, LLM completions).
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls backoff behavior.
type Config struct {
	MaxRetries int           // retry attempts after the first try
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // cap on any single delay
	Multiplier float64       // exponential growth factor
	Jitter     bool          // +/-10% randomization on each delay
}

// GitHubConfig returns backoff tuned for GitHub API calls.
func GitHubConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// LLMConfig returns backoff tuned for completion requests, which are
// slower and rate-limited more aggressively.
func LLMConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.5,
		Jitter:     true,
	}
}

// Do runs op, retrying on retryable errors until success, the retry
// budget is spent, or ctx is cancelled. The last error is returned.
func Do(ctx context.Context, cfg Config, name string, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt >= cfg.MaxRetries || !Retryable(lastErr) {
			return lastErr
		}

		delay := backoffDelay(cfg, attempt)
		log.Debug().
			Str("operation", name).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(lastErr).
			Msg("retrying after transient failure")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// Retryable reports whether an error looks like a transient transport or
// quota failure worth retrying.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	transient := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"no such host",
		"network unreachable",
		"broken pipe",
	}

	for _, s := range transient {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
