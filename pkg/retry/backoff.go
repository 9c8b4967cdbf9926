// Package retry provides the backoff policy used for transient upstream
// failures during a scan.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pubguard/engine/pkg/errors"
)

// Strategy defines how the delay grows between attempts.
type Strategy int

const (
	// StrategyExponential uses exponential backoff: base * 2^(attempt-1)
	StrategyExponential Strategy = iota

	// StrategyLinear uses linear backoff: base * attempt
	StrategyLinear

	// StrategyConstant uses constant backoff: base (no increase)
	StrategyConstant
)

// Policy configures the backoff behavior. Scans are interactive, so the
// defaults are short: a source that stays down after a few seconds is
// reported as failed coverage rather than waited on.
type Policy struct {
	// Strategy is the backoff strategy to use.
	Strategy Strategy

	// Base is the base interval for backoff calculation.
	Base time.Duration

	// Max caps the interval between attempts.
	Max time.Duration

	// Jitter adds randomness to prevent thundering herd.
	// Value between 0.0 (no jitter) and 1.0 (full jitter).
	Jitter float64

	// MaxAttempts bounds the total number of attempts (including the first).
	MaxAttempts int
}

// DefaultPolicy returns the policy used by the upstream connectors.
func DefaultPolicy() *Policy {
	return &Policy{
		Strategy:    StrategyExponential,
		Base:        500 * time.Millisecond,
		Max:         8 * time.Second,
		Jitter:      0.1,
		MaxAttempts: 3,
	}
}

// Delay returns the wait before the given attempt number (1-based).
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var interval time.Duration
	switch p.Strategy {
	case StrategyExponential:
		interval = time.Duration(float64(p.Base) * math.Pow(2, float64(attempt-1)))
	case StrategyLinear:
		interval = time.Duration(int64(p.Base) * int64(attempt))
	default:
		interval = p.Base
	}

	if p.Max > 0 && interval > p.Max {
		interval = p.Max
	}

	if p.Jitter > 0 {
		delta := float64(interval) * p.Jitter
		interval = time.Duration(float64(interval) - delta + rand.Float64()*2*delta)
	}

	return interval
}

// Do runs fn up to MaxAttempts times, sleeping per the policy between
// attempts. Only retryable errors (rate limits, timeouts, 5xx) are retried;
// everything else is returned immediately. Context cancellation aborts the
// wait.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.IsRetryable(err) || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return err
}
