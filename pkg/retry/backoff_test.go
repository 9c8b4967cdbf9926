package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pubguard/engine/pkg/errors"
)

func TestPolicy_Delay(t *testing.T) {
	p := &Policy{Strategy: StrategyExponential, Base: 100 * time.Millisecond, Max: 400 * time.Millisecond}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 400 * time.Millisecond}, // capped
		{0, 100 * time.Millisecond}, // clamped to first attempt
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.expected {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestPolicy_DelayLinear(t *testing.T) {
	p := &Policy{Strategy: StrategyLinear, Base: 100 * time.Millisecond}
	if got := p.Delay(3); got != 300*time.Millisecond {
		t.Errorf("Delay(3) = %v, want 300ms", got)
	}
}

func TestPolicy_DelayJitterBounds(t *testing.T) {
	p := &Policy{Strategy: StrategyConstant, Base: time.Second, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0.5s, 1.5s]", d)
		}
	}
}

func TestDo_RetriesRetryable(t *testing.T) {
	p := &Policy{Strategy: StrategyConstant, Base: time.Millisecond, MaxAttempts: 3}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.ErrRateLimited
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	p := &Policy{Strategy: StrategyConstant, Base: time.Millisecond, MaxAttempts: 5}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.InvalidTarget("x", "bad")
	})

	if !errors.IsInvalidTarget(err) {
		t.Errorf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := &Policy{Strategy: StrategyConstant, Base: time.Millisecond, MaxAttempts: 3}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.ErrTimeout
	})

	if !errors.IsTimeout(err) {
		t.Errorf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ContextCancelAbortsWait(t *testing.T) {
	p := &Policy{Strategy: StrategyConstant, Base: time.Minute, MaxAttempts: 2}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Do(ctx, func() error { return errors.ErrRateLimited })
	if err != context.Canceled {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Do() did not abort promptly")
	}
}
