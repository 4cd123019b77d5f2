package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateDelayExponentialWithCap(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, ExponentialBase: 2.0}
	if d := p.CalculateDelay(0); d != 10*time.Millisecond {
		t.Fatalf("attempt 0: got %v, want 10ms", d)
	}
	if d := p.CalculateDelay(1); d != 20*time.Millisecond {
		t.Fatalf("attempt 1: got %v, want 20ms", d)
	}
	if d := p.CalculateDelay(10); d != 50*time.Millisecond {
		t.Fatalf("attempt 10 should be capped at max delay, got %v", d)
	}
}

func TestCalculateDelayJitterNeverNegativeOrBelowBase(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2.0, Jitter: true, JitterMax: 5 * time.Millisecond}
	for i := 0; i < 20; i++ {
		d := p.CalculateDelay(0)
		if d < 10*time.Millisecond || d > 15*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Default(), IsRetryableGeneric, IsDeadlockGeneric, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("got err=%v calls=%d, want nil,1", err, calls)
	}
}

func TestDoRetriesRetryableErrorThenSucceeds(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 1}
	err := Do(context.Background(), p, func(error) bool { return true }, nil, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("deadlock detected")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	sentinel := errors.New("validation failed")
	err := Do(context.Background(), Default(), func(error) bool { return false }, nil, func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for non-retryable error, got %d", calls)
	}
}

func TestDoReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 1}
	err := Do(context.Background(), p, func(error) bool { return true }, nil, func(ctx context.Context) error {
		calls++
		return errors.New("still failing")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDeadlockExtraBackoffIsProportionalAndCapped(t *testing.T) {
	if d := deadlockExtraBackoff(0); d != 0 {
		t.Fatalf("expected zero backoff at zero elapsed, got %v", d)
	}
	if d := deadlockExtraBackoff(5 * time.Second); d != 500*time.Millisecond {
		t.Fatalf("expected 1/10th of elapsed, got %v", d)
	}
	if d := deadlockExtraBackoff(time.Minute); d != 2*time.Second {
		t.Fatalf("expected cap at 2s, got %v", d)
	}
}

func TestDoAddsDeadlockBackoffOnTopOfPolicyDelay(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 1}
	start := time.Now()
	_ = Do(context.Background(), p, func(error) bool { return true }, func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			time.Sleep(30 * time.Millisecond)
			return errors.New("deadlock")
		}
		return nil
	})
	if time.Since(start) < 4*time.Millisecond {
		t.Fatalf("expected extra backoff proportional to elapsed time to lengthen the wait")
	}
}

func TestIsRetryableGenericMatchesDeadlockAndConnection(t *testing.T) {
	cases := map[string]bool{
		"deadlock detected, retry transaction": true,
		"connection reset by peer":             true,
		"syntax error near SELECT":             false,
	}
	for msg, want := range cases {
		got := IsRetryableGeneric(errors.New(msg))
		if got != want {
			t.Fatalf("IsRetryableGeneric(%q) = %v, want %v", msg, got, want)
		}
	}
}
