// Package retry implements the exponential-backoff-with-jitter retry policy
// used by the transactional executor when a step fails with a transient
// connection or transaction fault.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy configures retry behavior. The zero value is not usable; build one
// with Default or New.
type Policy struct {
	MaxAttempts      int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	ExponentialBase  float64
	Jitter           bool
	JitterMax        time.Duration
}

// Default returns the policy's default configuration: 3 attempts, 100ms
// initial delay, 30s cap, base 2 backoff, up to 1s of jitter.
func Default() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		JitterMax:       time.Second,
	}
}

// CalculateDelay returns the delay before the given attempt (0-based: the
// first retry is attempt 0). delay(n) = min(initial*base^n, max) + U(0, jitterMax).
func (p Policy) CalculateDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.ExponentialBase, float64(attempt))
	if max := float64(p.MaxDelay); delay > max {
		delay = max
	}
	d := time.Duration(delay)
	if p.Jitter && p.JitterMax > 0 {
		d += time.Duration(rand.Int63n(int64(p.JitterMax) + 1))
	}
	return d
}

// Classifier reports whether an error should be retried.
type Classifier func(error) bool

// Do runs fn, retrying per the policy while isRetryable(err) is true, up to
// MaxAttempts total attempts. It returns the last error if every attempt
// fails, or nil on the first success. ctx cancellation aborts the wait
// between attempts immediately. isDeadlock may be nil; when it classifies
// an attempt's error as a deadlock, a small extra backoff proportional to
// how long this call has already been retrying is added on top of the
// policy's own delay, so a deadlock that keeps recurring backs off faster
// than the base exponential curve alone would.
func Do(ctx context.Context, p Policy, isRetryable, isDeadlock Classifier, fn func(ctx context.Context) error) error {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts-1 {
			return err
		}
		delay := p.CalculateDelay(attempt)
		if isDeadlock != nil && isDeadlock(err) {
			delay += deadlockExtraBackoff(time.Since(start))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// deadlockExtraBackoff adds a delay proportional to elapsed time on top of
// the policy's normal backoff before retrying a deadlock, capped well below
// the policy's own MaxDelay so it never dominates the wait.
func deadlockExtraBackoff(elapsed time.Duration) time.Duration {
	extra := elapsed / 10
	const maxExtra = 2 * time.Second
	if extra > maxExtra {
		extra = maxExtra
	}
	return extra
}

// Attempt records one retry decision for callers that want visibility into
// what the executor did, without logging it themselves (the library stays
// silent by default — see SPEC_FULL.md's ambient logging decision).
type Attempt struct {
	Number  int
	Err     error
	Delay   time.Duration
	Retried bool
}

// DoObserved behaves like Do but additionally returns the sequence of
// attempts made, for callers (e.g. the executor) that want to surface retry
// history as structured data rather than side-channel logs.
func DoObserved(ctx context.Context, p Policy, isRetryable, isDeadlock Classifier, fn func(ctx context.Context) error) (error, []Attempt) {
	start := time.Now()
	var lastErr error
	var history []Attempt
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			history = append(history, Attempt{Number: attempt, Err: nil, Retried: false})
			return nil, history
		}
		lastErr = err
		retryable := isRetryable(err) && attempt < p.MaxAttempts-1
		if !retryable {
			history = append(history, Attempt{Number: attempt, Err: err, Retried: false})
			return err, history
		}
		delay := p.CalculateDelay(attempt)
		if isDeadlock != nil && isDeadlock(err) {
			delay += deadlockExtraBackoff(time.Since(start))
		}
		history = append(history, Attempt{Number: attempt, Err: err, Delay: delay, Retried: true})
		select {
		case <-ctx.Done():
			return ctx.Err(), history
		case <-time.After(delay):
		}
	}
	return lastErr, history
}

// IsContextDone reports whether err is context.DeadlineExceeded or
// context.Canceled, wrapped or not.
func IsContextDone(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
