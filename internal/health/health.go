// Package health implements the connection health probe and pool-status
// snapshot: a bounded "SELECT 1" ping and a read of the underlying
// connection pool's live counters, both read-only and side-effect-free.
package health

import (
	"context"
	"time"
)

// Pinger opens a connection bounded by a timeout and executes a trivial
// query. Engines implement this directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe runs a bounded health check against p, returning true if the ping
// succeeds within timeout.
func Probe(ctx context.Context, p Pinger, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx) == nil
}

// State tracks consecutive probe outcomes and derives a coarse health
// classification, the same OK/Degraded/Down state machine the teacher's
// target health tracker uses for reachability probes.
type Status string

const (
	OK       Status = "ok"
	Degraded Status = "degraded"
	Down     Status = "down"
)

// Policy configures how many consecutive failures/successes move the
// state machine between OK, Degraded, and Down.
type Policy struct {
	DegradedWindow    time.Duration
	DownFailures      int
	RecoverSuccesses  int
}

// DefaultPolicy mirrors the teacher's target health defaults: a 30s
// degraded window, 3 failures to go fully down, 2 successes to recover.
func DefaultPolicy() Policy {
	return Policy{
		DegradedWindow:   30 * time.Second,
		DownFailures:     3,
		RecoverSuccesses: 2,
	}
}

// State is the connection's current health, updated by Next as probes
// complete.
type State struct {
	Current              Status
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastTransitionAt     time.Time
}

// Next applies one probe outcome to state, returning the updated state.
// A success immediately clears the failure streak; enough consecutive
// successes recover a Degraded/Down connection back to OK. A failure from
// OK moves to Degraded; enough consecutive failures within DegradedWindow
// moves Degraded to Down. A failure window that has expired restarts the
// failure count rather than escalating immediately.
func Next(policy Policy, state State, success bool, now time.Time) State {
	if state.Current == "" {
		state.Current = OK
	}
	if state.LastTransitionAt.IsZero() {
		state.LastTransitionAt = now
	}

	if success {
		state.ConsecutiveSuccesses++
		state.ConsecutiveFailures = 0
		if (state.Current == Degraded || state.Current == Down) && state.ConsecutiveSuccesses >= policy.RecoverSuccesses {
			state.Current = OK
			state.LastTransitionAt = now
		}
		return state
	}

	state.ConsecutiveFailures++
	state.ConsecutiveSuccesses = 0
	switch state.Current {
	case OK:
		state.Current = Degraded
		state.LastTransitionAt = now
	case Degraded:
		if now.Sub(state.LastTransitionAt) > policy.DegradedWindow {
			state.ConsecutiveFailures = 1
			state.LastTransitionAt = now
			return state
		}
		if state.ConsecutiveFailures >= policy.DownFailures {
			state.Current = Down
			state.LastTransitionAt = now
		}
	case Down:
		// stays down until enough consecutive successes arrive
	}
	return state
}

// PoolSnapshot is the read-only pool-status view spec.md §4.9 calls for:
// {url, pool_size, checked_in, checked_out, overflow}, with fields a given
// driver can't report simply omitted (zero-valued).
type PoolSnapshot struct {
	URL          string
	PoolSize     int
	CheckedIn    int
	CheckedOut   int
	Overflow     int
}
