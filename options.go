package dbsync

import (
	"time"

	"github.com/eddiethedean/dbsync/conflict"
	"github.com/eddiethedean/dbsync/internal/tracker"
	"github.com/eddiethedean/dbsync/retry"
)

// Options configures a Database or TrackedTable's synchronization
// behavior: tracking granularity, conflict handling, retry policy, and
// per-operation timeouts.
type Options struct {
	TrackingMode     tracker.Mode
	ConflictStrategy conflict.Strategy
	ConflictResolver conflict.Resolver
	RetryPolicy      retry.Policy
	QueryTimeout     time.Duration
	TxTimeout        time.Duration

	// ForceSequential decides, per dialect, whether a multi-table Push
	// must serialize its per-table transactions rather than run them
	// concurrently. It defaults to forcing sqlite sequential (a single
	// writer at a time) and allowing everything else to run concurrently.
	ForceSequential func(dialect Dialect) bool

	// MaxConcurrentPushes bounds how many tables PushAll pushes at once
	// when not forced sequential. Zero means unbounded (one goroutine per
	// table).
	MaxConcurrentPushes int
}

// DefaultOptions returns the engine's default configuration: incremental
// tracking, last-writer-wins conflicts, the retry package's default
// backoff policy, and generous query/transaction timeouts.
func DefaultOptions() Options {
	return Options{
		TrackingMode:     tracker.Incremental,
		ConflictStrategy: conflict.LastWriterWins,
		RetryPolicy:      retry.Default(),
		QueryTimeout:     30 * time.Second,
		TxTimeout:        60 * time.Second,
		ForceSequential:  defaultForceSequential,
	}
}

func defaultForceSequential(dialect Dialect) bool {
	return dialect == SQLite
}
