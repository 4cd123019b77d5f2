// Package executor runs a plan.Plan against an Engine: schema-change steps
// execute first, each to completion on its own (outside any data
// transaction, per spec.md §4.6), then deletes/updates/inserts execute
// together inside one transaction, retried per a retry.Policy on
// transient failures.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/internal/sqlops"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/retry"
	"github.com/eddiethedean/dbsync/table"
)

// SchemaExecutor applies one schema-change step. Engines implement this
// directly (SQLite needs a full rebuild for type changes; MySQL/Postgres
// can ALTER in place) rather than executor hard-coding DDL per dialect.
type SchemaExecutor interface {
	ExecSchemaChange(ctx context.Context, tableName string, change plan.SchemaChangePayload, schema table.Schema, key []string) error
}

// DataEngine is the subset of the Engine interface the data-step phase
// needs: opening a transaction and knowing the dialect for statement
// rendering.
type DataEngine interface {
	Dialect() typesbridge.Dialect
	BeginTx(ctx context.Context) (DataTx, error)
}

// DataTx is a transaction capable of executing rendered statements.
type DataTx interface {
	Exec(ctx context.Context, query string, args ...any) error
	Commit() error
	Rollback() error
}

// Config bundles the retry and timeout behavior of the data-step
// transaction phase, per spec.md §4.6 steps 6-7.
type Config struct {
	Policy retry.Policy

	// IsRetryable classifies a data-step failure as transient (worth
	// retrying the whole transaction) or permanent.
	IsRetryable retry.Classifier

	// IsDeadlock classifies a data-step failure as a deadlock specifically,
	// so Run can add the extra elapsed-time-proportional backoff step 6
	// calls for. May be nil to disable the extra backoff.
	IsDeadlock retry.Classifier

	// TxTimeout bounds the wall-clock time the data-step transaction phase
	// (including every retry) may take before Run gives up and returns a
	// *TimeoutError. Zero disables the bound.
	TxTimeout time.Duration
}

// TimeoutError reports that the data-step transaction phase exceeded
// Config.TxTimeout. Callers translate it into whatever fault type their
// domain uses; it carries the detail spec.md §4.6 step 7 requires.
type TimeoutError struct {
	Table   string
	Timeout time.Duration
	Elapsed time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("executor: table %q exceeded transaction timeout %v (elapsed %v): %v", e.Table, e.Timeout, e.Elapsed, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Run executes every schema step in plan, then every delete/update/insert
// step inside one transaction obtained from engine. Transient failures
// (per cfg.IsRetryable) are retried according to cfg.Policy, with extra
// backoff added for deadlocks (cfg.IsDeadlock); any other failure rolls the
// transaction back and returns a wrapped error immediately. The whole data
// phase, across every retry, is bounded by cfg.TxTimeout.
func Run(ctx context.Context, p plan.Plan, schemaEngine SchemaExecutor, engine DataEngine, tableName string, schema table.Schema, key pk.Spec, cfg Config) error {
	if !p.HasChanges() {
		return nil
	}

	for _, step := range p.StepsOfKind(plan.SchemaChange) {
		if err := schemaEngine.ExecSchemaChange(ctx, tableName, step.SchemaChange, schema, key); err != nil {
			return fmt.Errorf("executor: schema step %q: %w", step.Description, err)
		}
	}

	dataSteps := append(p.StepsOfKind(plan.DeleteRows), append(p.StepsOfKind(plan.UpdateRows), p.StepsOfKind(plan.InsertRows)...)...)
	if len(dataSteps) == 0 {
		return nil
	}

	runOnce := func(ctx context.Context) error {
		tx, err := engine.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("executor: begin transaction: %w", err)
		}
		if err := execDataSteps(ctx, tx, engine.Dialect(), tableName, schema, key, dataSteps); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("executor: commit: %w", err)
		}
		return nil
	}

	txCtx := ctx
	var cancel context.CancelFunc
	if cfg.TxTimeout > 0 {
		txCtx, cancel = context.WithTimeout(ctx, cfg.TxTimeout)
		defer cancel()
	}

	start := time.Now()
	err := retry.Do(txCtx, cfg.Policy, cfg.IsRetryable, cfg.IsDeadlock, runOnce)
	if err != nil && cfg.TxTimeout > 0 && txCtx.Err() == context.DeadlineExceeded {
		return &TimeoutError{Table: tableName, Timeout: cfg.TxTimeout, Elapsed: time.Since(start), Err: err}
	}
	return err
}

func execDataSteps(ctx context.Context, tx DataTx, dialect typesbridge.Dialect, tableName string, schema table.Schema, key pk.Spec, steps []plan.Step) error {
	for _, step := range steps {
		switch step.Kind {
		case plan.DeleteRows:
			stmt, err := sqlops.DeleteStatement(dialect, tableName, key, step.DeleteKeys)
			if err != nil {
				return fmt.Errorf("executor: rendering delete: %w", err)
			}
			if err := tx.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
				return fmt.Errorf("executor: executing delete: %w", err)
			}

		case plan.UpdateRows:
			stmts, err := sqlops.UpdateStatements(dialect, tableName, key, step.UpdateRecords)
			if err != nil {
				return fmt.Errorf("executor: rendering updates: %w", err)
			}
			for _, s := range stmts {
				if err := tx.Exec(ctx, s.SQL, s.Args...); err != nil {
					return fmt.Errorf("executor: executing update: %w", err)
				}
			}

		case plan.InsertRows:
			stmt, err := sqlops.InsertStatements(dialect, tableName, schema, step.InsertRecords)
			if err != nil {
				return fmt.Errorf("executor: rendering inserts: %w", err)
			}
			if err := tx.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
				return fmt.Errorf("executor: executing insert: %w", err)
			}
		}
	}
	return nil
}
