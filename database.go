package dbsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eddiethedean/dbsync/conflict"
	"github.com/eddiethedean/dbsync/internal/executor"
	"github.com/eddiethedean/dbsync/internal/health"
	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/internal/tracker"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/retry"
	"github.com/eddiethedean/dbsync/table"
)

// Database coordinates a set of TrackedTables against one Engine: it pulls
// their current state, pushes back tracked changes as a minimal execution
// plan per table, and resolves conflicts between a caller's pending local
// changes and concurrent remote modifications. It is the Go analogue of the
// original library's DataBase, adapted from a dict of DataFrame-backed
// Tables to a registry of TrackedTables.
type Database struct {
	engine Engine
	opts   Options

	mu     sync.RWMutex
	tables map[string]*TrackedTable
}

// NewDatabase builds a Database over engine using opts.
func NewDatabase(engine Engine, opts Options) *Database {
	return &Database{
		engine: engine,
		opts:   opts,
		tables: make(map[string]*TrackedTable),
	}
}

// AddTable registers tt under its own name, replacing any table previously
// registered with that name.
func (db *Database) AddTable(tt *TrackedTable) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables[tt.Name()] = tt
}

// Table returns the table registered under name, if any.
func (db *Database) Table(name string) (*TrackedTable, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	tt, ok := db.tables[name]
	return tt, ok
}

// TableNames returns the names of every registered table, in no particular
// order.
func (db *Database) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.tables))
	for name := range db.tables {
		out = append(out, name)
	}
	return out
}

// Pull replaces the named table's contents with what is currently in the
// database, re-baselining its tracker so prior local changes are discarded.
// The table must already be registered (via AddTable) so its primary key is
// known.
func (db *Database) Pull(ctx context.Context, name string) error {
	tt, ok := db.Table(name)
	if !ok {
		return NewValidationFault(fmt.Sprintf("table %q is not registered", name), map[string]any{"table": name})
	}
	fresh, err := db.pullTable(ctx, name, tt.PrimaryKey())
	if err != nil {
		return err
	}
	db.AddTable(NewTrackedTable(name, fresh, tt.Mode()))
	return nil
}

func (db *Database) pullTable(ctx context.Context, name string, key pk.Spec) (*table.Table, error) {
	cols, err := db.engine.Columns(ctx, name)
	if err != nil {
		return nil, NewConnectionFault(err, "introspecting table columns", map[string]any{"table": name})
	}
	rows, err := db.engine.PullRows(ctx, name, cols)
	if err != nil {
		return nil, NewConnectionFault(err, "pulling table rows", map[string]any{"table": name})
	}
	schema := table.NewSchema(schemaColumns(cols)...)
	t, err := table.New(schema, key, rows)
	if err != nil {
		return nil, NewSchemaFault(err.Error(), map[string]any{"table": name})
	}
	return t, nil
}

func schemaColumns(cols []ColumnInfo) []table.Column {
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		out[i] = table.Column{Name: c.Name, Type: c.Type}
	}
	return out
}

// Push synchronizes one registered table: it detects conflicts between the
// table's pending local changes and the database's current state, resolves
// them per the configured ConflictStrategy, builds the minimal execution
// plan for what remains, and runs it. On success the table's tracker is
// reset so it reflects the new baseline.
//
// When the table does not exist yet, CreateTable only issues the schema
// DDL — it never carries rows — so the table's entire current row set (not
// just whatever the tracker happens to have recorded since construction)
// is pushed as one insert step, the Go analogue of the original library's
// to_sql_k call on a table's first push.
func (db *Database) Push(ctx context.Context, name string) error {
	tt, ok := db.Table(name)
	if !ok {
		return NewValidationFault(fmt.Sprintf("table %q is not registered", name), map[string]any{"table": name})
	}
	if err := tt.Validate(); err != nil {
		return err
	}

	exists, err := db.engine.TableExists(ctx, name)
	if err != nil {
		return NewConnectionFault(err, "checking table existence", map[string]any{"table": name})
	}

	if !exists {
		if err := db.engine.CreateTable(ctx, name, tt.Schema(), tt.PrimaryKey()); err != nil {
			return NewSchemaFault(err.Error(), map[string]any{"table": name})
		}
		if err := db.runPlan(ctx, tt, initialInsertPlan(tt)); err != nil {
			return err
		}
		tt.Reset()
		return nil
	}

	if err := db.resolveConflicts(ctx, tt); err != nil {
		return err
	}

	p := plan.Build(tt.tracker, tt.PrimaryKey(), tt.Data())
	if !p.HasChanges() {
		return nil
	}
	if err := db.runPlan(ctx, tt, p); err != nil {
		return err
	}

	tt.Reset()
	return nil
}

// initialInsertPlan builds a one-step plan inserting every row currently in
// tt, used the first time a table is pushed: the tracker's own diff would
// otherwise see these rows as already baselined and never emit them.
func initialInsertPlan(tt *TrackedTable) plan.Plan {
	rows := tt.Data().Rows()
	if len(rows) == 0 {
		return plan.Plan{}
	}
	return plan.Plan{Steps: []plan.Step{{
		Kind:          plan.InsertRows,
		Description:   fmt.Sprintf("Insert %d row(s)", len(rows)),
		Priority:      plan.PriorityInsert,
		InsertRecords: rows,
	}}}
}

// runPlan executes p against name's table, translating executor failures
// (including a transaction-timeout) into the appropriate Fault.
func (db *Database) runPlan(ctx context.Context, tt *TrackedTable, p plan.Plan) error {
	if !p.HasChanges() {
		return nil
	}
	cfg := executor.Config{
		Policy:      db.opts.RetryPolicy,
		IsRetryable: db.classifierFor(),
		IsDeadlock:  db.deadlockClassifierFor(),
		TxTimeout:   db.opts.TxTimeout,
	}
	err := executor.Run(ctx, p, schemaAdapter{db.engine}, engineAdapter{db.engine}, tt.Name(), tt.Schema(), tt.PrimaryKey(), cfg)
	if err == nil {
		return nil
	}
	var te *executor.TimeoutError
	if errors.As(err, &te) {
		return NewTransactionFault(err, "transaction timed out", map[string]any{
			"table":   tt.Name(),
			"schema":  tt.Schema(),
			"timeout": te.Timeout,
			"elapsed": te.Elapsed,
		})
	}
	return NewTransactionFault(err, "executing plan", map[string]any{"table": tt.Name()})
}

// resolveConflicts pulls the table's current remote state, detects
// conflicts against the table's pending updates, and applies the resolved
// values back onto tt before a plan is built from it.
func (db *Database) resolveConflicts(ctx context.Context, tt *TrackedTable) error {
	remote, err := db.pullTable(ctx, tt.Name(), tt.PrimaryKey())
	if err != nil {
		return err
	}

	localChanges := make(map[string]table.Row)
	keys := make(map[string]pk.Value)
	for _, rc := range tt.tracker.Updates() {
		keyStr := rc.Key.Key()
		keys[keyStr] = rc.Key
		if rs, ok := tt.tracker.RowState(rc.Key); ok && rs.Status == tracker.Update {
			localChanges[keyStr] = rs.NewValues
		} else {
			localChanges[keyStr] = rc.NewData
		}
	}
	if len(localChanges) == 0 {
		return nil
	}

	conflicts := conflict.Detect(localChanges, keys, remote, tt.tracker.Baseline())
	if len(conflicts) == 0 {
		return nil
	}

	resolved, err := conflict.Resolve(conflicts, db.opts.ConflictStrategy, tt.Name(), db.opts.ConflictResolver)
	if err != nil {
		return NewConflictFault(err, "resolving conflicts", map[string]any{"table": tt.Name()})
	}
	for _, c := range conflicts {
		updates := resolved[c.Key.Key()]
		if len(updates) == 0 {
			// An empty resolution (FirstWriterWins) discards the local edit:
			// revert the conflicting columns to the remote's current values
			// so the push doesn't overwrite them with the stale local ones.
			updates = table.Row{}
			for _, col := range c.ConflictingColumns {
				updates[col] = c.Remote[col]
			}
		}
		if err := tt.data.UpdateRow(c.Key, updates); err != nil {
			return NewValidationFault(err.Error(), map[string]any{"table": tt.Name()})
		}
	}
	tt.tracker.ComputeRowChanges(tt.data)
	return nil
}

type retryClassifierEngine interface {
	IsRetryable(err error) bool
}

type deadlockClassifierEngine interface {
	IsDeadlock(err error) bool
}

// classifierFor prefers the engine's own transient-failure classification
// (MySQL and Postgres each classify by driver error code) and falls back to
// the generic string-based classifier for engines that don't implement one.
func (db *Database) classifierFor() retry.Classifier {
	if rc, ok := db.engine.(retryClassifierEngine); ok {
		return rc.IsRetryable
	}
	return retry.IsRetryableGeneric
}

// deadlockClassifierFor prefers the engine's own driver-error-code-based
// deadlock classification and falls back to the generic string-based one.
func (db *Database) deadlockClassifierFor() retry.Classifier {
	if dc, ok := db.engine.(deadlockClassifierEngine); ok {
		return dc.IsDeadlock
	}
	return retry.IsDeadlockGeneric
}

// PushAll pushes every registered table that either has pending local
// changes or does not yet exist in the database. Every selected table is
// validated before any of them is executed: a validation failure on any one
// table raises a Schema fault naming that table and pushes none of them. If
// opts.ForceSequential reports true for the engine's dialect, selected
// tables are then pushed one at a time in name order for determinism;
// otherwise they run concurrently and a failure on any subset is aggregated
// into a single Transaction fault listing every failed table. On overall
// success every pushed table is re-pulled so its baseline reflects what is
// now actually in the database.
func (db *Database) PushAll(ctx context.Context) error {
	names := db.TableNames()

	selected := make([]string, 0, len(names))
	for _, name := range names {
		tt, ok := db.Table(name)
		if !ok {
			continue
		}
		if tt.HasChanges() {
			selected = append(selected, name)
			continue
		}
		exists, err := db.engine.TableExists(ctx, name)
		if err != nil {
			return NewConnectionFault(err, "checking table existence", map[string]any{"table": name})
		}
		if !exists {
			selected = append(selected, name)
		}
	}
	if len(selected) == 0 {
		return nil
	}

	for _, name := range selected {
		tt, _ := db.Table(name)
		if err := tt.Validate(); err != nil {
			return NewSchemaFault(err.Error(), map[string]any{"table": name})
		}
	}

	if db.opts.ForceSequential != nil && db.opts.ForceSequential(db.engine.Dialect()) {
		for _, name := range selected {
			if err := db.Push(ctx, name); err != nil {
				return err
			}
		}
	} else if err := db.pushConcurrent(ctx, selected); err != nil {
		return err
	}

	for _, name := range selected {
		if err := db.Pull(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// pushConcurrent runs Push for every name in names at once, bounded by
// opts.MaxConcurrentPushes when set, and aggregates every failure into one
// Transaction fault rather than returning only the first.
func (db *Database) pushConcurrent(ctx context.Context, names []string) error {
	limit := db.opts.MaxConcurrentPushes
	if limit <= 0 || limit > len(names) {
		limit = len(names)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = db.Push(ctx, name)
		}(i, name)
	}
	wg.Wait()

	var failed []string
	var msgs []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, names[i])
			msgs = append(msgs, fmt.Sprintf("%s: %v", names[i], err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return NewTransactionFault(fmt.Errorf("%s", strings.Join(msgs, "; ")), "pushing tables", map[string]any{"tables": failed})
}

// PullAll replaces every registered table's contents with the database's
// current state.
func (db *Database) PullAll(ctx context.Context) error {
	for _, name := range db.TableNames() {
		if err := db.Pull(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck runs a bounded SELECT-1 probe against the underlying engine,
// returning true if it succeeds within timeout.
func (db *Database) HealthCheck(ctx context.Context, timeout time.Duration) bool {
	return health.Probe(ctx, db.engine, timeout)
}

// PoolSnapshot reports the engine's live connection pool counters.
func (db *Database) PoolSnapshot() health.PoolSnapshot {
	status := db.engine.Pool()
	return health.PoolSnapshot{
		PoolSize:   status.OpenConnections,
		CheckedOut: status.InUse,
		CheckedIn:  status.Idle,
	}
}
