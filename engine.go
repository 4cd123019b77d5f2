package dbsync

import (
	"context"
	"database/sql"

	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/table"
)

// Dialect re-exports the type bridge's dialect identifier so callers never
// need to import internal/typesbridge directly.
type Dialect = typesbridge.Dialect

const (
	SQLite   = typesbridge.SQLite
	MySQL    = typesbridge.MySQL
	Postgres = typesbridge.Postgres
)

// ColumnInfo describes one column as introspected from the live database,
// used when pulling a table's current schema.
type ColumnInfo struct {
	Name     string
	Type     table.Kind
	Nullable bool
}

// PoolStatus reports the connection pool's live counters, mirroring
// database/sql.DBStats for the subset the health checker cares about.
type PoolStatus struct {
	OpenConnections int
	InUse           int
	Idle            int
}

// Tx is the subset of *sql.Tx the executor needs: it can run statements and
// be committed or rolled back. Engines implement this over database/sql,
// sqlx, or a test double.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Commit() error
	Rollback() error
}

// Engine is the capability contract a dialect adapter must satisfy: enough
// to introspect a table's schema, run a transaction of plan steps, and
// report pool health. enginesql provides SQLite, MySQL, and Postgres
// implementations; callers may supply their own for a fourth dialect.
type Engine interface {
	// Dialect identifies which SQL rendering rules this engine uses.
	Dialect() Dialect

	// Columns introspects tableName's live column set.
	Columns(ctx context.Context, tableName string) ([]ColumnInfo, error)

	// PullRows reads every row of tableName into memory, in no particular
	// order; the caller re-associates rows into a table.Table.
	PullRows(ctx context.Context, tableName string, cols []ColumnInfo) ([]table.Row, error)

	// TableExists reports whether tableName exists in the database.
	TableExists(ctx context.Context, tableName string) (bool, error)

	// CreateTable issues the DDL to create tableName with the given schema
	// and primary key.
	CreateTable(ctx context.Context, tableName string, schema table.Schema, key []string) error

	// ExecSchemaChange applies one schema-change plan step (rename, drop,
	// add, or alter-type) outside of any data transaction, per spec.md
	// §4.6. SQLite's implementation rebuilds the table for alter-type;
	// MySQL/Postgres ALTER in place.
	ExecSchemaChange(ctx context.Context, tableName string, change plan.SchemaChangePayload, schema table.Schema, key []string) error

	// Begin opens a new transaction for executing plan steps.
	Begin(ctx context.Context) (Tx, error)

	// Quote renders an identifier per the dialect's quoting rules
	// (backtick for MySQL/SQLite, double-quote for Postgres).
	Quote(identifier string) string

	// Placeholder renders the Nth (1-based) bind placeholder for this
	// dialect ("?" for MySQL/SQLite, "$N" for Postgres).
	Placeholder(n int) string

	// Pool reports the underlying connection pool's live status.
	Pool() PoolStatus

	// Ping verifies connectivity, for health checks.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
