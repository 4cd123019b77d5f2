// Package enginesql provides the three dialect-specific Engine
// implementations used by dbsync: SQLite (via modernc.org/sqlite), MySQL
// (via go-sql-driver/mysql), and Postgres (via lib/pq). Each wraps a
// sqlx.DB for row-scanning convenience and implements the identifier
// quoting and placeholder rules its dialect requires.
package enginesql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	dbsync "github.com/eddiethedean/dbsync"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/table"
)

// txWrapper adapts *sqlx.Tx to dbsync.Tx.
type txWrapper struct {
	tx *sqlx.Tx
}

func (w txWrapper) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return w.tx.ExecContext(ctx, query, args...)
}

func (w txWrapper) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return w.tx.QueryContext(ctx, query, args...)
}

func (w txWrapper) Commit() error   { return w.tx.Commit() }
func (w txWrapper) Rollback() error { return w.tx.Rollback() }

// base holds behavior shared by every dialect engine: a sqlx.DB handle and
// the generic introspection/row-pull logic. Dialect-specific quoting,
// placeholders, and driver/DSN setup live in each concrete type's own file
// (sqlite.go, mysql.go, postgres.go).
type base struct {
	db      *sqlx.DB
	dialect typesbridge.Dialect
	quote   func(string) string
}

func (b *base) Dialect() dbsync.Dialect { return b.dialect }

func (b *base) Quote(identifier string) string { return b.quote(identifier) }

func (b *base) Begin(ctx context.Context) (dbsync.Tx, error) {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("enginesql: begin transaction: %w", err)
	}
	return txWrapper{tx: tx}, nil
}

func (b *base) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *base) Close() error {
	return b.db.Close()
}

func (b *base) Pool() dbsync.PoolStatus {
	stats := b.db.Stats()
	return dbsync.PoolStatus{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
	}
}

func (b *base) pullRows(ctx context.Context, tableName string, cols []dbsync.ColumnInfo) ([]table.Row, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = b.quote(c.Name)
	}
	query := "SELECT " + strings.Join(names, ", ") + " FROM " + b.quote(tableName)
	rows, err := b.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("enginesql: pulling rows from %s: %w", tableName, err)
	}
	defer rows.Close()

	var out []table.Row
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("enginesql: scanning row from %s: %w", tableName, err)
		}
		row := make(table.Row, len(cols))
		for _, c := range cols {
			v, err := typesbridge.Coerce(c.Type, raw[c.Name])
			if err != nil {
				return nil, fmt.Errorf("enginesql: coercing column %q: %w", c.Name, err)
			}
			row[c.Name] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func createTableDDL(dialect typesbridge.Dialect, quote func(string) string, tableName string, schema table.Schema, key []string) string {
	keySet := make(map[string]bool, len(key))
	for _, k := range key {
		keySet[k] = true
	}
	var cols []string
	for _, c := range schema.Columns {
		def := quote(c.Name) + " " + typesbridge.SQLType(dialect, c.Type)
		cols = append(cols, def)
	}
	if len(key) > 0 {
		quoted := make([]string, len(key))
		for i, k := range key {
			quoted[i] = quote(k)
		}
		cols = append(cols, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	return "CREATE TABLE " + quote(tableName) + " (" + strings.Join(cols, ", ") + ")"
}
