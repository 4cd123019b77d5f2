package dbsync

import (
	"context"

	"github.com/eddiethedean/dbsync/internal/executor"
	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/table"
)

// engineAdapter narrows an Engine down to the executor.DataEngine shape,
// so internal/executor never needs to import the root package back.
type engineAdapter struct {
	engine Engine
}

func (a engineAdapter) Dialect() typesbridge.Dialect { return a.engine.Dialect() }

func (a engineAdapter) BeginTx(ctx context.Context) (executor.DataTx, error) {
	tx, err := a.engine.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return txAdapter{tx: tx}, nil
}

// txAdapter narrows a Tx down to the executor.DataTx shape.
type txAdapter struct {
	tx Tx
}

func (a txAdapter) Exec(ctx context.Context, query string, args ...any) error {
	_, err := a.tx.ExecContext(ctx, query, args...)
	return err
}

func (a txAdapter) Commit() error   { return a.tx.Commit() }
func (a txAdapter) Rollback() error { return a.tx.Rollback() }

// schemaAdapter narrows an Engine down to the executor.SchemaExecutor shape.
type schemaAdapter struct {
	engine Engine
}

func (a schemaAdapter) ExecSchemaChange(ctx context.Context, tableName string, change plan.SchemaChangePayload, schema table.Schema, key []string) error {
	return a.engine.ExecSchemaChange(ctx, tableName, change, schema, key)
}
