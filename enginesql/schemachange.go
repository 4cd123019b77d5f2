package enginesql

import (
	"context"
	"fmt"

	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/internal/sqlops"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/table"
)

func currentColumnType(schema table.Schema, name string) table.Kind {
	return schema.TypeOf(name)
}

// ExecSchemaChange applies one schema-change step for SQLite. Rename and
// drop and add use plain ALTER TABLE; alter-type rebuilds the table since
// SQLite has no ALTER COLUMN TYPE.
func (s *SQLite) ExecSchemaChange(ctx context.Context, tableName string, change plan.SchemaChangePayload, schema table.Schema, key []string) error {
	switch change.Kind {
	case plan.RenameColumn:
		ddl := sqlops.RenameColumnDDL(typesbridge.SQLite, quoteBacktick, tableName, change, currentColumnType(schema, change.ColumnName))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("enginesql: sqlite rename column: %w", err)
		}
		return nil
	case plan.DropColumn:
		ddl := sqlops.DropColumnDDL(quoteBacktick, tableName, change)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("enginesql: sqlite drop column: %w", err)
		}
		return nil
	case plan.AddColumn:
		ddl := sqlops.AddColumnDDL(typesbridge.SQLite, quoteBacktick, tableName, change)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("enginesql: sqlite add column: %w", err)
		}
		return nil
	case plan.AlterColumnType:
		return s.AlterColumnType(ctx, tableName, change.ColumnName, change.ColumnType, schema, key)
	default:
		return fmt.Errorf("enginesql: unknown schema change kind %v", change.Kind)
	}
}

// ExecSchemaChange applies one schema-change step for MySQL.
func (m *MySQL) ExecSchemaChange(ctx context.Context, tableName string, change plan.SchemaChangePayload, schema table.Schema, key []string) error {
	var ddl string
	switch change.Kind {
	case plan.RenameColumn:
		ddl = sqlops.RenameColumnDDL(typesbridge.MySQL, quoteBacktick, tableName, change, currentColumnType(schema, change.ColumnName))
	case plan.DropColumn:
		ddl = sqlops.DropColumnDDL(quoteBacktick, tableName, change)
	case plan.AddColumn:
		ddl = sqlops.AddColumnDDL(typesbridge.MySQL, quoteBacktick, tableName, change)
	case plan.AlterColumnType:
		ddl = sqlops.AlterColumnTypeDDL(typesbridge.MySQL, quoteBacktick, tableName, change)
	default:
		return fmt.Errorf("enginesql: unknown schema change kind %v", change.Kind)
	}
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("enginesql: mysql schema change: %w", err)
	}
	return nil
}

// ExecSchemaChange applies one schema-change step for Postgres.
func (p *Postgres) ExecSchemaChange(ctx context.Context, tableName string, change plan.SchemaChangePayload, schema table.Schema, key []string) error {
	var ddl string
	switch change.Kind {
	case plan.RenameColumn:
		ddl = sqlops.RenameColumnDDL(typesbridge.Postgres, quoteDouble, tableName, change, currentColumnType(schema, change.ColumnName))
	case plan.DropColumn:
		ddl = sqlops.DropColumnDDL(quoteDouble, tableName, change)
	case plan.AddColumn:
		ddl = sqlops.AddColumnDDL(typesbridge.Postgres, quoteDouble, tableName, change)
	case plan.AlterColumnType:
		ddl = sqlops.AlterColumnTypeDDL(typesbridge.Postgres, quoteDouble, tableName, change)
	default:
		return fmt.Errorf("enginesql: unknown schema change kind %v", change.Kind)
	}
	if _, err := p.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("enginesql: postgres schema change: %w", err)
	}
	return nil
}
