// Package sqlops translates plan.Step values into parameterized SQL
// statements using squirrel as the statement builder, and DDL strings for
// schema-change steps. It does not execute anything itself — see
// internal/executor for that — it only renders statements + args.
package sqlops

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

// Statement is one rendered SQL statement plus its bind arguments.
type Statement struct {
	SQL  string
	Args []any
}

// builderFor returns a squirrel StatementBuilderType configured with the
// dialect's placeholder format: "?" for MySQL/SQLite, "$N" for Postgres.
func builderFor(dialect typesbridge.Dialect) sq.StatementBuilderType {
	if dialect == typesbridge.Postgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// InsertStatements renders one batched multi-row INSERT per call (squirrel
// supports multiple Values() calls on one Insert builder).
func InsertStatements(dialect typesbridge.Dialect, tableName string, schema table.Schema, rows []table.Row) (Statement, error) {
	cols := schema.Names()
	b := builderFor(dialect).Insert(tableName).Columns(cols...)
	for _, r := range rows {
		vals := make([]any, len(cols))
		for i, c := range cols {
			vals[i] = r[c]
		}
		b = b.Values(vals...)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: query, Args: args}, nil
}

// UpdateStatements renders one UPDATE per row (each row may touch a
// different column set, so they cannot be batched into one statement).
func UpdateStatements(dialect typesbridge.Dialect, tableName string, key pk.Spec, rows []table.Row) ([]Statement, error) {
	out := make([]Statement, 0, len(rows))
	for _, r := range rows {
		b := builderFor(dialect).Update(tableName)
		hasSet := false
		for col, val := range r {
			if key.Contains(col) {
				continue
			}
			b = b.Set(col, val)
			hasSet = true
		}
		if !hasSet {
			continue
		}
		eq := sq.Eq{}
		for _, k := range key {
			eq[k] = r[k]
		}
		query, args, err := b.Where(eq).ToSql()
		if err != nil {
			return nil, err
		}
		out = append(out, Statement{SQL: query, Args: args})
	}
	return out, nil
}

// DeleteStatement renders a single DELETE matching every key in keys,
// composite-key-aware: a single-column key becomes `col IN (...)`, a
// composite key becomes an OR of ANDed equality predicates.
func DeleteStatement(dialect typesbridge.Dialect, tableName string, key pk.Spec, keys []pk.Value) (Statement, error) {
	b := builderFor(dialect).Delete(tableName)
	if key.Single() {
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = k.Scalar()
		}
		query, args, err := b.Where(sq.Eq{key[0]: values}).ToSql()
		if err != nil {
			return Statement{}, err
		}
		return Statement{SQL: query, Args: args}, nil
	}

	or := make(sq.Or, 0, len(keys))
	for _, k := range keys {
		eq := sq.Eq{}
		for i, col := range key {
			eq[col] = k[i]
		}
		or = append(or, eq)
	}
	query, args, err := b.Where(or).ToSql()
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: query, Args: args}, nil
}

// AddColumnDDL renders an ALTER TABLE ... ADD COLUMN statement. When change
// carries a non-nil DefaultValue, a DEFAULT clause is appended so existing
// rows are backfilled by the database itself rather than needing a
// follow-up UPDATE per row.
func AddColumnDDL(dialect typesbridge.Dialect, quote func(string) string, tableName string, change plan.SchemaChangePayload) string {
	colType := typesbridge.SQLType(dialect, change.ColumnType)
	ddl := "ALTER TABLE " + quote(tableName) + " ADD COLUMN " + quote(change.ColumnName) + " " + colType
	if change.DefaultValue != nil {
		ddl += " DEFAULT " + typesbridge.SQLLiteral(dialect, change.ColumnType, change.DefaultValue)
	}
	return ddl
}

// DropColumnDDL renders an ALTER TABLE ... DROP COLUMN statement.
func DropColumnDDL(quote func(string) string, tableName string, change plan.SchemaChangePayload) string {
	return "ALTER TABLE " + quote(tableName) + " DROP COLUMN " + quote(change.ColumnName)
}

// RenameColumnDDL renders a rename statement. MySQL (pre-8.0-compatible)
// requires CHANGE COLUMN with the type re-stated; SQLite and Postgres both
// support RENAME COLUMN directly.
func RenameColumnDDL(dialect typesbridge.Dialect, quote func(string) string, tableName string, change plan.SchemaChangePayload, currentType table.Kind) string {
	if dialect == typesbridge.MySQL {
		colType := typesbridge.SQLType(dialect, currentType)
		return "ALTER TABLE " + quote(tableName) + " CHANGE COLUMN " +
			quote(change.ColumnName) + " " + quote(change.NewColumnName) + " " + colType
	}
	return "ALTER TABLE " + quote(tableName) + " RENAME COLUMN " +
		quote(change.ColumnName) + " TO " + quote(change.NewColumnName)
}

// AlterColumnTypeDDL renders a column type change. MySQL uses MODIFY
// COLUMN; Postgres uses ALTER COLUMN ... TYPE ... USING; SQLite has no
// native ALTER COLUMN TYPE and the executor must instead rebuild the table
// (see enginesql.SQLite.AlterColumnType).
func AlterColumnTypeDDL(dialect typesbridge.Dialect, quote func(string) string, tableName string, change plan.SchemaChangePayload) string {
	colType := typesbridge.SQLType(dialect, change.ColumnType)
	switch dialect {
	case typesbridge.MySQL:
		return "ALTER TABLE " + quote(tableName) + " MODIFY COLUMN " + quote(change.ColumnName) + " " + colType
	case typesbridge.Postgres:
		return "ALTER TABLE " + quote(tableName) + " ALTER COLUMN " + quote(change.ColumnName) +
			" TYPE " + colType + " USING " + quote(change.ColumnName) + "::" + colType
	default:
		return "ALTER TABLE " + quote(tableName) + " ALTER COLUMN " + quote(change.ColumnName) + " TYPE " + colType
	}
}
