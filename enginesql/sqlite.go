package enginesql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	dbsync "github.com/eddiethedean/dbsync"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/table"
)

// SQLite is an Engine backed by modernc.org/sqlite, the teacher's own
// embedded SQL driver. It opens with WAL journaling and a busy timeout the
// way internal/db.Store does, and caps the pool at one connection since
// sqlite serializes writers regardless.
type SQLite struct {
	base
}

// OpenSQLite opens (or creates) a sqlite database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("enginesql: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("enginesql: ping sqlite: %w", err)
	}
	return &SQLite{base: base{db: db, dialect: typesbridge.SQLite, quote: quoteBacktick}}, nil
}

// OpenSQLiteMemory opens an in-memory sqlite database, for tests and the
// demo CLI's throwaway scenarios.
func OpenSQLiteMemory(ctx context.Context) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("enginesql: open in-memory sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("enginesql: ping sqlite: %w", err)
	}
	return &SQLite{base: base{db: db, dialect: typesbridge.SQLite, quote: quoteBacktick}}, nil
}

func quoteBacktick(identifier string) string { return "`" + identifier + "`" }

func quoteDouble(identifier string) string { return `"` + identifier + `"` }

func (s *SQLite) Placeholder(int) string { return "?" }

func (s *SQLite) TableExists(ctx context.Context, tableName string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", tableName)
	if err != nil {
		return false, fmt.Errorf("enginesql: checking sqlite table existence: %w", err)
	}
	return count > 0, nil
}

func (s *SQLite) Columns(ctx context.Context, tableName string) ([]dbsync.ColumnInfo, error) {
	type pragmaCol struct {
		Name     string `db:"name"`
		Type     string `db:"type"`
		NotNull  int    `db:"notnull"`
		PK       int    `db:"pk"`
	}
	var cols []pragmaCol
	err := s.db.SelectContext(ctx, &cols, "SELECT name, type, \"notnull\", pk FROM pragma_table_info(?)", tableName)
	if err != nil {
		return nil, fmt.Errorf("enginesql: introspecting sqlite table %q: %w", tableName, err)
	}
	out := make([]dbsync.ColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = dbsync.ColumnInfo{
			Name:     c.Name,
			Type:     sqliteTypeToKind(c.Type),
			Nullable: c.NotNull == 0,
		}
	}
	return out, nil
}

func sqliteTypeToKind(sqlType string) table.Kind {
	switch sqlType {
	case "INTEGER":
		return table.KindInt64
	case "REAL":
		return table.KindFloat64
	default:
		return table.KindString
	}
}

func (s *SQLite) PullRows(ctx context.Context, tableName string, cols []dbsync.ColumnInfo) ([]table.Row, error) {
	return s.pullRows(ctx, tableName, cols)
}

func (s *SQLite) CreateTable(ctx context.Context, tableName string, schema table.Schema, key []string) error {
	ddl := createTableDDL(typesbridge.SQLite, quoteBacktick, tableName, schema, key)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("enginesql: creating sqlite table %q: %w", tableName, err)
	}
	return nil
}

// AlterColumnType rebuilds tableName with newType applied to columnName.
// SQLite has no native ALTER COLUMN TYPE; the standard workaround is
// create-new / copy / drop-old / rename, all inside one transaction.
func (s *SQLite) AlterColumnType(ctx context.Context, tableName, columnName string, newType table.Kind, schema table.Schema, key []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("enginesql: alter column type: begin: %w", err)
	}
	defer tx.Rollback()

	newSchema := table.NewSchema(schema.Columns...)
	for i, c := range newSchema.Columns {
		if c.Name == columnName {
			newSchema.Columns[i].Type = newType
		}
	}

	tmpName := tableName + "__dbsync_new"
	ddl := createTableDDL(typesbridge.SQLite, quoteBacktick, tmpName, newSchema, key)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("enginesql: alter column type: create temp table: %w", err)
	}

	cols := schema.Names()
	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = quoteBacktick(c)
	}
	colList := ""
	for i, c := range quotedCols {
		if i > 0 {
			colList += ", "
		}
		colList += c
	}
	copySQL := "INSERT INTO " + quoteBacktick(tmpName) + " (" + colList + ") SELECT " + colList + " FROM " + quoteBacktick(tableName)
	if _, err := tx.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("enginesql: alter column type: copy rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteBacktick(tableName)); err != nil {
		return fmt.Errorf("enginesql: alter column type: drop old table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+quoteBacktick(tmpName)+" RENAME TO "+quoteBacktick(tableName)); err != nil {
		return fmt.Errorf("enginesql: alter column type: rename new table: %w", err)
	}
	return tx.Commit()
}
