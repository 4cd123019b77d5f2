package enginesql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	dbsync "github.com/eddiethedean/dbsync"
	"github.com/eddiethedean/dbsync/internal/redact"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/table"
)

// MySQL is an Engine backed by go-sql-driver/mysql.
type MySQL struct {
	base
}

// OpenMySQL connects using a go-sql-driver/mysql DSN
// (e.g. "user:pass@tcp(127.0.0.1:3306)/dbname?parseTime=true").
func OpenMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("enginesql: open mysql %s: %w", redact.DSN(dsn), err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("enginesql: ping mysql %s: %w", redact.DSN(dsn), err)
	}
	return &MySQL{base: base{db: db, dialect: typesbridge.MySQL, quote: quoteBacktick}}, nil
}

func (m *MySQL) Placeholder(int) string { return "?" }

func (m *MySQL) TableExists(ctx context.Context, tableName string) (bool, error) {
	var count int
	err := m.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", tableName)
	if err != nil {
		return false, fmt.Errorf("enginesql: checking mysql table existence: %w", err)
	}
	return count > 0, nil
}

func (m *MySQL) Columns(ctx context.Context, tableName string) ([]dbsync.ColumnInfo, error) {
	type infoSchemaCol struct {
		Name     string `db:"COLUMN_NAME"`
		DataType string `db:"DATA_TYPE"`
		Nullable string `db:"IS_NULLABLE"`
	}
	var cols []infoSchemaCol
	err := m.db.SelectContext(ctx, &cols,
		`SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM information_schema.columns
		 WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ORDINAL_POSITION`, tableName)
	if err != nil {
		return nil, fmt.Errorf("enginesql: introspecting mysql table %q: %w", tableName, err)
	}
	out := make([]dbsync.ColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = dbsync.ColumnInfo{
			Name:     c.Name,
			Type:     mysqlTypeToKind(c.DataType),
			Nullable: c.Nullable == "YES",
		}
	}
	return out, nil
}

func mysqlTypeToKind(dataType string) table.Kind {
	switch dataType {
	case "tinyint", "smallint", "int", "bigint", "mediumint":
		return table.KindInt64
	case "float", "double", "decimal":
		return table.KindFloat64
	case "datetime", "timestamp", "date":
		return table.KindTime
	default:
		return table.KindString
	}
}

func (m *MySQL) PullRows(ctx context.Context, tableName string, cols []dbsync.ColumnInfo) ([]table.Row, error) {
	return m.pullRows(ctx, tableName, cols)
}

func (m *MySQL) CreateTable(ctx context.Context, tableName string, schema table.Schema, key []string) error {
	ddl := createTableDDL(typesbridge.MySQL, quoteBacktick, tableName, schema, key)
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("enginesql: creating mysql table %q: %w", tableName, err)
	}
	return nil
}

// IsDeadlock classifies a go-sql-driver/mysql error by its numeric Number
// field rather than string-matching: 1213 is ER_LOCK_DEADLOCK, 1205 is
// ER_LOCK_WAIT_TIMEOUT.
func (m *MySQL) IsDeadlock(err error) bool {
	var me *mysql.MySQLError
	if ok := asMySQLError(err, &me); ok {
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

// IsRetryable classifies a go-sql-driver/mysql error as transient:
// deadlock, lock-wait timeout, or connection-level failure (the driver's
// own ErrInvalidConn / ErrBadConn sentinels would unwrap to a non-MySQLError,
// which callers should check alongside IsDeadlock).
func (m *MySQL) IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if ok := asMySQLError(err, &me); ok {
		switch me.Number {
		case 1213, 1205, 1040, 2006, 2013: // deadlock, lock timeout, too many connections, gone away, lost connection
			return true
		}
	}
	return false
}

func asMySQLError(err error, target **mysql.MySQLError) bool {
	for err != nil {
		if me, ok := err.(*mysql.MySQLError); ok {
			*target = me
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
