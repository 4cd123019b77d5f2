// Package typesbridge maps table.Kind to and from each supported SQL
// dialect's concrete column type, and coerces scanned database values back
// into the table package's abstract scalar set.
package typesbridge

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eddiethedean/dbsync/table"
)

// Dialect identifies a supported SQL backend.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgresql"
)

// SQLType returns the column type DDL for kind under dialect, mirroring the
// original library's dtype-to-SQL-type mapping (utils.py:pandas_dtype_to_python_type
// composed with sql_operations.py's per-dialect type_map).
func SQLType(dialect Dialect, kind table.Kind) string {
	switch dialect {
	case MySQL:
		switch kind {
		case table.KindInt64:
			return "BIGINT"
		case table.KindFloat64:
			return "DOUBLE"
		case table.KindBool:
			return "TINYINT(1)"
		case table.KindTime:
			return "DATETIME"
		default:
			return "VARCHAR(255)"
		}
	case Postgres:
		switch kind {
		case table.KindInt64:
			return "BIGINT"
		case table.KindFloat64:
			return "DOUBLE PRECISION"
		case table.KindBool:
			return "BOOLEAN"
		case table.KindTime:
			return "TIMESTAMP"
		default:
			return "TEXT"
		}
	default: // SQLite
		switch kind {
		case table.KindInt64:
			return "INTEGER"
		case table.KindFloat64:
			return "REAL"
		case table.KindBool:
			return "INTEGER"
		case table.KindTime:
			return "TEXT"
		default:
			return "TEXT"
		}
	}
}

// SQLLiteral renders v as a literal suitable for embedding directly in DDL
// (e.g. an ALTER TABLE ... ADD COLUMN ... DEFAULT clause), which none of the
// three dialects allow binding as a placeholder argument. Strings are
// quoted and escaped; booleans follow Postgres's TRUE/FALSE spelling versus
// MySQL/SQLite's 1/0.
func SQLLiteral(dialect Dialect, kind table.Kind, v any) string {
	if v == nil {
		return "NULL"
	}
	switch kind {
	case table.KindInt64:
		switch x := v.(type) {
		case int64:
			return strconv.FormatInt(x, 10)
		case int:
			return strconv.Itoa(x)
		default:
			return fmt.Sprint(x)
		}
	case table.KindFloat64:
		switch x := v.(type) {
		case float64:
			return strconv.FormatFloat(x, 'g', -1, 64)
		default:
			return fmt.Sprint(x)
		}
	case table.KindBool:
		b, _ := v.(bool)
		if dialect == Postgres {
			if b {
				return "TRUE"
			}
			return "FALSE"
		}
		if b {
			return "1"
		}
		return "0"
	case table.KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return "NULL"
		}
		return "'" + t.Format(time.RFC3339) + "'"
	default:
		s := fmt.Sprint(v)
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}

// InferKind guesses a table.Kind from a Go runtime value, the way the
// original library inferred a pandas dtype from an object column's first
// concrete value (utils.py:pandas_dtype_to_python_type).
func InferKind(v any) table.Kind {
	switch v.(type) {
	case nil:
		return table.KindNull
	case int, int32, int64:
		return table.KindInt64
	case float32, float64:
		return table.KindFloat64
	case bool:
		return table.KindBool
	case time.Time:
		return table.KindTime
	default:
		return table.KindString
	}
}

// Coerce converts a value scanned from the database (typically one of the
// database/sql driver's narrow set: int64, float64, bool, []byte, string,
// time.Time, or nil) into the declared Kind's canonical Go representation.
func Coerce(kind table.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch kind {
	case table.KindInt64:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case float64:
			return int64(x), nil
		case string:
			var out int64
			if _, err := fmt.Sscan(x, &out); err != nil {
				return nil, fmt.Errorf("typesbridge: cannot coerce %q to int64: %w", x, err)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("typesbridge: cannot coerce %T to int64", v)
		}
	case table.KindFloat64:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case string:
			var out float64
			if _, err := fmt.Sscan(x, &out); err != nil {
				return nil, fmt.Errorf("typesbridge: cannot coerce %q to float64: %w", x, err)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("typesbridge: cannot coerce %T to float64", v)
		}
	case table.KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			return x == "1" || x == "true" || x == "t" || x == "TRUE", nil
		default:
			return nil, fmt.Errorf("typesbridge: cannot coerce %T to bool", v)
		}
	case table.KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, x); err == nil {
					return t, nil
				}
			}
			return nil, fmt.Errorf("typesbridge: cannot parse %q as time", x)
		default:
			return nil, fmt.Errorf("typesbridge: cannot coerce %T to time", v)
		}
	default:
		return fmt.Sprint(v), nil
	}
}

// NullArg wraps v for binding as a driver parameter: database/sql needs an
// explicit typed sql.Null* (or nil) rather than an untyped nil interface
// for some drivers' type inference.
func NullArg(kind table.Kind, v any) any {
	if v != nil {
		return v
	}
	switch kind {
	case table.KindInt64:
		return sql.NullInt64{}
	case table.KindFloat64:
		return sql.NullFloat64{}
	case table.KindBool:
		return sql.NullBool{}
	case table.KindTime:
		return sql.NullTime{}
	default:
		return sql.NullString{}
	}
}
