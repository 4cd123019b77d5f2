package enginesql

import (
	"context"
	"testing"

	"github.com/eddiethedean/dbsync/table"
)

func TestSQLiteCreateTableAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng, err := OpenSQLiteMemory(ctx)
	if err != nil {
		t.Fatalf("OpenSQLiteMemory: %v", err)
	}
	defer eng.Close()

	schema := table.NewSchema(
		table.Column{Name: "id", Type: table.KindInt64},
		table.Column{Name: "name", Type: table.KindString},
	)
	if err := eng.CreateTable(ctx, "students", schema, []string{"id"}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	exists, err := eng.TableExists(ctx, "students")
	if err != nil || !exists {
		t.Fatalf("expected students table to exist, got exists=%v err=%v", exists, err)
	}

	tx, err := eng.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO `students` (`id`, `name`) VALUES (?, ?)", int64(1), "Ada"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	cols, err := eng.Columns(ctx, "students")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(cols))
	}

	rows, err := eng.PullRows(ctx, "students", cols)
	if err != nil {
		t.Fatalf("PullRows: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ada" {
		t.Fatalf("unexpected pulled rows: %v", rows)
	}
}

func TestSQLiteAlterColumnTypeRebuildsTable(t *testing.T) {
	ctx := context.Background()
	eng, err := OpenSQLiteMemory(ctx)
	if err != nil {
		t.Fatalf("OpenSQLiteMemory: %v", err)
	}
	defer eng.Close()

	schema := table.NewSchema(
		table.Column{Name: "id", Type: table.KindInt64},
		table.Column{Name: "score", Type: table.KindInt64},
	)
	if err := eng.CreateTable(ctx, "scores", schema, []string{"id"}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := eng.db.ExecContext(ctx, "INSERT INTO `scores` (`id`, `score`) VALUES (1, 42)"); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	if err := eng.AlterColumnType(ctx, "scores", "score", table.KindFloat64, schema, []string{"id"}); err != nil {
		t.Fatalf("AlterColumnType: %v", err)
	}

	cols, err := eng.Columns(ctx, "scores")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	rows, err := eng.PullRows(ctx, "scores", cols)
	if err != nil {
		t.Fatalf("PullRows: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != int64(1) {
		t.Fatalf("expected row preserved across rebuild, got %v", rows)
	}
}
