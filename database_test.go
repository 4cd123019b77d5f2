package dbsync

import (
	"context"
	"testing"

	"github.com/eddiethedean/dbsync/conflict"
	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

// fakeEngine backs pull-only tests: it reports a fixed remote row set for
// one table and stub implementations for everything Push's data path would
// otherwise need, which these tests never exercise.
type fakeEngine struct {
	dialect   Dialect
	cols      map[string][]ColumnInfo
	rows      map[string][]table.Row
	exists    map[string]bool
	retryable func(error) bool
}

func (e *fakeEngine) Dialect() Dialect { return e.dialect }
func (e *fakeEngine) Columns(_ context.Context, name string) ([]ColumnInfo, error) {
	return e.cols[name], nil
}
func (e *fakeEngine) PullRows(_ context.Context, name string, _ []ColumnInfo) ([]table.Row, error) {
	return e.rows[name], nil
}
func (e *fakeEngine) TableExists(_ context.Context, name string) (bool, error) {
	return e.exists[name], nil
}
func (e *fakeEngine) CreateTable(context.Context, string, table.Schema, []string) error { return nil }
func (e *fakeEngine) ExecSchemaChange(context.Context, string, plan.SchemaChangePayload, table.Schema, []string) error {
	return nil
}
func (e *fakeEngine) Begin(context.Context) (Tx, error) { return nil, nil }
func (e *fakeEngine) Quote(id string) string            { return id }
func (e *fakeEngine) Placeholder(int) string             { return "?" }
func (e *fakeEngine) Pool() PoolStatus                   { return PoolStatus{} }
func (e *fakeEngine) Ping(context.Context) error         { return nil }
func (e *fakeEngine) Close() error                       { return nil }
func (e *fakeEngine) IsRetryable(err error) bool         { return e.retryable(err) }

func TestDatabaseAddTableAndLookup(t *testing.T) {
	tt := newStudents(t, nil)
	db := NewDatabase(&fakeEngine{dialect: SQLite}, DefaultOptions())
	db.AddTable(tt)

	got, ok := db.Table("students")
	if !ok || got != tt {
		t.Fatalf("Table(students) = %v, %v", got, ok)
	}
	if names := db.TableNames(); len(names) != 1 || names[0] != "students" {
		t.Fatalf("TableNames() = %v", names)
	}
}

func TestClassifierForPrefersEngineClassifier(t *testing.T) {
	called := false
	eng := &fakeEngine{dialect: SQLite, retryable: func(error) bool { called = true; return true }}
	db := NewDatabase(eng, DefaultOptions())
	classifier := db.classifierFor()
	classifier(nil)
	if !called {
		t.Fatal("expected classifierFor to prefer the engine's own IsRetryable")
	}
}

func remoteStudentsEngine(rows []table.Row) *fakeEngine {
	return &fakeEngine{
		dialect: SQLite,
		cols: map[string][]ColumnInfo{
			"students": {{Name: "id", Type: table.KindInt64}, {Name: "name", Type: table.KindString}},
		},
		rows:   map[string][]table.Row{"students": rows},
		exists: map[string]bool{"students": true},
	}
}

func TestResolveConflictsLastWriterWinsKeepsLocalValue(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	if err := tt.UpdateRow(pk.Of(int64(1)), table.Row{"name": "Ada Lovelace"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}

	eng := remoteStudentsEngine([]table.Row{{"id": int64(1), "name": "Someone Else"}})
	opts := DefaultOptions()
	opts.ConflictStrategy = conflict.LastWriterWins
	db := NewDatabase(eng, opts)
	db.AddTable(tt)

	if err := db.resolveConflicts(context.Background(), tt); err != nil {
		t.Fatalf("resolveConflicts: %v", err)
	}
	r, _ := tt.GetRow(pk.Of(int64(1)))
	if r["name"] != "Ada Lovelace" {
		t.Fatalf("expected local value to win, got %v", r["name"])
	}
}

func TestResolveConflictsFirstWriterWinsDiscardsLocal(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	if err := tt.UpdateRow(pk.Of(int64(1)), table.Row{"name": "Ada Lovelace"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}

	eng := remoteStudentsEngine([]table.Row{{"id": int64(1), "name": "Someone Else"}})
	opts := DefaultOptions()
	opts.ConflictStrategy = conflict.FirstWriterWins
	db := NewDatabase(eng, opts)
	db.AddTable(tt)

	if err := db.resolveConflicts(context.Background(), tt); err != nil {
		t.Fatalf("resolveConflicts: %v", err)
	}
	r, _ := tt.GetRow(pk.Of(int64(1)))
	if r["name"] != "Someone Else" {
		t.Fatalf("expected remote value to survive, got %v", r["name"])
	}
}

func TestResolveConflictsAbortReturnsConflictFault(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	if err := tt.UpdateRow(pk.Of(int64(1)), table.Row{"name": "Ada Lovelace"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}

	eng := remoteStudentsEngine([]table.Row{{"id": int64(1), "name": "Someone Else"}})
	opts := DefaultOptions()
	opts.ConflictStrategy = conflict.Abort
	db := NewDatabase(eng, opts)
	db.AddTable(tt)

	err := db.resolveConflicts(context.Background(), tt)
	if err == nil {
		t.Fatal("expected conflict fault")
	}
	if kind, ok := KindOf(err); !ok || kind != ConflictFault {
		t.Fatalf("expected ConflictFault, got %v", err)
	}
}

func TestResolveConflictsNoOpWhenRemoteUnchanged(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	if err := tt.UpdateRow(pk.Of(int64(1)), table.Row{"name": "Ada Lovelace"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}

	eng := remoteStudentsEngine([]table.Row{{"id": int64(1), "name": "Ada"}})
	db := NewDatabase(eng, DefaultOptions())
	db.AddTable(tt)

	if err := db.resolveConflicts(context.Background(), tt); err != nil {
		t.Fatalf("resolveConflicts: %v", err)
	}
	r, _ := tt.GetRow(pk.Of(int64(1)))
	if r["name"] != "Ada Lovelace" {
		t.Fatalf("expected local edit preserved when remote unchanged, got %v", r["name"])
	}
}

func TestPullReplacesTableContents(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	eng := remoteStudentsEngine([]table.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(2), "name": "Lin"},
	})
	db := NewDatabase(eng, DefaultOptions())
	db.AddTable(tt)

	if err := db.Pull(context.Background(), "students"); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	refreshed, _ := db.Table("students")
	if refreshed.Len() != 2 {
		t.Fatalf("expected 2 rows after pull, got %d", refreshed.Len())
	}
	if refreshed.HasChanges() {
		t.Fatal("expected a freshly pulled table to have no pending changes")
	}
}

func TestPullUnregisteredTableFails(t *testing.T) {
	db := NewDatabase(&fakeEngine{dialect: SQLite}, DefaultOptions())
	err := db.Pull(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error pulling an unregistered table")
	}
	if kind, ok := KindOf(err); !ok || kind != ValidationFault {
		t.Fatalf("expected ValidationFault, got %v", err)
	}
}
