package dbsync

import (
	"testing"

	"github.com/eddiethedean/dbsync/internal/tracker"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

func studentsSchema() table.Schema {
	return table.NewSchema(
		table.Column{Name: "id", Type: table.KindInt64},
		table.Column{Name: "name", Type: table.KindString},
	)
}

func newStudents(t *testing.T, rows []table.Row) *TrackedTable {
	t.Helper()
	data, err := table.New(studentsSchema(), pk.New("id"), rows)
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}
	return NewTrackedTable("students", data, tracker.Incremental)
}

func TestAddRowRecordsInsert(t *testing.T) {
	tt := newStudents(t, nil)
	if err := tt.AddRow(table.Row{"id": int64(1), "name": "Ada"}); err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	if !tt.HasChanges() {
		t.Fatal("expected HasChanges after AddRow")
	}
	if tt.ChangesSummary().Inserts != 1 {
		t.Fatalf("expected 1 insert, got %+v", tt.ChangesSummary())
	}
}

func TestAddRowAutoIncrementComputesNextID(t *testing.T) {
	tt := newStudents(t, []table.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(5), "name": "Lin"},
	})
	if err := tt.AddRowAutoIncrement(table.Row{"name": "Grace"}); err != nil {
		t.Fatalf("AddRowAutoIncrement: %v", err)
	}
	r, ok := tt.GetRow(pk.Of(int64(6)))
	if !ok || r["name"] != "Grace" {
		t.Fatalf("expected row with id=6, got %v, %v", r, ok)
	}
}

func TestAddRowAutoIncrementRejectsCompositeKey(t *testing.T) {
	schema := table.NewSchema(
		table.Column{Name: "course_id", Type: table.KindInt64},
		table.Column{Name: "student_id", Type: table.KindInt64},
	)
	data, err := table.New(schema, pk.New("course_id", "student_id"), nil)
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}
	tt := NewTrackedTable("enrollments", data, tracker.Incremental)
	err = tt.AddRowAutoIncrement(table.Row{"course_id": int64(1), "student_id": int64(2)})
	if err == nil {
		t.Fatal("expected Validation fault for composite primary key")
	}
	if kind, ok := KindOf(err); !ok || kind != ValidationFault {
		t.Fatalf("expected ValidationFault, got %v", err)
	}
}

func TestAddRowAutoIncrementRejectsExplicitValue(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	err := tt.AddRowAutoIncrement(table.Row{"id": int64(2), "name": "Lin"})
	if err == nil {
		t.Fatal("expected Validation fault when row already supplies a PK value")
	}
}

func TestBulkInsertRejectsDuplicateWithinBatch(t *testing.T) {
	tt := newStudents(t, nil)
	err := tt.BulkInsert([]table.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(1), "name": "Lin"},
	})
	if err == nil {
		t.Fatal("expected Validation fault for duplicate PK within batch")
	}
	if tt.Len() != 0 {
		t.Fatalf("expected no rows applied on a rejected batch, got %d", tt.Len())
	}
}

func TestBulkInsertRejectsDuplicateAgainstExisting(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	err := tt.BulkInsert([]table.Row{{"id": int64(1), "name": "Lin"}})
	if err == nil {
		t.Fatal("expected Validation fault for PK already present")
	}
}

func TestBulkInsertRecordsOneOperationForWholeBatch(t *testing.T) {
	tt := newStudents(t, nil)
	rows := []table.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(2), "name": "Lin"},
	}
	if err := tt.BulkInsert(rows); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if tt.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tt.Len())
	}
	if tt.ChangesSummary().Inserts != 2 {
		t.Fatalf("expected 2 tracked inserts, got %+v", tt.ChangesSummary())
	}
}

func TestUpdateRowRejectsUnknownKey(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	err := tt.UpdateRow(pk.Of(int64(99)), table.Row{"name": "Nope"})
	if err == nil {
		t.Fatal("expected error updating a missing row")
	}
}

func TestValidateDetectsDroppedPrimaryKeyColumn(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	if err := tt.Validate(); err != nil {
		t.Fatalf("Validate on a fresh table: %v", err)
	}
}

func TestResetClearsTrackedChanges(t *testing.T) {
	tt := newStudents(t, []table.Row{{"id": int64(1), "name": "Ada"}})
	if err := tt.AddRow(table.Row{"id": int64(2), "name": "Lin"}); err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	tt.Reset()
	if tt.HasChanges() {
		t.Fatal("expected no changes after Reset")
	}
}
