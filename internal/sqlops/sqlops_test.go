package sqlops

import (
	"strings"
	"testing"

	"github.com/eddiethedean/dbsync/internal/plan"
	"github.com/eddiethedean/dbsync/internal/typesbridge"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

func schema() table.Schema {
	return table.NewSchema(
		table.Column{Name: "id", Type: table.KindInt64},
		table.Column{Name: "name", Type: table.KindString},
	)
}

func TestInsertStatementsBatchesRows(t *testing.T) {
	stmt, err := InsertStatements(typesbridge.SQLite, "students", schema(), []table.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(2), "name": "Lin"},
	})
	if err != nil {
		t.Fatalf("InsertStatements: %v", err)
	}
	if !strings.Contains(stmt.SQL, "INSERT INTO students") {
		t.Fatalf("unexpected SQL: %s", stmt.SQL)
	}
	if len(stmt.Args) != 4 {
		t.Fatalf("expected 4 args for 2 rows x 2 cols, got %d", len(stmt.Args))
	}
}

func TestInsertStatementsUsesDollarPlaceholdersForPostgres(t *testing.T) {
	stmt, err := InsertStatements(typesbridge.Postgres, "students", schema(), []table.Row{{"id": int64(1), "name": "Ada"}})
	if err != nil {
		t.Fatalf("InsertStatements: %v", err)
	}
	if !strings.Contains(stmt.SQL, "$1") {
		t.Fatalf("expected dollar placeholders, got %s", stmt.SQL)
	}
}

func TestUpdateStatementsExcludePrimaryKeyFromSet(t *testing.T) {
	stmts, err := UpdateStatements(typesbridge.SQLite, "students", pk.New("id"), []table.Row{
		{"id": int64(1), "name": "Ada Updated"},
	})
	if err != nil {
		t.Fatalf("UpdateStatements: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0].SQL, "UPDATE students SET name") {
		t.Fatalf("unexpected SQL: %s", stmts[0].SQL)
	}
	if !strings.Contains(stmts[0].SQL, "WHERE id = ?") {
		t.Fatalf("expected WHERE on primary key, got %s", stmts[0].SQL)
	}
}

func TestDeleteStatementSingleKeyUsesIn(t *testing.T) {
	stmt, err := DeleteStatement(typesbridge.SQLite, "students", pk.New("id"), []pk.Value{pk.Of(int64(1)), pk.Of(int64(2))})
	if err != nil {
		t.Fatalf("DeleteStatement: %v", err)
	}
	if !strings.Contains(stmt.SQL, "DELETE FROM students WHERE id IN") {
		t.Fatalf("unexpected SQL: %s", stmt.SQL)
	}
	if len(stmt.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(stmt.Args))
	}
}

func TestDeleteStatementCompositeKeyUsesOrOfAnd(t *testing.T) {
	stmt, err := DeleteStatement(typesbridge.SQLite, "enrollments", pk.New("student_id", "course_id"),
		[]pk.Value{pk.Of(int64(1), "CS101"), pk.Of(int64(2), "CS101")})
	if err != nil {
		t.Fatalf("DeleteStatement: %v", err)
	}
	if !strings.Contains(stmt.SQL, "OR") {
		t.Fatalf("expected OR-joined predicate for composite key, got %s", stmt.SQL)
	}
	if len(stmt.Args) != 4 {
		t.Fatalf("expected 4 args (2 keys x 2 cols), got %d", len(stmt.Args))
	}
}

func TestRenameColumnDDLUsesChangeColumnForMySQL(t *testing.T) {
	quote := func(s string) string { return "`" + s + "`" }
	ddl := RenameColumnDDL(typesbridge.MySQL, quote, "students", changePayload("name", "full_name"), table.KindString)
	if !strings.Contains(ddl, "CHANGE COLUMN") {
		t.Fatalf("expected MySQL CHANGE COLUMN rename, got %s", ddl)
	}
}

func TestRenameColumnDDLUsesRenameColumnForPostgresAndSQLite(t *testing.T) {
	quote := func(s string) string { return `"` + s + `"` }
	ddl := RenameColumnDDL(typesbridge.Postgres, quote, "students", changePayload("name", "full_name"), table.KindString)
	if !strings.Contains(ddl, "RENAME COLUMN") {
		t.Fatalf("expected RENAME COLUMN, got %s", ddl)
	}
}

func changePayload(oldName, newName string) plan.SchemaChangePayload {
	return plan.SchemaChangePayload{
		Kind:          plan.RenameColumn,
		ColumnName:    oldName,
		NewColumnName: newName,
	}
}
