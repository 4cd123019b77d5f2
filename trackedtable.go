package dbsync

import (
	"fmt"

	"github.com/eddiethedean/dbsync/internal/tracker"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

// TrackedTable wraps a table.Table and intercepts every mutation so a
// Database can later compute and push the minimal set of SQL statements
// needed to bring the backing table in sync, without resending unchanged
// rows or columns. It plays the role the original library gave
// TrackedDataFrame, adapted to a statically typed row-set instead of a
// pandas DataFrame.
type TrackedTable struct {
	name    string
	data    *table.Table
	tracker *tracker.Tracker
	mode    tracker.Mode
}

// NewTrackedTable wraps data under name, tracking changes in the given mode.
func NewTrackedTable(name string, data *table.Table, mode tracker.Mode) *TrackedTable {
	return &TrackedTable{
		name:    name,
		data:    data,
		tracker: tracker.New(data.PrimaryKey(), data.Copy(), mode),
		mode:    mode,
	}
}

// Name returns the table's name as registered with a Database.
func (tt *TrackedTable) Name() string { return tt.name }

// Data returns the current, live table.Table. Callers must go through
// TrackedTable's own mutation methods (not table.Table's) to keep the
// tracker consistent.
func (tt *TrackedTable) Data() *table.Table { return tt.data }

// Schema returns the table's current column schema.
func (tt *TrackedTable) Schema() table.Schema { return tt.data.Schema() }

// PrimaryKey returns the table's primary-key spec.
func (tt *TrackedTable) PrimaryKey() pk.Spec { return tt.data.PrimaryKey() }

// Len returns the current row count.
func (tt *TrackedTable) Len() int { return tt.data.Len() }

// Mode reports the tracking mode (Incremental or Full) this table was
// constructed with.
func (tt *TrackedTable) Mode() tracker.Mode { return tt.mode }

// GetRow returns the row with the given primary-key value, if present.
func (tt *TrackedTable) GetRow(key pk.Value) (table.Row, bool) { return tt.data.GetRow(key) }

// RowExists reports whether a row with the given primary-key value exists.
func (tt *TrackedTable) RowExists(key pk.Value) bool { return tt.data.RowExists(key) }

// AddRow inserts a new row, recording it as a tracked insert.
func (tt *TrackedTable) AddRow(r table.Row) error {
	if err := tt.data.AddRow(r.Clone()); err != nil {
		return NewValidationFault(err.Error(), map[string]any{"table": tt.name})
	}
	tt.tracker.RecordOperation("add_row", r)
	tt.tracker.ComputeRowChanges(tt.data)
	return nil
}

// UpdateRow merges updates into the row identified by key, recording it as
// a tracked update. PK columns may not appear in updates.
func (tt *TrackedTable) UpdateRow(key pk.Value, updates table.Row) error {
	if err := tt.data.UpdateRow(key, updates); err != nil {
		return NewValidationFault(err.Error(), map[string]any{"table": tt.name})
	}
	tt.tracker.RecordOperation("update_row", key, updates)
	tt.tracker.ComputeRowChanges(tt.data)
	return nil
}

// DeleteRow removes the row identified by key, recording it as a tracked
// delete.
func (tt *TrackedTable) DeleteRow(key pk.Value) error {
	if err := tt.data.DeleteRow(key); err != nil {
		return NewValidationFault(err.Error(), map[string]any{"table": tt.name})
	}
	tt.tracker.RecordOperation("delete_row", key)
	tt.tracker.ComputeRowChanges(tt.data)
	return nil
}

// AddRowAutoIncrement inserts r after computing its primary-key value as
// one more than the current maximum, the Go analogue of the original
// library's add_row(auto_increment=True). It requires a single-column
// integer primary key and fails with a Validation fault otherwise, or if r
// already supplies a PK value.
func (tt *TrackedTable) AddRowAutoIncrement(r table.Row) error {
	key := tt.data.PrimaryKey()
	if !key.Single() {
		return NewValidationFault(
			"auto_increment requires a single-column primary key",
			map[string]any{"table": tt.name, "primary_key": []string(key)},
		)
	}
	col := key[0]
	if _, ok := r[col]; ok {
		return NewValidationFault(
			fmt.Sprintf("auto_increment: row already supplies a value for primary key column %q", col),
			map[string]any{"table": tt.name, "column": col},
		)
	}
	if tt.data.Schema().TypeOf(col) != table.KindInt64 {
		return NewValidationFault(
			fmt.Sprintf("auto_increment requires an integer primary key, column %q is not", col),
			map[string]any{"table": tt.name, "column": col},
		)
	}

	var next int64
	for _, row := range tt.data.Rows() {
		v, _ := row[col].(int64)
		if v >= next {
			next = v + 1
		}
	}
	out := r.Clone()
	out[col] = next
	return tt.AddRow(out)
}

// BulkInsert inserts every row in rows as a single tracked operation. Rows
// whose primary key already exists in the table, or that repeat a primary
// key within the batch itself, are rejected with a Validation fault and
// none of the batch is applied.
func (tt *TrackedTable) BulkInsert(rows []table.Row) error {
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		key := tt.data.KeyOf(r)
		k := key.Key()
		if seen[k] {
			return NewValidationFault(
				fmt.Sprintf("bulk_insert: primary key combination %v is duplicated within the batch", []any(key)),
				map[string]any{"table": tt.name},
			)
		}
		seen[k] = true
		if tt.data.RowExists(key) {
			return NewValidationFault(
				fmt.Sprintf("bulk_insert: primary key combination %v already exists", []any(key)),
				map[string]any{"table": tt.name},
			)
		}
	}

	for _, r := range rows {
		if err := tt.data.AddRow(r.Clone()); err != nil {
			return NewValidationFault(err.Error(), map[string]any{"table": tt.name})
		}
	}
	tt.tracker.RecordOperation("bulk_insert", rows)
	tt.tracker.ComputeRowChanges(tt.data)
	return nil
}

// UpsertRow updates the row if its primary key already exists, otherwise
// inserts it.
func (tt *TrackedTable) UpsertRow(r table.Row) error {
	key := tt.data.KeyOf(r)
	if tt.data.RowExists(key) {
		updates := r.Clone()
		for _, c := range tt.data.PrimaryKey() {
			delete(updates, c)
		}
		return tt.UpdateRow(key, updates)
	}
	return tt.AddRow(r)
}

// AddColumn appends a new column with a default value, recording it as a
// tracked schema addition.
func (tt *TrackedTable) AddColumn(name string, kind table.Kind, defaultValue any) error {
	if err := tt.data.AddColumn(name, kind, defaultValue); err != nil {
		return NewSchemaFault(err.Error(), map[string]any{"table": tt.name, "column": name})
	}
	tt.tracker.RecordOperation("add_column", name)
	tt.tracker.TrackColumnAdd(name, defaultValue)
	return nil
}

// DropColumn removes a column, recording it as a tracked schema drop. It
// refuses to drop a primary-key column.
func (tt *TrackedTable) DropColumn(name string) error {
	if err := tt.data.DropColumn(name); err != nil {
		return NewSchemaFault(err.Error(), map[string]any{"table": tt.name, "column": name})
	}
	tt.tracker.RecordOperation("drop_column", name)
	tt.tracker.TrackColumnDrop(name)
	return nil
}

// RenameColumn renames a column, recording it as a tracked schema rename.
func (tt *TrackedTable) RenameColumn(oldName, newName string) error {
	if err := tt.data.RenameColumn(oldName, newName); err != nil {
		return NewSchemaFault(err.Error(), map[string]any{"table": tt.name, "column": oldName})
	}
	tt.tracker.RecordOperation("rename_column", oldName, newName)
	tt.tracker.TrackColumnRename(oldName, newName)
	return nil
}

// ChangeColumnType updates a column's declared type, recording it as a
// tracked schema type change.
func (tt *TrackedTable) ChangeColumnType(name string, newKind table.Kind) error {
	if err := tt.data.ChangeColumnType(name, newKind); err != nil {
		return NewSchemaFault(err.Error(), map[string]any{"table": tt.name, "column": name})
	}
	tt.tracker.RecordOperation("change_column_type", name, newKind)
	tt.tracker.TrackColumnTypeChange(name, newKind)
	return nil
}

// HasChanges reports whether any row- or schema-level change has been
// tracked since construction or the last Reset.
func (tt *TrackedTable) HasChanges() bool {
	return tt.tracker.HasChanges(tt.data)
}

// ChangesSummary reports aggregate counts of every tracked change, the Go
// analogue of the original library's get_changes_summary().
func (tt *TrackedTable) ChangesSummary() tracker.Summary {
	return tt.tracker.Summary(tt.data)
}

// Reset re-baselines the tracker against the table's current state,
// clearing every accumulated change. Called after a successful Push.
func (tt *TrackedTable) Reset() {
	tt.tracker.Reset(tt.data.Copy())
}

// Validate checks the table's primary-key invariants: every PK column must
// still exist, contain no nulls, and contain no duplicate values. table.Table
// already enforces these at mutation time, so a failure here would indicate
// tracker/table state drift rather than ordinary misuse.
func (tt *TrackedTable) Validate() error {
	schema := tt.data.Schema()
	for _, col := range tt.data.PrimaryKey() {
		if !schema.Has(col) {
			return NewSchemaFault(
				fmt.Sprintf("primary key column %q has been dropped", col),
				map[string]any{"table": tt.name, "column": col},
			)
		}
	}
	seen := make(map[string]bool, tt.data.Len())
	for _, r := range tt.data.Rows() {
		key := tt.data.KeyOf(r)
		k := key.Key()
		if seen[k] {
			return NewValidationFault(
				fmt.Sprintf("primary key combination %v contains duplicates", []any(key)),
				map[string]any{"table": tt.name},
			)
		}
		seen[k] = true
	}
	return nil
}
