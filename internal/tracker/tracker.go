// Package tracker implements change tracking: given a baseline table
// snapshot and a later, possibly mutated table, it computes which rows were
// inserted, updated, or deleted, and separately records schema-level
// operations (column add/drop/rename/type-change) as they happen.
package tracker

import (
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

// Mode selects how much baseline state the tracker retains.
type Mode int

const (
	// Incremental keeps only the rows that actually changed (default).
	Incremental Mode = iota
	// Full retains a full copy of the original table for comparison.
	Full
)

// ChangeType classifies a single row-level change.
type ChangeType int

const (
	Insert ChangeType = iota
	Update
	Delete
)

func (c ChangeType) String() string {
	switch c {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// RowChange describes one row-level change found when diffing baseline
// against current.
type RowChange struct {
	Type    ChangeType
	Key     pk.Value
	OldData table.Row // non-nil for Update and Delete
	NewData table.Row // non-nil for Insert and Update
}

// RowState records, per changed row, only the touched columns — the
// incremental-mode memory optimization of the original implementation.
type RowState struct {
	Status         ChangeType
	ChangedColumns []string
	OldValues      table.Row
	NewValues      table.Row
}

// Operation records a single method-level call made against the tracked
// table, for diagnostics and operation replay.
type Operation struct {
	Method string
	Args   []any
}

// Tracker monitors a table for row- and schema-level changes relative to a
// baseline snapshot taken at construction (or at the last Reset).
type Tracker struct {
	primaryKey pk.Spec
	mode       Mode

	baseline *table.Table // nil in Incremental mode once computation is warm; always set in Full mode

	operations []Operation

	rowChanges map[string]RowChange
	rowStates  map[string]RowState

	addedColumns    map[string]bool
	addedDefaults   map[string]any // populated alongside addedColumns
	droppedColumns  map[string]bool
	renamedColumns  map[string]string // old -> new, chain-collapsed
	alteredTypes    map[string]table.Kind

	computed bool
	dirty    bool
}

// New builds a Tracker against baseline, the table state at the moment
// tracking begins.
func New(primaryKey pk.Spec, baseline *table.Table, mode Mode) *Tracker {
	t := &Tracker{
		primaryKey:     primaryKey,
		mode:           mode,
		rowChanges:     make(map[string]RowChange),
		rowStates:      make(map[string]RowState),
		addedColumns:   make(map[string]bool),
		addedDefaults:  make(map[string]any),
		droppedColumns: make(map[string]bool),
		renamedColumns: make(map[string]string),
		alteredTypes:   make(map[string]table.Kind),
		dirty:          true,
	}
	if baseline != nil {
		t.baseline = baseline.Copy()
	}
	return t
}

// RecordOperation appends a method-call record and invalidates any computed
// row changes, mirroring the original's operation log + lazy invalidation.
func (t *Tracker) RecordOperation(method string, args ...any) {
	t.operations = append(t.operations, Operation{Method: method, Args: args})
	t.invalidate()
}

// Operations returns the recorded operation log, in call order.
func (t *Tracker) Operations() []Operation {
	return t.operations
}

// Baseline returns the snapshot row changes are diffed against, or nil if
// none has been established yet.
func (t *Tracker) Baseline() *table.Table {
	return t.baseline
}

func (t *Tracker) invalidate() {
	t.computed = false
	t.dirty = true
}

// TrackColumnAdd records that a column was added along with the default
// value it was given, so the plan builder can carry that default through to
// the ADD COLUMN DDL and backfill existing rows. Re-adding a column that
// was previously dropped in this tracking window clears the drop record.
func (t *Tracker) TrackColumnAdd(name string, defaultValue any) {
	t.addedColumns[name] = true
	t.addedDefaults[name] = defaultValue
	delete(t.droppedColumns, name)
	t.invalidate()
}

// AddedColumnDefault returns the default value a tracked column addition
// was given, if that column is still a pending add.
func (t *Tracker) AddedColumnDefault(name string) (any, bool) {
	v, ok := t.addedColumns[name]
	if !ok || !v {
		return nil, false
	}
	return t.addedDefaults[name], true
}

// TrackColumnDrop records that a column was dropped. Dropping a column that
// was added in this tracking window simply cancels the add.
func (t *Tracker) TrackColumnDrop(name string) {
	if t.addedColumns[name] {
		delete(t.addedColumns, name)
		delete(t.addedDefaults, name)
	} else {
		t.droppedColumns[name] = true
	}
	t.invalidate()
}

// TrackColumnRename records a rename, collapsing rename chains: if oldName
// is itself the target of an earlier rename (X -> oldName), the earlier
// entry is rewritten to point straight at newName (X -> newName) instead of
// accumulating a chain.
func (t *Tracker) TrackColumnRename(oldName, newName string) {
	for from, to := range t.renamedColumns {
		if to == oldName {
			t.renamedColumns[from] = newName
			t.invalidate()
			return
		}
	}
	t.renamedColumns[oldName] = newName
	t.invalidate()
}

// TrackColumnTypeChange records a column's new declared type.
func (t *Tracker) TrackColumnTypeChange(name string, newType table.Kind) {
	t.alteredTypes[name] = newType
	t.invalidate()
}

// AddedColumns, DroppedColumns, RenamedColumns, and AlteredColumnTypes
// expose the schema-level change sets accumulated so far.
func (t *Tracker) AddedColumns() []string {
	return keysOf(t.addedColumns)
}

func (t *Tracker) DroppedColumns() []string {
	return keysOf(t.droppedColumns)
}

func (t *Tracker) RenamedColumns() map[string]string {
	out := make(map[string]string, len(t.renamedColumns))
	for k, v := range t.renamedColumns {
		out[k] = v
	}
	return out
}

func (t *Tracker) AlteredColumnTypes() map[string]table.Kind {
	out := make(map[string]table.Kind, len(t.alteredTypes))
	for k, v := range t.alteredTypes {
		out[k] = v
	}
	return out
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// ComputeRowChanges diffs current against the baseline, populating the
// row-level change set. It is a no-op if nothing has been invalidated since
// the last computation.
func (t *Tracker) ComputeRowChanges(current *table.Table) {
	if t.computed && !t.dirty {
		return
	}
	t.rowChanges = make(map[string]RowChange)
	if t.baseline == nil {
		t.computed = true
		t.dirty = false
		return
	}

	currentKeys := current.PKValues()
	baselineKeys := t.baseline.PKValues()

	for keyStr, key := range currentKeys {
		if _, existed := baselineKeys[keyStr]; !existed {
			row, _ := current.GetRow(key)
			t.rowChanges[keyStr] = RowChange{Type: Insert, Key: key, NewData: row}
			if t.mode == Incremental {
				t.rowStates[keyStr] = RowState{Status: Insert, NewValues: row}
			}
		}
	}

	for keyStr, key := range baselineKeys {
		if _, stillPresent := currentKeys[keyStr]; !stillPresent {
			row, _ := t.baseline.GetRow(key)
			t.rowChanges[keyStr] = RowChange{Type: Delete, Key: key, OldData: row}
			if t.mode == Incremental {
				t.rowStates[keyStr] = RowState{Status: Delete, OldValues: row}
			}
		}
	}

	commonCols := commonColumns(t.baseline, current)
	for keyStr, key := range currentKeys {
		if _, existed := baselineKeys[keyStr]; !existed {
			continue
		}
		curRow, _ := current.GetRow(key)
		oldRow, _ := t.baseline.GetRow(key)

		var changedCols []string
		oldVals := table.Row{}
		newVals := table.Row{}
		for _, col := range commonCols {
			if !rowValuesEqual(curRow[col], oldRow[col]) {
				changedCols = append(changedCols, col)
				oldVals[col] = oldRow[col]
				newVals[col] = curRow[col]
			}
		}
		if len(changedCols) > 0 {
			t.rowChanges[keyStr] = RowChange{Type: Update, Key: key, OldData: oldRow, NewData: curRow}
			if t.mode == Incremental {
				t.rowStates[keyStr] = RowState{Status: Update, ChangedColumns: changedCols, OldValues: oldVals, NewValues: newVals}
			}
		}
	}

	t.computed = true
	t.dirty = false
}

func commonColumns(a, b *table.Table) []string {
	bHas := make(map[string]bool)
	for _, c := range b.Schema().Columns {
		bHas[c.Name] = true
	}
	var out []string
	for _, c := range a.Schema().Columns {
		if bHas[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

func rowValuesEqual(a, b any) bool {
	r := table.Row{"v": a}
	s := table.Row{"v": b}
	return r.Equal(s, []string{"v"})
}

// Inserts, Updates, and Deletes return the corresponding subset of computed
// row changes, in no particular order.
func (t *Tracker) Inserts() []RowChange { return t.filterRowChanges(Insert) }
func (t *Tracker) Updates() []RowChange { return t.filterRowChanges(Update) }
func (t *Tracker) Deletes() []RowChange { return t.filterRowChanges(Delete) }

func (t *Tracker) filterRowChanges(kind ChangeType) []RowChange {
	var out []RowChange
	for _, rc := range t.rowChanges {
		if rc.Type == kind {
			out = append(out, rc)
		}
	}
	return out
}

// RowState returns the incremental-mode change record for a row, if any.
func (t *Tracker) RowState(key pk.Value) (RowState, bool) {
	rs, ok := t.rowStates[key.Key()]
	return rs, ok
}

// HasChanges reports whether any row-level or schema-level change has been
// tracked. If current is non-nil and row changes are stale, it computes
// them first.
func (t *Tracker) HasChanges(current *table.Table) bool {
	if current != nil && t.dirty {
		t.ComputeRowChanges(current)
	}
	return len(t.rowChanges) > 0 ||
		len(t.addedColumns) > 0 ||
		len(t.droppedColumns) > 0 ||
		len(t.renamedColumns) > 0 ||
		len(t.alteredTypes) > 0
}

// Reset re-baselines the tracker against newBaseline, clearing every
// accumulated change.
func (t *Tracker) Reset(newBaseline *table.Table) {
	t.operations = nil
	t.rowChanges = make(map[string]RowChange)
	t.rowStates = make(map[string]RowState)
	t.addedColumns = make(map[string]bool)
	t.addedDefaults = make(map[string]any)
	t.droppedColumns = make(map[string]bool)
	t.renamedColumns = make(map[string]string)
	t.alteredTypes = make(map[string]table.Kind)
	if newBaseline != nil {
		t.baseline = newBaseline.Copy()
	} else {
		t.baseline = nil
	}
	t.computed = false
	t.dirty = true
}

// Summary reports aggregate counts of every tracked change, matching the
// original library's get_summary().
type Summary struct {
	TotalOperations     int
	Inserts             int
	Updates             int
	Deletes             int
	ColumnsAdded        int
	ColumnsDropped      int
	ColumnsRenamed      int
	ColumnsTypeChanged  int
	HasChanges          bool
}

func (t *Tracker) Summary(current *table.Table) Summary {
	has := t.HasChanges(current)
	return Summary{
		TotalOperations:    len(t.operations),
		Inserts:            len(t.filterRowChanges(Insert)),
		Updates:            len(t.filterRowChanges(Update)),
		Deletes:            len(t.filterRowChanges(Delete)),
		ColumnsAdded:       len(t.addedColumns),
		ColumnsDropped:     len(t.droppedColumns),
		ColumnsRenamed:     len(t.renamedColumns),
		ColumnsTypeChanged: len(t.alteredTypes),
		HasChanges:         has,
	}
}
