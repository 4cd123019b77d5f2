// Package plan builds an ordered execution plan from a tracker's recorded
// changes: schema changes first (rename, drop, add, alter-type, in that
// priority order), then deletes, updates, and inserts, batched.
package plan

import (
	"fmt"
	"sort"

	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
	"github.com/eddiethedean/dbsync/internal/tracker"
)

// StepKind identifies the category of a plan Step.
type StepKind int

const (
	SchemaChange StepKind = iota
	DeleteRows
	UpdateRows
	InsertRows
)

// Priority values follow spec.md §4: rename=1, drop=2, add=3,
// alter-type=4, delete=10, update=20, insert=30.
const (
	PriorityRename     = 1
	PriorityDrop       = 2
	PriorityAdd        = 3
	PriorityAlterType  = 4
	PriorityDelete     = 10
	PriorityUpdate     = 20
	PriorityInsert     = 30
)

// SchemaChangeKind distinguishes the four schema-level operations.
type SchemaChangeKind int

const (
	RenameColumn SchemaChangeKind = iota
	DropColumn
	AddColumn
	AlterColumnType
)

// SchemaChangePayload describes one schema-level step.
type SchemaChangePayload struct {
	Kind          SchemaChangeKind
	ColumnName    string
	NewColumnName string     // RenameColumn
	ColumnType    table.Kind // AddColumn, AlterColumnType
	DefaultValue  any        // AddColumn; nil if none was given
}

// Step is one unit of work in the plan, ordered by Priority (ascending).
type Step struct {
	Kind        StepKind
	Description string
	Priority    int

	SchemaChange  SchemaChangePayload // valid when Kind == SchemaChange
	DeleteKeys    []pk.Value          // valid when Kind == DeleteRows
	UpdateRecords []table.Row         // valid when Kind == UpdateRows; each includes PK columns
	InsertRecords []table.Row         // valid when Kind == InsertRows; each includes PK columns
}

// Plan is the ordered, ready-to-execute sequence of steps.
type Plan struct {
	Steps []Step
}

// HasChanges reports whether the plan has any work to do.
func (p Plan) HasChanges() bool { return len(p.Steps) > 0 }

// Summary aggregates step counts by kind.
type Summary struct {
	TotalSteps      int
	SchemaChanges   int
	InsertSteps     int
	UpdateSteps     int
	DeleteSteps     int
}

func (p Plan) Summary() Summary {
	s := Summary{TotalSteps: len(p.Steps)}
	for _, step := range p.Steps {
		switch step.Kind {
		case SchemaChange:
			s.SchemaChanges++
		case InsertRows:
			s.InsertSteps++
		case UpdateRows:
			s.UpdateSteps++
		case DeleteRows:
			s.DeleteSteps++
		}
	}
	return s
}

// StepsOfKind filters the plan's steps by kind, preserving order.
func (p Plan) StepsOfKind(kind StepKind) []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Build computes the tracker's row changes against current and assembles an
// ordered Plan. key is the table's primary key, used to unpack each row
// change's pk.Value back into named columns for update/insert records.
func Build(tr *tracker.Tracker, key pk.Spec, current *table.Table) Plan {
	tr.ComputeRowChanges(current)

	var steps []Step
	steps = append(steps, schemaSteps(tr, current.Schema())...)

	if deletes := tr.Deletes(); len(deletes) > 0 {
		keys := make([]pk.Value, len(deletes))
		for i, rc := range deletes {
			keys[i] = rc.Key
		}
		steps = append(steps, Step{
			Kind:        DeleteRows,
			Description: fmt.Sprintf("Delete %d row(s)", len(keys)),
			Priority:    PriorityDelete,
			DeleteKeys:  keys,
		})
	}

	if updates := tr.Updates(); len(updates) > 0 {
		records := make([]table.Row, len(updates))
		for i, rc := range updates {
			records[i] = withKeyColumns(key, rc.Key, rc.NewData)
		}
		steps = append(steps, Step{
			Kind:          UpdateRows,
			Description:   fmt.Sprintf("Update %d row(s)", len(records)),
			Priority:      PriorityUpdate,
			UpdateRecords: records,
		})
	}

	if inserts := tr.Inserts(); len(inserts) > 0 {
		records := make([]table.Row, len(inserts))
		for i, rc := range inserts {
			records[i] = withKeyColumns(key, rc.Key, rc.NewData)
		}
		steps = append(steps, Step{
			Kind:          InsertRows,
			Description:   fmt.Sprintf("Insert %d row(s)", len(records)),
			Priority:      PriorityInsert,
			InsertRecords: records,
		})
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Priority < steps[j].Priority })
	return Plan{Steps: steps}
}

func withKeyColumns(key pk.Spec, value pk.Value, data table.Row) table.Row {
	out := data.Clone()
	for i, col := range key {
		out[col] = value[i]
	}
	return out
}

func schemaSteps(tr *tracker.Tracker, currentSchema table.Schema) []Step {
	var steps []Step

	renamed := tr.RenamedColumns()
	for oldName, newName := range renamed {
		steps = append(steps, Step{
			Kind:        SchemaChange,
			Description: fmt.Sprintf("Rename column %q to %q", oldName, newName),
			Priority:    PriorityRename,
			SchemaChange: SchemaChangePayload{
				Kind:          RenameColumn,
				ColumnName:    oldName,
				NewColumnName: newName,
			},
		})
	}

	for _, col := range tr.DroppedColumns() {
		if _, renamedAway := renamed[col]; renamedAway {
			continue // already covered by the rename step
		}
		steps = append(steps, Step{
			Kind:        SchemaChange,
			Description: fmt.Sprintf("Drop column %q", col),
			Priority:    PriorityDrop,
			SchemaChange: SchemaChangePayload{
				Kind:       DropColumn,
				ColumnName: col,
			},
		})
	}

	for _, col := range tr.AddedColumns() {
		def, _ := tr.AddedColumnDefault(col)
		steps = append(steps, Step{
			Kind:        SchemaChange,
			Description: fmt.Sprintf("Add column %q", col),
			Priority:    PriorityAdd,
			SchemaChange: SchemaChangePayload{
				Kind:         AddColumn,
				ColumnName:   col,
				ColumnType:   currentSchema.TypeOf(col),
				DefaultValue: def,
			},
		})
	}

	for col, newType := range tr.AlteredColumnTypes() {
		steps = append(steps, Step{
			Kind:        SchemaChange,
			Description: fmt.Sprintf("Alter column %q type to %s", col, newType),
			Priority:    PriorityAlterType,
			SchemaChange: SchemaChangePayload{
				Kind:          AlterColumnType,
				ColumnName:    col,
				NewColumnName: "",
				ColumnType:    newType,
			},
		})
	}

	return steps
}
