// Package table implements the statically typed, in-memory row-set that
// stands in for the dynamically typed DataFrame the original system was
// built around (see SPEC_FULL.md, "Re-architecture guidance"). A [Table] is
// an ordered [Schema] plus a slice of [Row]s, canonicalized on load so its
// primary key is always present as ordinary columns AND maintained as a
// hash index for O(1) lookup — the engine's "PK-as-index" canonical form.
package table

import (
	"fmt"
	"math"

	"github.com/eddiethedean/dbsync/pk"
)

// Kind is the abstract scalar type of a column, the small set the Type
// Bridge (internal/typesbridge) maps to and from dialect-specific SQL types.
type Kind int

const (
	KindNull Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// Column is a named, typed column of a Schema.
type Column struct {
	Name string
	Type Kind
}

// Schema is the ordered list of a Table's columns.
type Schema struct {
	Columns []Column
}

// NewSchema builds a Schema from the given columns, in order.
func NewSchema(cols ...Column) Schema {
	return Schema{Columns: append([]Column(nil), cols...)}
}

// Names returns the column names, in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Has reports whether name is a column of the schema.
func (s Schema) Has(name string) bool {
	return s.indexOf(name) >= 0
}

// TypeOf returns the Kind of the named column, or KindNull if absent.
func (s Schema) TypeOf(name string) Kind {
	i := s.indexOf(name)
	if i < 0 {
		return KindNull
	}
	return s.Columns[i].Type
}

func (s Schema) indexOf(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Row is a single record, addressable by column name. Values are the
// abstract scalar set of Kind: int64, float64, bool, string, time.Time, or
// nil.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal reports whether r and o agree on every column present in both,
// treating NaN as equal to NaN (spec.md §8: "NaN-equal-NaN").
func (r Row) Equal(o Row, columns []string) bool {
	for _, c := range columns {
		a, b := r[c], o[c]
		if isNaN(a) && isNaN(b) {
			continue
		}
		if !scalarEqual(a, b) {
			return false
		}
	}
	return true
}

func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

func scalarEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	// Compare through a common representation so int/int64/float mismatches
	// across the DB boundary don't register as spurious diffs.
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Table is the in-memory tabular value: ordered columns, rows, and a
// primary-key index. It never assumes PK columns are absent from Columns —
// they are always present there, and additionally indexed.
type Table struct {
	schema Schema
	pk     pk.Spec
	rows   []Row
	index  map[string]int // pk.Value.Key() -> row position in rows
}

// New builds a Table from a schema, primary key, and initial rows. It
// returns a Schema fault if any PK column is missing from the schema, or if
// any row is missing a PK column, duplicates a PK value, or has a null PK
// column — see Validate for the full invariant set enforced lazily instead.
func New(schema Schema, key pk.Spec, rows []Row) (*Table, error) {
	for _, c := range key {
		if !schema.Has(c) {
			return nil, fmt.Errorf("table: primary key column %q not present in schema", c)
		}
	}
	t := &Table{
		schema: schema,
		pk:     key,
		rows:   make([]Row, 0, len(rows)),
		index:  make(map[string]int, len(rows)),
	}
	for _, r := range rows {
		if err := t.AddRow(r.Clone()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Schema returns the table's column schema.
func (t *Table) Schema() Schema { return t.schema }

// PrimaryKey returns the table's primary-key spec.
func (t *Table) PrimaryKey() pk.Spec { return t.pk }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the rows in insertion order. The returned slice shares
// storage; callers must not mutate it directly — use the mutation methods.
func (t *Table) Rows() []Row { return t.rows }

// KeyOf extracts the PK Value of a row.
func (t *Table) KeyOf(r Row) pk.Value {
	v := make(pk.Value, len(t.pk))
	for i, c := range t.pk {
		v[i] = r[c]
	}
	return v
}

// PKValues returns the set of primary-key values currently present, keyed
// by their map key for set-difference operations.
func (t *Table) PKValues() map[string]pk.Value {
	out := make(map[string]pk.Value, len(t.rows))
	for _, r := range t.rows {
		v := t.KeyOf(r)
		out[v.Key()] = v
	}
	return out
}

// GetRow returns the row with the given primary-key value, if present.
func (t *Table) GetRow(key pk.Value) (Row, bool) {
	i, ok := t.index[key.Key()]
	if !ok {
		return nil, false
	}
	return t.rows[i], true
}

// RowExists reports whether a row with the given primary-key value exists.
func (t *Table) RowExists(key pk.Value) bool {
	_, ok := t.index[key.Key()]
	return ok
}

// AddRow appends a new row, indexing it by its primary key. It returns an
// error if the row is missing a PK column, has a null PK value, or
// duplicates an existing PK value.
func (t *Table) AddRow(r Row) error {
	key := t.KeyOf(r)
	for i, c := range t.pk {
		if key[i] == nil {
			return fmt.Errorf("table: primary key column %q is null", c)
		}
	}
	k := key.Key()
	if _, exists := t.index[k]; exists {
		return fmt.Errorf("table: duplicate primary key value %v", []any(key))
	}
	t.index[k] = len(t.rows)
	t.rows = append(t.rows, r)
	return nil
}

// UpdateRow merges updates into the row identified by key. PK columns may
// not appear in updates — spec.md §4.10 forbids mutating the PK of an
// existing row.
func (t *Table) UpdateRow(key pk.Value, updates Row) error {
	for _, c := range t.pk {
		if _, ok := updates[c]; ok {
			return fmt.Errorf("table: cannot update primary key column %q", c)
		}
	}
	i, ok := t.index[key.Key()]
	if !ok {
		return fmt.Errorf("table: no row with primary key %v", []any(key))
	}
	for c, v := range updates {
		t.rows[i][c] = v
	}
	return nil
}

// DeleteRow removes the row identified by key, if present.
func (t *Table) DeleteRow(key pk.Value) error {
	i, ok := t.index[key.Key()]
	if !ok {
		return fmt.Errorf("table: no row with primary key %v", []any(key))
	}
	last := len(t.rows) - 1
	movedKey := t.KeyOf(t.rows[last]).Key()
	t.rows[i] = t.rows[last]
	t.rows = t.rows[:last]
	delete(t.index, key.Key())
	if i != last {
		t.index[movedKey] = i
	}
	return nil
}

// AddColumn appends a new column to the schema and sets defaultValue on
// every existing row.
func (t *Table) AddColumn(name string, kind Kind, defaultValue any) error {
	if t.schema.Has(name) {
		return fmt.Errorf("table: column %q already exists", name)
	}
	t.schema.Columns = append(t.schema.Columns, Column{Name: name, Type: kind})
	for _, r := range t.rows {
		r[name] = defaultValue
	}
	return nil
}

// DropColumn removes a column from the schema and every row. It refuses to
// drop a primary-key column.
func (t *Table) DropColumn(name string) error {
	if t.pk.Contains(name) {
		return fmt.Errorf("table: cannot drop primary key column %q", name)
	}
	i := t.schema.indexOf(name)
	if i < 0 {
		return fmt.Errorf("table: column %q does not exist", name)
	}
	t.schema.Columns = append(t.schema.Columns[:i], t.schema.Columns[i+1:]...)
	for _, r := range t.rows {
		delete(r, name)
	}
	return nil
}

// RenameColumn renames a column in the schema and every row. If the column
// is part of the primary key, the table's PK spec is updated too.
func (t *Table) RenameColumn(oldName, newName string) error {
	i := t.schema.indexOf(oldName)
	if i < 0 {
		return fmt.Errorf("table: column %q does not exist", oldName)
	}
	if t.schema.Has(newName) {
		return fmt.Errorf("table: column %q already exists", newName)
	}
	t.schema.Columns[i].Name = newName
	for _, r := range t.rows {
		if v, ok := r[oldName]; ok {
			r[newName] = v
			delete(r, oldName)
		}
	}
	if t.pk.Contains(oldName) {
		t.pk = t.pk.Rename(oldName, newName)
	}
	return nil
}

// ChangeColumnType updates a column's declared Kind. It does not coerce
// existing row values; callers performing a real type migration should
// follow up with their own value conversion.
func (t *Table) ChangeColumnType(name string, newKind Kind) error {
	i := t.schema.indexOf(name)
	if i < 0 {
		return fmt.Errorf("table: column %q does not exist", name)
	}
	t.schema.Columns[i].Type = newKind
	return nil
}

// Copy returns a deep copy of the table: independent schema, rows, and
// index. Used by full-mode change tracking to retain an untouched baseline.
func (t *Table) Copy() *Table {
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = r.Clone()
	}
	out := &Table{
		schema: NewSchema(t.schema.Columns...),
		pk:     append(pk.Spec(nil), t.pk...),
		rows:   rows,
		index:  make(map[string]int, len(rows)),
	}
	for i, r := range rows {
		out.index[out.KeyOf(r).Key()] = i
	}
	return out
}
