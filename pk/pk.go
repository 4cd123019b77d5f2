// Package pk provides primary-key normalization and value extraction shared
// across the change tracker, execution planner, and SQL operations.
//
// A primary key is one or more named columns whose combined value uniquely
// identifies a row. It is represented here as an ordered [Spec] (always a
// slice, even for a single column), and a row's key as an ordered [Value]
// (length 1 for a single-column key, N for a composite one).
package pk

import (
	"fmt"
	"strings"
)

// Spec is an ordered list of primary-key column names. Composite-key tuple
// ordering follows this order throughout the engine.
type Spec []string

// New builds a Spec from one or more column names.
func New(columns ...string) Spec {
	out := make(Spec, len(columns))
	copy(out, columns)
	return out
}

// Single reports whether the key is a single column.
func (s Spec) Single() bool {
	return len(s) == 1
}

// Contains reports whether name is one of the key's columns.
func (s Spec) Contains(name string) bool {
	for _, c := range s {
		if c == name {
			return true
		}
	}
	return false
}

// Rename updates col to newName wherever it appears in the spec, returning a
// new Spec. Used when a change tracker observes a rename of a PK column.
func (s Spec) Rename(col, newName string) Spec {
	out := make(Spec, len(s))
	for i, c := range s {
		if c == col {
			out[i] = newName
		} else {
			out[i] = c
		}
	}
	return out
}

func (s Spec) String() string {
	return strings.Join(s, ",")
}

// Value is a row's primary-key value: a scalar for a single-column key, an
// ordered tuple for a composite one.
type Value []any

// Of builds a Value from one or more scalars, in Spec order.
func Of(values ...any) Value {
	out := make(Value, len(values))
	copy(out, values)
	return out
}

// Key returns a comparable, hashable string encoding of the value, suitable
// for use as a Go map key. Two Values with equal underlying scalars (even of
// differing but equal-by-value numeric types) produce the same Key.
func (v Value) Key() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%T:%v", x, x)
	}
	return strings.Join(parts, "\x1f")
}

// Scalar returns the single scalar value for a single-column key. It panics
// if the value is not length 1; callers should only use it once Spec.Single
// has been confirmed.
func (v Value) Scalar() any {
	if len(v) != 1 {
		panic("pk: Scalar called on composite key value")
	}
	return v[0]
}

// Equal reports whether two key values are element-wise equal.
func (v Value) Equal(o Value) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if fmt.Sprint(v[i]) != fmt.Sprint(o[i]) {
			return false
		}
	}
	return true
}
