// Package conflict detects and resolves concurrent-modification conflicts
// between a caller's pending local changes and the state currently held by
// the database, as observed when a push is about to reapply them.
package conflict

import (
	"fmt"
	"math"

	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

// Strategy selects how a resolver handles a detected conflict.
type Strategy int

const (
	// LastWriterWins overwrites the remote value with the local change. The
	// default strategy.
	LastWriterWins Strategy = iota
	// FirstWriterWins discards the local change, keeping the remote value.
	FirstWriterWins
	// Abort returns a conflict error instead of resolving anything.
	Abort
	// Merge keeps local values for conflicting columns and adopts remote
	// values for any other column the remote side changed.
	Merge
	// Custom delegates resolution to a caller-supplied Resolver.
	Custom
)

func (s Strategy) String() string {
	switch s {
	case LastWriterWins:
		return "last_writer_wins"
	case FirstWriterWins:
		return "first_writer_wins"
	case Abort:
		return "abort"
	case Merge:
		return "merge"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Conflict describes one row whose locally pending update collides with a
// remote change observed since the baseline was read.
type Conflict struct {
	Key                pk.Value
	Local              table.Row
	Remote             table.Row
	ConflictingColumns []string
}

// Resolver computes the change set to apply for a CUSTOM-strategy conflict.
type Resolver func(key pk.Value, local, remote table.Row) table.Row

// Error reports an unresolved conflict under the Abort strategy.
type Error struct {
	Table              string
	Key                pk.Value
	Local              table.Row
	Remote             table.Row
	ConflictingColumns []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("conflict: concurrent modification of %s row %v on columns %v",
		e.Table, []any(e.Key), e.ConflictingColumns)
}

// Detect compares each locally pending update against the row currently
// held remotely (and, if available, the baseline the local change was made
// against) and reports the rows with genuine conflicts: a column the local
// side changed that the remote side has also changed since the baseline.
//
// localChanges maps a row's PK to the column values the caller intends to
// write. remote is the table's current database-observed state; baseline,
// if non-nil, is the snapshot the local changes were computed against —
// when present, a column only conflicts if the remote value differs from
// baseline AND from the local value (matching the original library's
// three-way comparison); when absent, any local/remote mismatch conflicts.
func Detect(localChanges map[string]table.Row, keys map[string]pk.Value, remote *table.Table, baseline *table.Table) []Conflict {
	var out []Conflict
	for keyStr, local := range localChanges {
		key := keys[keyStr]
		remoteRow, ok := remote.GetRow(key)
		if !ok {
			continue // deleted remotely; not a conflict here
		}
		var baseRow table.Row
		haveBase := false
		if baseline != nil {
			baseRow, haveBase = baseline.GetRow(key)
		}
		var cols []string
		for col, localVal := range local {
			remoteVal, present := remoteRow[col]
			if !present {
				continue
			}
			if haveBase {
				baseVal, baseHas := baseRow[col]
				if baseHas && valuesEqual(baseVal, remoteVal) {
					continue // remote unchanged from baseline
				}
			}
			if valuesEqual(localVal, remoteVal) {
				continue
			}
			cols = append(cols, col)
		}
		if len(cols) > 0 {
			out = append(out, Conflict{Key: key, Local: local, Remote: remoteRow, ConflictingColumns: cols})
		}
	}
	return out
}

func valuesEqual(a, b any) bool {
	if isNaN(a) && isNaN(b) {
		return true
	}
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// Resolve computes, for each conflict, the final set of column values to
// apply locally before the write proceeds. tableName is used only for Abort
// error messages.
func Resolve(conflicts []Conflict, strategy Strategy, tableName string, custom Resolver) (map[string]table.Row, error) {
	resolved := make(map[string]table.Row, len(conflicts))
	for _, c := range conflicts {
		switch strategy {
		case LastWriterWins:
			resolved[c.Key.Key()] = c.Local

		case FirstWriterWins:
			resolved[c.Key.Key()] = table.Row{}

		case Abort:
			return nil, &Error{
				Table:              tableName,
				Key:                c.Key,
				Local:              c.Local,
				Remote:             c.Remote,
				ConflictingColumns: c.ConflictingColumns,
			}

		case Merge:
			merged := c.Local.Clone()
			conflicting := make(map[string]bool, len(c.ConflictingColumns))
			for _, col := range c.ConflictingColumns {
				conflicting[col] = true
			}
			for col, v := range c.Remote {
				if !conflicting[col] {
					merged[col] = v
				}
			}
			resolved[c.Key.Key()] = merged

		case Custom:
			if custom == nil {
				return nil, fmt.Errorf("conflict: CUSTOM strategy requires a Resolver")
			}
			resolved[c.Key.Key()] = custom(c.Key, c.Local, c.Remote)

		default:
			return nil, fmt.Errorf("conflict: unknown strategy %v", strategy)
		}
	}
	return resolved, nil
}
