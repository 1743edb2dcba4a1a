package snapshot

import (
	"fmt"
)

type ChangeKind int

const (
	RowAdded ChangeKind = iota
	RowRemoved
	RowChanged
)

func (k ChangeKind) String() string {
	switch k {
	case RowAdded:
		return "added"

	case RowRemoved:
		return "removed"

	case RowChanged:
		return "changed"

	default:
		return "unknown"
	}
}

// CellDiff records one differing cell within a changed row.
type CellDiff struct {
	Column int
	Old    Cell
	New    Cell
}

// Change records one unit of difference between two snapshots. Old is unset
// for added rows and New is unset for removed rows.
type Change struct {
	Kind  ChangeKind
	Index int
	Old   Row
	New   Row
	Cells []CellDiff
}

func (c Change) String() string {
	switch c.Kind {
	case RowAdded:
		return fmt.Sprintf("row %v added: %v", c.Index+1, c.New)

	case RowRemoved:
		return fmt.Sprintf("row %v removed: %v", c.Index+1, c.Old)

	default:
		return fmt.Sprintf("row %v changed: %v", c.Index+1, c.New)
	}
}

// Result is the outcome of comparing two snapshots of the same sheet. First
// is set when there was no previous snapshot to compare against, in which
// case Changes is always empty.
type Result struct {
	First   bool
	Rows    int
	Changes []Change
}

func (r Result) Unchanged() bool {
	return !r.First && len(r.Changes) == 0
}

// Compare diffs two snapshots of a sheet positionally, row by row and cell by
// cell. It never mutates its arguments and identical inputs always produce
// identical, identically ordered output.
//
// A nil previous snapshot marks the first observation of the sheet - there is
// nothing to compare against, so no change records are produced.
func Compare(previous *Snapshot, current Snapshot) Result {
	if previous == nil {
		return Result{First: true, Rows: len(current.Rows)}
	}

	result := Result{Rows: len(current.Rows)}

	// ... rows present in both snapshots
	common := len(previous.Rows)
	if len(current.Rows) < common {
		common = len(current.Rows)
	}

	for i := 0; i < common; i++ {
		cells := compareRows(previous.Rows[i], current.Rows[i])
		if len(cells) > 0 {
			result.Changes = append(result.Changes, Change{
				Kind:  RowChanged,
				Index: i,
				Old:   previous.Rows[i],
				New:   current.Rows[i],
				Cells: cells,
			})
		}
	}

	// ... trailing rows only in the current snapshot
	for i := common; i < len(current.Rows); i++ {
		result.Changes = append(result.Changes, Change{
			Kind:  RowAdded,
			Index: i,
			New:   current.Rows[i],
		})
	}

	// ... trailing rows only in the previous snapshot
	for i := common; i < len(previous.Rows); i++ {
		result.Changes = append(result.Changes, Change{
			Kind:  RowRemoved,
			Index: i,
			Old:   previous.Rows[i],
		})
	}

	return result
}

func compareRows(previous, current Row) []CellDiff {
	diffs := []CellDiff{}

	columns := len(previous)
	if len(current) > columns {
		columns = len(current)
	}

	for i := 0; i < columns; i++ {
		before := Cell{}
		if i < len(previous) {
			before = previous[i]
		}

		after := Cell{}
		if i < len(current) {
			after = current[i]
		}

		if !equal(before, after) {
			diffs = append(diffs, CellDiff{Column: i, Old: before, New: after})
		}
	}

	return diffs
}

// equal compares two cells under the value normalization policy:
//   - a typed number compares numerically against any cell with a numeric
//     value, so '1.0' and 1 at the same position are not a change
//   - two text cells compare by exact string equality, whitespace included
//   - an empty cell and an absent cell are equivalent (both are the zero Cell)
func equal(a, b Cell) bool {
	if a.Type == TypeNumber || b.Type == TypeNumber {
		u, uok := a.numeric()
		v, vok := b.numeric()

		if uok && vok {
			return u == v
		}
	}

	if a.Type != b.Type {
		return false
	}

	switch a.Type {
	case TypeText:
		return a.Text == b.Text

	case TypeNumber:
		return a.Number == b.Number

	case TypeBool:
		return a.Bool == b.Bool

	default:
		return true
	}
}
