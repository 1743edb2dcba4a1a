package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type CellType int

const (
	TypeEmpty CellType = iota
	TypeText
	TypeNumber
	TypeBool
)

// Cell is a single typed scalar value from a worksheet. The zero value is the
// empty cell.
type Cell struct {
	Type   CellType
	Text   string
	Number float64
	Bool   bool
}

func Text(v string) Cell {
	if v == "" {
		return Cell{}
	}

	return Cell{Type: TypeText, Text: v}
}

func Number(v float64) Cell {
	return Cell{Type: TypeNumber, Number: v}
}

func Bool(v bool) Cell {
	return Cell{Type: TypeBool, Bool: v}
}

func (c Cell) IsEmpty() bool {
	return c.Type == TypeEmpty
}

// String renders the cell the way it would appear in the worksheet.
func (c Cell) String() string {
	switch c.Type {
	case TypeText:
		return c.Text

	case TypeNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)

	case TypeBool:
		if c.Bool {
			return "TRUE"
		}
		return "FALSE"

	default:
		return ""
	}
}

// numeric returns the cell's numeric value. Text cells qualify if the text
// parses as a float ('1.0' and 1 are the same value).
func (c Cell) numeric() (float64, bool) {
	switch c.Type {
	case TypeNumber:
		return c.Number, true

	case TypeText:
		if v, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64); err == nil {
			return v, true
		}
	}

	return 0, false
}

type Row []Cell

// String renders a row as a comma separated list of cell values.
func (r Row) String() string {
	cells := make([]string, len(r))
	for i, c := range r {
		cells[i] = c.String()
	}

	return strings.Join(cells, ", ")
}

// Snapshot is a positional grid of cell values - one sheet's contents at one
// point in time. Row and column order are significant and a snapshot is never
// modified after construction.
type Snapshot struct {
	Rows []Row
}

// FromValues builds a snapshot from the value grid returned by the Sheets API
// ('values' cells are JSON scalars: string, float64, bool or nil).
func FromValues(values [][]any) Snapshot {
	rows := make([]Row, len(values))

	for i, record := range values {
		row := make(Row, len(record))
		for j, v := range record {
			row[j] = fromValue(v)
		}

		rows[i] = row
	}

	return Snapshot{Rows: rows}
}

func fromValue(v any) Cell {
	switch value := v.(type) {
	case nil:
		return Cell{}

	case string:
		return Text(value)

	case float64:
		return Number(value)

	case bool:
		return Bool(value)

	case json.Number:
		if f, err := value.Float64(); err == nil {
			return Number(f)
		}
		return Text(value.String())

	default:
		return Text(fmt.Sprintf("%v", value))
	}
}

// Values converts the snapshot back to a grid of JSON scalars.
func (s Snapshot) Values() [][]any {
	values := make([][]any, len(s.Rows))

	for i, row := range s.Rows {
		record := make([]any, len(row))
		for j, c := range row {
			switch c.Type {
			case TypeText:
				record[j] = c.Text

			case TypeNumber:
				record[j] = c.Number

			case TypeBool:
				record[j] = c.Bool

			default:
				record[j] = nil
			}
		}

		values[i] = record
	}

	return values
}

// MarshalJSON encodes the snapshot as its scalar value grid.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var values [][]any

	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}

	*s = FromValues(values)

	return nil
}

// WriteTSV writes the snapshot as tab separated values.
func (s Snapshot) WriteTSV(f io.Writer) error {
	w := csv.NewWriter(f)
	w.Comma = '\t'

	for _, row := range s.Rows {
		record := make([]string, len(row))
		for i, c := range row {
			record[i] = c.String()
		}

		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}
