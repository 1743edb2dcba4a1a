package snapshot

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func TestFromValues(t *testing.T) {
	values := [][]any{
		{"Name", "Count", "Active"},
		{"widget", 17.0, true},
		{"", nil, false},
	}

	expected := Snapshot{
		Rows: []Row{
			{Text("Name"), Text("Count"), Text("Active")},
			{Text("widget"), Number(17), Bool(true)},
			{Cell{}, Cell{}, Bool(false)},
		},
	}

	s := FromValues(values)

	if !reflect.DeepEqual(s, expected) {
		t.Errorf("Incorrect snapshot\n   expected: %+v\n   got:      %+v\n", expected, s)
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	s := FromValues([][]any{
		{"a", 1.5, true},
		{"b", nil},
	})

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Unexpected error marshalling snapshot (%v)", err)
	}

	var restored Snapshot
	if err := json.Unmarshal(b, &restored); err != nil {
		t.Fatalf("Unexpected error unmarshalling snapshot (%v)", err)
	}

	if !reflect.DeepEqual(s, restored) {
		t.Errorf("Snapshot altered by persistence round trip\n   expected: %+v\n   got:      %+v\n", s, restored)
	}
}

func TestRowString(t *testing.T) {
	row := Row{Text("widget"), Number(17), Bool(true), Cell{}}

	if v := row.String(); v != "widget, 17, TRUE, " {
		t.Errorf("Incorrect row rendering - expected:%q, got:%q", "widget, 17, TRUE, ", v)
	}
}

func TestCellString(t *testing.T) {
	tests := []struct {
		cell     Cell
		expected string
	}{
		{Text("abc"), "abc"},
		{Number(1), "1"},
		{Number(1.25), "1.25"},
		{Bool(false), "FALSE"},
		{Cell{}, ""},
	}

	for _, v := range tests {
		if s := v.cell.String(); s != v.expected {
			t.Errorf("Incorrect rendering for %+v - expected:%q, got:%q", v.cell, v.expected, s)
		}
	}
}

func TestWriteTSV(t *testing.T) {
	s := FromValues([][]any{
		{"Name", "Count"},
		{"widget", 17.0},
	})

	var b bytes.Buffer

	if err := s.WriteTSV(&b); err != nil {
		t.Fatalf("Unexpected error writing TSV (%v)", err)
	}

	expected := "Name\tCount\nwidget\t17\n"

	if b.String() != expected {
		t.Errorf("Incorrect TSV\n   expected: %q\n   got:      %q\n", expected, b.String())
	}
}
