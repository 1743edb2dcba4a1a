package sheets

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestSpreadsheetID(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"},
		{"https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms/edit#gid=0", "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"},
		{"1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"},
	}

	for _, v := range tests {
		if id := SpreadsheetID(v.url); id != v.expected {
			t.Errorf("Incorrect spreadsheet ID for %q - expected:%q, got:%q", v.url, v.expected, id)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		expected Kind
	}{
		{&googleapi.Error{Code: 404}, NotFound},
		{&googleapi.Error{Code: 401}, Unauthorized},
		{&googleapi.Error{Code: 403}, Unauthorized},
		{&googleapi.Error{Code: 500}, Retryable},
		{&googleapi.Error{Code: 429}, Retryable},
		{fmt.Errorf("connection reset"), Retryable},
	}

	for _, v := range tests {
		err := classify("sheet-1", v.err)

		var fetcherr *FetchError
		if !errors.As(err, &fetcherr) {
			t.Fatalf("classify returned %T, expected *FetchError", err)
		}

		if fetcherr.Kind != v.expected {
			t.Errorf("Incorrect classification for %v - expected:%v, got:%v", v.err, v.expected, fetcherr.Kind)
		}

		if !errors.Is(err, v.err) {
			t.Errorf("FetchError does not unwrap to the original error (%v)", v.err)
		}
	}
}

func TestKindof(t *testing.T) {
	if kind := Kindof(&FetchError{SheetID: "sheet-1", Kind: NotFound}); kind != NotFound {
		t.Errorf("Incorrect kind - expected:%v, got:%v", NotFound, kind)
	}

	if kind := Kindof(fmt.Errorf("some other error")); kind != Retryable {
		t.Errorf("Incorrect kind for unclassified error - expected:%v, got:%v", Retryable, kind)
	}
}
