// Package sheets retrieves worksheet snapshots from the Google Sheets API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	api "google.golang.org/api/sheets/v4"

	"github.com/sheetwatch/sheetwatch/snapshot"
)

type Kind int

const (
	// Retryable marks a transient fault (network, 5xx) - worth retrying.
	Retryable Kind = iota

	// NotFound marks a missing or inaccessible spreadsheet - the sheet is
	// skipped and its stored snapshot left untouched.
	NotFound

	// Unauthorized marks a rejected access token - the credential store
	// should be invalidated and the fetch retried once.
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"

	case Unauthorized:
		return "unauthorized"

	default:
		return "retryable"
	}
}

// FetchError classifies a failed sheet fetch.
type FetchError struct {
	SheetID string
	Kind    Kind
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("sheet %s: %s (%v)", e.SheetID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Kindof returns the classification of a fetch error (Retryable for anything
// that is not a FetchError).
func Kindof(err error) Kind {
	var fetcherr *FetchError

	if errors.As(err, &fetcherr) {
		return fetcherr.Kind
	}

	return Retryable
}

// Fetcher is the contract the orchestrator requires: one call returns one
// consistent snapshot of one sheet's current contents.
type Fetcher interface {
	Fetch(ctx context.Context, sheetID string) (snapshot.Snapshot, error)
}

// Client fetches a fixed worksheet range from spreadsheets via the Sheets
// API. Safe for concurrent use.
type Client struct {
	service *api.Service
	area    string
}

func NewClient(ctx context.Context, ts oauth2.TokenSource, area string) (*Client, error) {
	service, err := api.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets client (%w)", err)
	}

	return &Client{
		service: service,
		area:    area,
	}, nil
}

func (c *Client) Fetch(ctx context.Context, sheetID string) (snapshot.Snapshot, error) {
	response, err := c.service.Spreadsheets.Values.Get(SpreadsheetID(sheetID), c.area).Context(ctx).Do()
	if err != nil {
		return snapshot.Snapshot{}, classify(sheetID, err)
	}

	// A range with no values is a valid (empty) snapshot
	return snapshot.FromValues(response.Values), nil
}

var urlPattern = regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`)

// SpreadsheetID extracts the spreadsheet ID from a docs.google.com URL.
// Anything that is not a spreadsheet URL is assumed to already be an ID.
func SpreadsheetID(v string) string {
	if match := urlPattern.FindStringSubmatch(v); len(match) > 1 {
		return match[1]
	}

	return v
}

func classify(sheetID string, err error) error {
	var apierr *googleapi.Error

	kind := Retryable

	if errors.As(err, &apierr) {
		switch apierr.Code {
		case http.StatusNotFound:
			kind = NotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			kind = Unauthorized
		}
	}

	return &FetchError{
		SheetID: sheetID,
		Kind:    kind,
		Err:     err,
	}
}
