// Package store persists the last observed snapshot for each sheet in a
// sqlite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sheetwatch/sheetwatch/snapshot"
)

// ErrNoSnapshot marks a sheet that has never been observed. Any other load
// error is ambiguous and must abort that sheet's processing - treating it as
// 'no previous snapshot' would fabricate a first observation.
var ErrNoSnapshot = errors.New("no snapshot recorded for sheet")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    sheet_id TEXT NOT NULL PRIMARY KEY,
    taken_at TEXT NOT NULL,
    rows     BLOB NOT NULL
);
`

// Store records one snapshot per sheet - the previous observation replaced
// wholesale on every save. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to initialize snapshot store (%w)", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the last recorded snapshot for a sheet, or ErrNoSnapshot if
// the sheet has never been saved.
func (s *Store) Load(sheetID string) (snapshot.Snapshot, error) {
	var rows []byte

	err := s.db.QueryRow(`SELECT rows FROM snapshots WHERE sheet_id = ?`, sheetID).Scan(&rows)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return snapshot.Snapshot{}, fmt.Errorf("%w %s", ErrNoSnapshot, sheetID)

	case err != nil:
		return snapshot.Snapshot{}, fmt.Errorf("unable to load snapshot for sheet %s (%w)", sheetID, err)
	}

	var loaded snapshot.Snapshot
	if err := json.Unmarshal(rows, &loaded); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("corrupt snapshot for sheet %s (%w)", sheetID, err)
	}

	return loaded, nil
}

// Save replaces the recorded snapshot for a sheet.
func (s *Store) Save(sheetID string, current snapshot.Snapshot) error {
	rows, err := json.Marshal(current)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(
		`INSERT INTO snapshots (sheet_id, taken_at, rows) VALUES (?, ?, ?)
		 ON CONFLICT (sheet_id) DO UPDATE SET taken_at = excluded.taken_at, rows = excluded.rows`,
		sheetID,
		time.Now().UTC().Format(time.RFC3339),
		rows); err != nil {
		return fmt.Errorf("unable to save snapshot for sheet %s (%w)", sheetID, err)
	}

	return nil
}
