// Package store persists deliverables and their version history in sqlite.
// Versions are append-only; every review transition is a conditional update
// so concurrent decisions surface as conflicts instead of overwrites.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a deliverable or version does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update finds the row no longer
// in the expected state.
var ErrConflict = errors.New("state conflict")

const schema = `
CREATE TABLE IF NOT EXISTS deliverables (
    id             TEXT PRIMARY KEY,
    tenant         TEXT NOT NULL,
    title          TEXT NOT NULL,
    type           TEXT NOT NULL,
    destination    TEXT NOT NULL DEFAULT '{}',
    sources        TEXT NOT NULL DEFAULT '[]',
    frequency      TEXT NOT NULL,
    day            TEXT NOT NULL DEFAULT '',
    time_of_day    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'archived')),
    quality_score  REAL,
    quality_trend  TEXT NOT NULL DEFAULT 'stable',
    next_run_at    TEXT,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
    id              TEXT PRIMARY KEY,
    deliverable_id  TEXT NOT NULL REFERENCES deliverables(id),
    number          INTEGER NOT NULL,
    status          TEXT NOT NULL CHECK (status IN ('generating', 'staged', 'reviewing', 'approved', 'rejected', 'failed')),
    draft_content   TEXT NOT NULL DEFAULT '',
    final_content   TEXT,
    edit_distance   REAL,
    feedback_notes  TEXT NOT NULL DEFAULT '',
    error_msg       TEXT NOT NULL DEFAULT '',
    claimed_by      TEXT NOT NULL DEFAULT '',
    claimed_at      TEXT,
    created_at      TEXT NOT NULL,
    staged_at       TEXT,
    completed_at    TEXT,
    UNIQUE (deliverable_id, number)
);

CREATE INDEX IF NOT EXISTS idx_deliverables_tenant ON deliverables(tenant);
CREATE INDEX IF NOT EXISTS idx_deliverables_status ON deliverables(status);
CREATE INDEX IF NOT EXISTS idx_versions_deliverable ON versions(deliverable_id);
CREATE INDEX IF NOT EXISTS idx_versions_status ON versions(status);
`

// timeLayout is fixed-width UTC so stored timestamps sort lexicographically,
// which the claim-expiry comparison relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Open opens (creating if needed) the sqlite database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	return db, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
