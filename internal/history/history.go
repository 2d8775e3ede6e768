// Package history keeps a local SQLite ledger of profile generations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Status values recorded for a generation.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Entry is one recorded generation.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Input     string
	Output    string
	Provider  string
	Model     string
	Preset    string
	Blocks    int
	Applied   int
	Status    string
	Error     string
	Duration  time.Duration
}

// Summary aggregates the ledger.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	AvgMs     float64
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS generations (
	id          TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	preset      TEXT NOT NULL DEFAULT '',
	blocks      INTEGER NOT NULL DEFAULT 0,
	applied     INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
`

const insertSQL = `
INSERT INTO generations (id, created_at, input, output, provider, model, preset, blocks, applied, status, error, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const recentSQL = `
SELECT id, created_at, input, output, provider, model, preset, blocks, applied, status, error, duration_ms
FROM generations
ORDER BY created_at DESC, rowid DESC
LIMIT ?`

const summarySQL = `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status != 'success' THEN 1 ELSE 0 END), 0),
	COALESCE(AVG(duration_ms), 0)
FROM generations`

// timeLayout is fixed width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Tracker records generations in SQLite. It is safe for concurrent use.
type Tracker struct {
	db *sql.DB
}

// Open opens or creates the ledger at dbPath.
func Open(dbPath string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("history: create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	// One writer at a time; batch runs record concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &Tracker{db: db}, nil
}

// Record stores e, assigning an ID and timestamp when they are unset.
func (t *Tracker) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := t.db.ExecContext(ctx, insertSQL,
		e.ID, e.CreatedAt.UTC().Format(timeLayout), e.Input, e.Output,
		e.Provider, e.Model, e.Preset, e.Blocks, e.Applied,
		e.Status, e.Error, e.Duration.Milliseconds(),
	)
	if err != nil {
		return e, fmt.Errorf("history: record: %w", err)
	}
	return e, nil
}

// Recent returns the last n entries, newest first.
func (t *Tracker) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := t.db.QueryContext(ctx, recentSQL, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			created    string
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &created, &e.Input, &e.Output, &e.Provider, &e.Model,
			&e.Preset, &e.Blocks, &e.Applied, &e.Status, &e.Error, &durationMs); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("history: bad timestamp %q: %w", created, err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary returns aggregate counts over the whole ledger.
func (t *Tracker) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := t.db.QueryRowContext(ctx, summarySQL).Scan(&s.Total, &s.Succeeded, &s.Failed, &s.AvgMs)
	if err != nil {
		return Summary{}, fmt.Errorf("history: summary: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}
