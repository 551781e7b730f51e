// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a local SQLite record of submitted search
// requests so they can be listed and refreshed later.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

const dbFile = "history.db"

// timeFormat has fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by Get for unknown request IDs.
var ErrNotFound = errors.New("request not in history")

// Entry is one recorded search request.
type Entry struct {
	RequestID   string          `json:"request_id" yaml:"request_id"`
	Kind        string          `json:"kind" yaml:"kind"`
	RequestURL  string          `json:"request_url" yaml:"request_url"`
	Query       json.RawMessage `json:"query,omitempty" yaml:"-"`
	Status      types.JobStatus `json:"status" yaml:"status"`
	ResultCount int             `json:"result_count" yaml:"result_count"`
	SubmittedAt time.Time       `json:"submitted_at" yaml:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Kind   string
	Status types.JobStatus
	Limit  int
}

// Store manages the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns ~/.config/aurorax/history.db.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, "aurorax", dbFile), nil
}

// Open opens or creates the history database at path and creates the
// schema if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			request_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			request_url TEXT NOT NULL,
			query TEXT,
			status TEXT NOT NULL,
			status_rank INTEGER NOT NULL,
			result_count INTEGER NOT NULL DEFAULT 0,
			submitted_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_kind ON requests(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_submitted ON requests(submitted_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts e, or merges it into an existing entry with the same
// request ID. A merge never lowers the stored status.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RequestID == "" {
		return types.Invalid("request_id", "must be set")
	}
	if e.Status == "" {
		e.Status = types.StatusPending
	}
	now := s.now().UTC()
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = now
	}
	var query sql.NullString
	if len(e.Query) > 0 {
		query = sql.NullString{String: string(e.Query), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (request_id, kind, request_url, query, status, status_rank, result_count, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			request_url = excluded.request_url,
			query = COALESCE(excluded.query, requests.query),
			status = CASE WHEN excluded.status_rank > requests.status_rank THEN excluded.status ELSE requests.status END,
			status_rank = MAX(excluded.status_rank, requests.status_rank),
			result_count = MAX(excluded.result_count, requests.result_count),
			updated_at = excluded.updated_at`,
		e.RequestID, e.Kind, e.RequestURL, query, string(e.Status), e.Status.Rank(), e.ResultCount,
		e.SubmittedAt.UTC().Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("recording request %s: %w", e.RequestID, err)
	}
	return nil
}

// Advance moves a request to status if that ranks above the stored
// status, and reports whether the row changed.
func (s *Store) Advance(ctx context.Context, requestID string, status types.JobStatus, resultCount int) (bool, error) {
	if status.Rank() == 0 {
		return false, types.Invalid("status", "unknown job status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET status = ?, status_rank = ?, result_count = MAX(result_count, ?), updated_at = ?
		WHERE request_id = ? AND status_rank < ?`,
		string(status), status.Rank(), resultCount, s.now().UTC().Format(timeFormat),
		requestID, status.Rank(),
	)
	if err != nil {
		return false, fmt.Errorf("advancing request %s: %w", requestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advancing request %s: %w", requestID, err)
	}
	return n > 0, nil
}

// Get returns the entry for requestID.
func (s *Store) Get(ctx context.Context, requestID string) (Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+` WHERE request_id = ?`, requestID)
	if err != nil {
		return Entry{}, fmt.Errorf("querying request %s: %w", requestID, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("%s: %w", requestID, ErrNotFound)
	}
	return entries[0], nil
}

// List returns entries matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var where []string
	var args []any
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	q := selectEntries
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY submitted_at DESC, rowid DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return scanEntries(rows)
}

const selectEntries = `SELECT request_id, kind, request_url, query, status, result_count, submitted_at, updated_at FROM requests`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			query              sql.NullString
			status             string
			submitted, updated string
		)
		if err := rows.Scan(&e.RequestID, &e.Kind, &e.RequestURL, &query, &status, &e.ResultCount, &submitted, &updated); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		e.Status = types.JobStatus(status)
		if query.Valid {
			e.Query = json.RawMessage(query.String)
		}
		e.SubmittedAt, _ = time.Parse(timeFormat, submitted)
		e.UpdatedAt, _ = time.Parse(timeFormat, updated)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return out, nil
}
