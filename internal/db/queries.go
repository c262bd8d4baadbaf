package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/blockcad/internal/errors"
)

// Entry is one journaled console line.
type Entry struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
}

// ExportRecord remembers a file written by the editor.
type ExportRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Format    string `json:"format"`
	Blocks    int    `json:"blocks"`
	Triangles int    `json:"triangles"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
}

// NewID returns a fresh ULID string.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// InsertEntry stores e, filling ID and CreatedAt when they are empty.
func InsertEntry(ctx context.Context, db *sql.DB, e *Entry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO journal (id, session_id, level, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Level, e.Message, e.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RecentEntries returns up to limit entries, newest first. An empty sessionID
// lists across all sessions.
func RecentEntries(ctx context.Context, db *sql.DB, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, session_id, level, message, created_at FROM journal`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	// ULIDs sort by time, so id breaks ties within one millisecond.
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Level, &e.Message, &e.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// InsertExport stores r, filling ID and CreatedAt when they are empty.
func InsertExport(ctx context.Context, db *sql.DB, r *ExportRecord) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO exports (id, session_id, path, format, blocks, triangles, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Path, r.Format, r.Blocks, r.Triangles, r.Bytes, r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListExports returns up to limit export records, newest first.
func ListExports(ctx context.Context, db *sql.DB, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, path, format, blocks, triangles, bytes, created_at
		FROM exports
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	records := []ExportRecord{}
	for rows.Next() {
		var r ExportRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Path, &r.Format, &r.Blocks, &r.Triangles, &r.Bytes, &r.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return records, nil
}

// Sink journals console lines for one session. It satisfies the editor's
// journal hook.
type Sink struct {
	DB        *sql.DB
	SessionID string
}

// Write stores one line. Errors are returned for the caller to log; a failing
// journal never blocks the editor.
func (s *Sink) Write(ctx context.Context, level, message string) error {
	return InsertEntry(ctx, s.DB, &Entry{SessionID: s.SessionID, Level: level, Message: message})
}

// RecordExport stores an export record for the sink's session.
func (s *Sink) RecordExport(ctx context.Context, r ExportRecord) error {
	r.SessionID = s.SessionID
	return InsertExport(ctx, s.DB, &r)
}
