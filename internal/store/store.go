// Package store keeps a local history of scored recordings for manual reload.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leandrodaf/perfdiff/internal/codec"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("recording not found")

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    score_id    TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    saved_at    INTEGER NOT NULL,
    note_count  INTEGER NOT NULL,
    edit_count  INTEGER NOT NULL,
    payload     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recordings_score ON recordings(score_id, created_at);
`

// Summary describes a stored recording without its payload.
type Summary struct {
	ID        int64
	ScoreID   string
	CreatedAt time.Time
	SavedAt   time.Time
	Notes     int
	Edits     int
}

// Entry is a stored recording with its encoded payload.
type Entry struct {
	Summary
	Payload []byte
}

// Store is the SQLite recordings store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores a recording. raw is the payload as received; when empty the recording is encoded.
func (s *Store) Save(ctx context.Context, scoreID string, raw []byte, rec *contracts.Recording) error {
	if rec == nil {
		return errors.New("nil recording")
	}
	if len(raw) == 0 {
		var err error
		if raw, err = codec.EncodeRecording(*rec); err != nil {
			return fmt.Errorf("encode recording: %w", err)
		}
	}
	createdAt := rec.CreatedAt
	if createdAt == 0 {
		createdAt = s.now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (score_id, created_at, saved_at, note_count, edit_count, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scoreID, createdAt, s.now().UnixMilli(),
		len(rec.PlayedNotes.Notes), len(rec.ComputedEdits.Edits), raw)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// List returns the newest recordings first. An empty scoreID lists every score; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, scoreID string, limit int) ([]Summary, error) {
	query := `SELECT id, score_id, created_at, saved_at, note_count, edit_count FROM recordings`
	var args []any
	if scoreID != "" {
		query += ` WHERE score_id = ?`
		args = append(args, scoreID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var created, saved int64
		if err := rows.Scan(&sum.ID, &sum.ScoreID, &created, &saved, &sum.Notes, &sum.Edits); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		sum.CreatedAt = time.UnixMilli(created)
		sum.SavedAt = time.UnixMilli(saved)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get returns one recording with its payload.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	var e Entry
	var created, saved int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, score_id, created_at, saved_at, note_count, edit_count, payload
		FROM recordings WHERE id = ?`, id).
		Scan(&e.ID, &e.ScoreID, &created, &saved, &e.Notes, &e.Edits, &e.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	e.CreatedAt = time.UnixMilli(created)
	e.SavedAt = time.UnixMilli(saved)
	return &e, nil
}

// Latest returns the newest recording of a score.
func (s *Store) Latest(ctx context.Context, scoreID string) (*Entry, error) {
	list, err := s.List(ctx, scoreID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: score %s", ErrNotFound, scoreID)
	}
	return s.Get(ctx, list[0].ID)
}
