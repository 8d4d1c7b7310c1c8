package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stcam/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS captures (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			outcome TEXT NOT NULL,
			image_path TEXT NOT NULL DEFAULT '',
			prompt_path TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_captures_started ON captures(started_at);
		CREATE INDEX IF NOT EXISTS idx_captures_device ON captures(device_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveCapture inserts one capture history row
func (s *SQLiteStorage) SaveCapture(ctx context.Context, rec *storage.CaptureRecord) error {
	query := `
		INSERT INTO captures (id, device_id, started_at, finished_at, outcome, image_path, prompt_path, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.DeviceID,
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
		rec.Outcome,
		rec.ImagePath,
		rec.PromptPath,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	return nil
}

// GetCapture retrieves one capture row by ID
func (s *SQLiteStorage) GetCapture(ctx context.Context, id string) (*storage.CaptureRecord, error) {
	query := `
		SELECT id, device_id, started_at, finished_at, outcome, image_path, prompt_path, error
		FROM captures WHERE id = ?
	`
	rec, err := scanCapture(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrCaptureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return rec, nil
}

// ListCaptures returns the most recent capture rows, newest first. A
// non-positive limit selects 50.
func (s *SQLiteStorage) ListCaptures(ctx context.Context, limit int) ([]*storage.CaptureRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, device_id, started_at, finished_at, outcome, image_path, prompt_path, error
		FROM captures ORDER BY started_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	records := make([]*storage.CaptureRecord, 0)
	for rows.Next() {
		rec, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCapture(row rowScanner) (*storage.CaptureRecord, error) {
	var rec storage.CaptureRecord
	var started, finished time.Time
	err := row.Scan(
		&rec.ID,
		&rec.DeviceID,
		&started,
		&finished,
		&rec.Outcome,
		&rec.ImagePath,
		&rec.PromptPath,
		&rec.Error,
	)
	if err != nil {
		return nil, err
	}
	rec.StartedAt = started.UTC()
	rec.FinishedAt = finished.UTC()
	return &rec, nil
}

// Ensure SQLiteStorage satisfies the interface
var _ storage.Storage = (*SQLiteStorage)(nil)
