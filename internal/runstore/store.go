// Package runstore keeps the cross-invocation history of runs in SQLite,
// backing the runs listing and batch bookkeeping.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/safebench/mmbench/internal/domain"
)

// Store provides SQLite-backed run history persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRun inserts or updates a run record
func (s *Store) UpsertRun(rec *domain.RunRecord) error {
	catJSON, err := json.Marshal(rec.Categories)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, dir, provider, model, status, started_at, finished_at, completed, failed, retried, categories, stop_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			completed = excluded.completed,
			failed = excluded.failed,
			retried = excluded.retried,
			categories = excluded.categories,
			stop_reason = excluded.stop_reason
	`,
		rec.ID,
		rec.Dir,
		rec.Provider,
		rec.Model,
		string(rec.Status),
		rec.StartedAt,
		rec.FinishedAt,
		rec.Tally.Completed,
		rec.Tally.Failed,
		rec.Tally.Retried,
		string(catJSON),
		string(rec.StopReason),
	)
	return err
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id int64) (*domain.RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, dir, provider, model, status, started_at, finished_at, completed, failed, retried, categories, stop_reason
		FROM runs WHERE id = ?
	`, id)

	return scanRun(row)
}

// ListOptions specifies filters for listing runs
type ListOptions struct {
	Model  string
	Status domain.RunStatus
	Limit  int
}

// ListRuns returns runs matching the given options, newest first
func (s *Store) ListRuns(opts ListOptions) ([]*domain.RunRecord, error) {
	query := `SELECT id, dir, provider, model, status, started_at, finished_at, completed, failed, retried, categories, stop_reason FROM runs WHERE 1=1`
	var args []interface{}

	if opts.Model != "" {
		query += " AND model = ?"
		args = append(args, opts.Model)
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scannable) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	var status, catJSON, stopReason string
	var finishedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.Dir,
		&rec.Provider,
		&rec.Model,
		&status,
		&rec.StartedAt,
		&finishedAt,
		&rec.Tally.Completed,
		&rec.Tally.Failed,
		&rec.Tally.Retried,
		&catJSON,
		&stopReason,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.RunStatus(status)
	rec.StopReason = domain.StopReason(stopReason)
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	rec.Categories = make(map[string]*domain.CategoryTally)
	if catJSON != "" {
		if err := json.Unmarshal([]byte(catJSON), &rec.Categories); err != nil {
			return nil, fmt.Errorf("decoding categories for run %d: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// Duration returns the wall-clock duration of a finished run, or the
// elapsed time so far for a running one.
func Duration(rec *domain.RunRecord) time.Duration {
	if rec.FinishedAt != nil {
		return rec.FinishedAt.Sub(rec.StartedAt)
	}
	return time.Since(rec.StartedAt)
}
