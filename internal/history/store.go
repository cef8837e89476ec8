// Package history keeps an audit trail of prediction and evaluation runs in
// SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one recorded prediction or evaluation.
type Run struct {
	ID              string         `json:"id"`
	Model           string         `json:"model"`
	Endpoint        string         `json:"endpoint"`
	Rows            int            `json:"rows"`
	MissingFeatures int            `json:"missing_features"`
	Counts          map[string]int `json:"counts_by_class,omitempty"`
	Notes           []string       `json:"notes,omitempty"`
	Accuracy        *float64       `json:"accuracy,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Store persists runs.
type Store struct {
	db  *sql.DB
	now func() time.Time
	mu  sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	model            TEXT NOT NULL,
	endpoint         TEXT NOT NULL,
	rows             INTEGER NOT NULL,
	missing_features INTEGER NOT NULL DEFAULT 0,
	counts           TEXT NOT NULL DEFAULT '{}',
	notes            TEXT NOT NULL DEFAULT '[]',
	accuracy         REAL,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// NewStore opens or creates the database at path.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run, assigning its ID and creation time.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = s.now().UTC()

	counts, err := json.Marshal(orEmpty(run.Counts))
	if err != nil {
		return Run{}, err
	}
	notes, err := json.Marshal(append([]string{}, run.Notes...))
	if err != nil {
		return Run{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, model, endpoint, rows, missing_features, counts, notes, accuracy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.Endpoint, run.Rows, run.MissingFeatures,
		string(counts), string(notes), run.Accuracy, run.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

func orEmpty(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

const selectRuns = `SELECT id, model, endpoint, rows, missing_features, counts, notes, accuracy, created_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run           Run
		counts, notes string
		accuracy      sql.NullFloat64
		created       string
	)
	if err := sc.Scan(&run.ID, &run.Model, &run.Endpoint, &run.Rows, &run.MissingFeatures,
		&counts, &notes, &accuracy, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(counts), &run.Counts); err != nil {
		return nil, fmt.Errorf("decode counts of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(notes), &run.Notes); err != nil {
		return nil, fmt.Errorf("decode notes of run %s: %w", run.ID, err)
	}
	if accuracy.Valid {
		run.Accuracy = &accuracy.Float64
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("decode time of run %s: %w", run.ID, err)
	}
	run.CreatedAt = t
	return &run, nil
}

// Get returns a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return run, err
}

// List returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := selectRuns + ` ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Prune deletes runs created before the cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
