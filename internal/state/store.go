// Package state persists trace runs in a SQLite database with embedded
// goose migrations.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// timeFormat sorts lexicographically for UTC times.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run is a saved trace.
type Run struct {
	ID         string    `json:"id"`
	Table      string    `json:"table"`
	Columns    []string  `json:"columns"`
	CreatedAt  time.Time `json:"created_at"`
	StepCount  int       `json:"step_count"`
	ErrorCount int       `json:"error_count"`
}

// Store is the run history database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies
// migrations. Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := NewWithDB(db, logger)
	s.path = path
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an open, migrated connection.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// Path returns the database path given to Open.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// SaveRun stores a trace result and its flattened steps in one transaction
// and returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, res *lineage.Result, steps []lineage.Step) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	id := generateID()
	errorCount := 0
	for _, st := range steps {
		if st.Kind == lineage.NodeError {
			errorCount++
		}
	}

	s.logger.Debug("saving trace run",
		slog.String("id", id),
		slog.String("table", res.Table),
		slog.Int("steps", len(steps)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trace_runs (id, table_name, columns, created_at, step_count, error_count) VALUES (?, ?, ?, ?, ?, ?)`,
		id, res.Table, strings.Join(res.Columns, ","), time.Now().UTC().Format(timeFormat), len(steps), errorCount,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trace_steps (run_id, step_index, depth, kind, table_name, column_name, detail, branch, expression, projection) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range steps {
		if _, err := stmt.ExecContext(ctx, id, st.Index, st.Depth, string(st.Kind), st.Table, st.Column, st.Detail, st.Branch, st.Expression, string(st.ProjectionKind)); err != nil {
			return "", fmt.Errorf("failed to insert step %d: %w", st.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

const runColumns = `id, table_name, columns, created_at, step_count, error_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		columns   string
		createdAt string
	)
	if err := row.Scan(&run.ID, &run.Table, &columns, &createdAt, &run.StepCount, &run.ErrorCount); err != nil {
		return nil, err
	}
	if columns != "" {
		run.Columns = strings.Split(columns, ",")
	}
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = t
	return &run, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM trace_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run. The ID may be a unique prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM trace_runs WHERE id LIKE ? || '%' ORDER BY id LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous", id)
	}
}

// GetSteps returns the steps of a run in order.
func (s *Store) GetSteps(ctx context.Context, runID string) ([]lineage.Step, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_index, depth, kind, table_name, column_name, detail, branch, expression, projection
		 FROM trace_steps WHERE run_id = ? ORDER BY step_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []lineage.Step
	for rows.Next() {
		var (
			st         lineage.Step
			kind       string
			projection string
		)
		if err := rows.Scan(&st.Index, &st.Depth, &kind, &st.Table, &st.Column, &st.Detail, &st.Branch, &st.Expression, &projection); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Kind = lineage.NodeKind(kind)
		st.ProjectionKind = lineage.ProjectionKind(projection)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	return steps, nil
}
