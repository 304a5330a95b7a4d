// Package storage archives forecast runs in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/FlavioCFOliveira/pricecast/internal/output"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("run not found")

// Run is one archived forecast.
type Run struct {
	ID           uuid.UUID
	Source       string
	Profile      string
	Method       string
	CreatedAt    time.Time
	LastObserved time.Time
	Points       output.Trajectory
}

// Storage wraps the archive database.
type Storage struct {
	db     *sql.DB
	driver string
}

// Open connects to the archive and creates the schema. For sqlite, dsn is a
// file path (its directory is created) or ":memory:".
func Open(driver, dsn string) (*Storage, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Storage{db: db, driver: driver}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			source        TEXT NOT NULL,
			profile       TEXT NOT NULL,
			method        TEXT NOT NULL,
			created_at    BIGINT NOT NULL,
			last_observed BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source_created ON runs(source, created_at)`,
		`CREATE TABLE IF NOT EXISTS run_points (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			i      INTEGER NOT NULL,
			ds     BIGINT NOT NULL,
			y      DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, i)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRun stores run and its points in one transaction. A nil ID and a
// zero CreatedAt are filled in.
func (s *Storage) SaveRun(ctx context.Context, run *Run) error {
	if run.Source == "" {
		return fmt.Errorf("invalid run: empty source")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (id, source, profile, method, created_at, last_observed)
		VALUES (?,?,?,?,?,?)`),
		run.ID.String(), run.Source, run.Profile, run.Method,
		run.CreatedAt.UnixMilli(), run.LastObserved.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO run_points (run_id, i, ds, y) VALUES (?,?,?,?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range run.Points {
		if _, err := stmt.ExecContext(ctx, run.ID.String(), p.Index, p.Timestamp, p.Value); err != nil {
			return fmt.Errorf("failed to insert point %d: %w", p.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun loads a run with its points.
func (s *Storage) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, source, profile, method, created_at, last_observed
		FROM runs WHERE id = ?`), id.String())
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if run.Points, err = s.points(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun loads the most recent run for source with its points.
func (s *Storage) LatestRun(ctx context.Context, source string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, source, profile, method, created_at, last_observed
		FROM runs WHERE source = ?
		ORDER BY created_at DESC LIMIT 1`), source)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if run.Points, err = s.points(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs for source, newest first, without points.
// An empty source lists every run.
func (s *Storage) ListRuns(ctx context.Context, source string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, source, profile, method, created_at, last_observed FROM runs`
	args := []any{}
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run              Run
		id               string
		created, lastObs int64
	)
	if err := sc.Scan(&id, &run.Source, &run.Profile, &run.Method, &created, &lastObs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt run id %q: %w", id, err)
	}
	run.ID = parsed
	run.CreatedAt = time.UnixMilli(created).UTC()
	run.LastObserved = time.UnixMilli(lastObs).UTC()
	return &run, nil
}

func (s *Storage) points(ctx context.Context, id uuid.UUID) (output.Trajectory, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT i, ds, y FROM run_points WHERE run_id = ? ORDER BY i`), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load points: %w", err)
	}
	defer rows.Close()

	var t output.Trajectory
	for rows.Next() {
		var r output.Record
		if err := rows.Scan(&r.Index, &r.Timestamp, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		t = append(t, r)
	}
	return t, rows.Err()
}
