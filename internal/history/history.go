// Package history keeps a SQLite ledger of kernel builds and stepping runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBName is the ledger file name inside the work directory.
const DBName = "history.db"

// Build is one compiler invocation.
type Build struct {
	ID         int64         `json:"id"`
	SessionID  string        `json:"session_id"`
	SourceHash string        `json:"source_hash"`
	Command    string        `json:"command"`
	ExitCode   int           `json:"exit_code"`
	Artifact   string        `json:"artifact,omitempty"`
	LogPath    string        `json:"log_path,omitempty"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Run is one stepped batch.
type Run struct {
	ID             int64         `json:"id"`
	SessionID      string        `json:"session_id"`
	Backend        string        `json:"backend"`
	Cells          int           `json:"cells"`
	Steps          int           `json:"steps"`
	Elapsed        time.Duration `json:"elapsed"`
	CellsPerSecond float64       `json:"cells_per_second"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Ledger is a SQLite-backed history. Safe for concurrent use.
type Ledger struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file location.
func (l *Ledger) Path() string { return l.path }

// RecordBuild appends a build row.
func (l *Ledger) RecordBuild(ctx context.Context, b Build) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO builds (session_id, source_hash, command, exit_code, artifact, log_path, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SessionID, b.SourceHash, b.Command, b.ExitCode, b.Artifact, b.LogPath,
		b.Duration.Nanoseconds(), b.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

// RecordRun appends a run row.
func (l *Ledger) RecordRun(ctx context.Context, r Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (session_id, backend, cells, steps, elapsed_ns, cells_per_second, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Backend, r.Cells, r.Steps, r.Elapsed.Nanoseconds(), r.CellsPerSecond,
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentBuilds returns up to limit builds, newest first.
func (l *Ledger) RecentBuilds(ctx context.Context, limit int) ([]Build, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, source_hash, command, exit_code, COALESCE(artifact, ''), COALESCE(log_path, ''), duration_ns, created_at
		FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var (
			b       Build
			dur     int64
			created string
		)
		if err := rows.Scan(&b.ID, &b.SessionID, &b.SourceHash, &b.Command, &b.ExitCode,
			&b.Artifact, &b.LogPath, &dur, &created); err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		b.Duration = time.Duration(dur)
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, backend, cells, steps, elapsed_ns, cells_per_second, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			elapsed int64
			created string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Backend, &r.Cells, &r.Steps,
			&elapsed, &r.CellsPerSecond, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Elapsed = time.Duration(elapsed)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database. Safe to call on a nil Ledger.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
