// Package store keeps a SQLite history of pipeline runs: what was processed,
// which clips were written, and which segments failed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Input      string
	SourcePath string
	OutDir     string
	Status     Status
	Limit      int
	Segments   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Clips      []Clip
	Failures   []Failure
}

type Clip struct {
	Position int
	Segment  int
	StartSec float64
	EndSec   float64
	Score    float64
	Path     string
	Text     string
}

type Failure struct {
	Segment int
	Kind    string
	Step    string
	Reason  string
}

// Summary is a run row with clip and failure counts, for listings.
type Summary struct {
	Run
	ClipCount    int
	FailureCount int
}

type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

// RecordRun stores a finished run with its clips and failures in one transaction.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("run id is empty")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin run tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO runs (id, input, source_path, out_dir, status, clip_limit, segments, error_message, started_at, finished_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Input, nullableString(r.SourcePath), nullableString(r.OutDir), string(r.Status),
			r.Limit, r.Segments, nullableString(r.Error),
			r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, c := range r.Clips {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO clips (run_id, position, segment, start_sec, end_sec, score, path, text)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, c.Position, c.Segment, c.StartSec, c.EndSec, c.Score, c.Path, nullableString(c.Text),
			); err != nil {
				return fmt.Errorf("insert clip: %w", err)
			}
		}
		for _, f := range r.Failures {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO failures (run_id, segment, kind, step, reason) VALUES (?, ?, ?, ?, ?)`,
				r.ID, f.Segment, f.Kind, nullableString(f.Step), nullableString(f.Reason),
			); err != nil {
				return fmt.Errorf("insert failure: %w", err)
			}
		}
		return tx.Commit()
	})
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT r.id, r.input, r.source_path, r.out_dir, r.status, r.clip_limit, r.segments,
                     r.error_message, r.started_at, r.finished_at,
                     (SELECT COUNT(1) FROM clips c WHERE c.run_id = r.id),
                     (SELECT COUNT(1) FROM failures f WHERE f.run_id = r.id)
              FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum                     Summary
			source, outDir, errMsg  sql.NullString
			status, started, finish string
		)
		if err := rows.Scan(&sum.ID, &sum.Input, &source, &outDir, &status, &sum.Limit, &sum.Segments,
			&errMsg, &started, &finish, &sum.ClipCount, &sum.FailureCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.SourcePath = source.String
		sum.OutDir = outDir.String
		sum.Error = errMsg.String
		sum.Status = Status(status)
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.FinishedAt, _ = time.Parse(time.RFC3339Nano, finish)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetRun loads a run with its clips and failures, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		r                       Run
		source, outDir, errMsg  sql.NullString
		status, started, finish string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input, source_path, out_dir, status, clip_limit, segments, error_message, started_at, finished_at
         FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Input, &source, &outDir, &status, &r.Limit, &r.Segments, &errMsg, &started, &finish)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.SourcePath, r.OutDir, r.Error = source.String, outDir.String, errMsg.String
	r.Status = Status(status)
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finish)

	clips, err := s.db.QueryContext(ctx,
		`SELECT position, segment, start_sec, end_sec, score, path, text FROM clips WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query clips: %w", err)
	}
	defer clips.Close()
	for clips.Next() {
		var c Clip
		var text sql.NullString
		if err := clips.Scan(&c.Position, &c.Segment, &c.StartSec, &c.EndSec, &c.Score, &c.Path, &text); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		c.Text = text.String
		r.Clips = append(r.Clips, c)
	}
	if err := clips.Err(); err != nil {
		return nil, err
	}

	fails, err := s.db.QueryContext(ctx,
		`SELECT segment, kind, step, reason FROM failures WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer fails.Close()
	for fails.Next() {
		var f Failure
		var step, reason sql.NullString
		if err := fails.Scan(&f.Segment, &f.Kind, &step, &reason); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Step, f.Reason = step.String, reason.String
		r.Failures = append(r.Failures, f)
	}
	return &r, fails.Err()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
