package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes shape.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const sessionColumns = "id, scene_path, output_path, start_frame, total_frames, workers, policy, state, failed_stage, error_class, error_message, exit_codes_json, started_at, finished_at"

// Store manages the session journal.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Start inserts a running session.
func (s *Store) Start(ctx context.Context, session Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("session id is required")
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	return s.execWithRetry(ctx,
		`INSERT INTO sessions (
            id, scene_path, output_path, start_frame, total_frames, workers,
            policy, state, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.ScenePath,
		session.OutputPath,
		session.StartFrame,
		session.TotalFrames,
		session.Workers,
		session.Policy,
		session.State,
		session.StartedAt.UTC().Format(time.RFC3339Nano),
	)
}

// Finish records the terminal outcome of a session.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	var exitCodes any
	if len(outcome.ExitCodes) > 0 {
		encoded, err := json.Marshal(outcome.ExitCodes)
		if err != nil {
			return fmt.Errorf("marshal exit codes: %w", err)
		}
		exitCodes = string(encoded)
	}
	return s.execWithRetry(ctx,
		`UPDATE sessions
         SET output_path = COALESCE(NULLIF(?, ''), output_path),
             start_frame = ?, total_frames = ?, workers = ?,
             state = ?, failed_stage = ?, error_class = ?, error_message = ?,
             exit_codes_json = ?, finished_at = ?
         WHERE id = ?`,
		outcome.OutputPath,
		outcome.StartFrame,
		outcome.TotalFrames,
		outcome.Workers,
		outcome.State,
		nullableString(outcome.FailedStage),
		nullableString(outcome.ErrorClass),
		nullableString(outcome.ErrorMessage),
		exitCodes,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
}

// Get fetches a session by id. It returns nil when no row matches.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// List returns the most recent sessions, newest first. A limit of zero or
// less returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		session      Session
		failedStage  sql.NullString
		errorClass   sql.NullString
		errorMessage sql.NullString
		exitCodes    sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&session.ID,
		&session.ScenePath,
		&session.OutputPath,
		&session.StartFrame,
		&session.TotalFrames,
		&session.Workers,
		&session.Policy,
		&session.State,
		&failedStage,
		&errorClass,
		&errorMessage,
		&exitCodes,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	session.FailedStage = failedStage.String
	session.ErrorClass = errorClass.String
	session.ErrorMessage = errorMessage.String
	if exitCodes.Valid && exitCodes.String != "" {
		if err := json.Unmarshal([]byte(exitCodes.String), &session.ExitCodes); err != nil {
			return nil, fmt.Errorf("decode exit codes: %w", err)
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		session.StartedAt = ts
	}
	if finishedRaw.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			session.FinishedAt = &ts
		}
	}
	return &session, nil
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

// retryOnBusy retries op with exponential backoff while SQLite reports
// the database as locked. Concurrent sessions share one journal.
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
