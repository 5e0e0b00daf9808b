// Package history is an optional Postgres-backed audit log recording one
// row per connect attempt. It is disabled when no DSN is configured; write
// failures are logged and swallowed, never surfaced to the connect caller.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Store records connect attempt outcomes.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to dsn and ensures the schema exists, or returns (nil, nil)
// when dsn is empty: callers treat a nil *Store as "disabled".
func Open(dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}

	log.Info("connection history store ready")
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS connect_attempts (
		id          BIGSERIAL PRIMARY KEY,
		session_id  VARCHAR(256) NOT NULL,
		outcome     VARCHAR(16) NOT NULL,
		error_kind  VARCHAR(32) NOT NULL DEFAULT '',
		attempted_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_connect_attempts_session_id ON connect_attempts(session_id);
	CREATE INDEX IF NOT EXISTS idx_connect_attempts_attempted_at ON connect_attempts(attempted_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordAttempt writes one row for a connect attempt. s may be nil, in
// which case this is a no-op; a write failure is logged and swallowed.
func (s *Store) RecordAttempt(sessionID, outcome, errorKind string, at time.Time) {
	if s == nil {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO connect_attempts (session_id, outcome, error_kind, attempted_at) VALUES ($1, $2, $3, $4)`,
		sessionID, outcome, errorKind, at,
	)
	if err != nil {
		s.log.Warn("failed to record connect attempt", "session_id", sessionID, "error", err)
	}
}

// Close releases the underlying database handle. s may be nil.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
