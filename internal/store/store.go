// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists session records and completed reports. The
// store is an optional collaborator: every call is best-effort from
// the orchestrator's point of view, and a NopStore stands in when
// persistence is disabled.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-agent/pkg/types"
)

// SessionStore is the persistent-store boundary. The orchestrator
// functions correctly with any implementation, including one that
// does nothing.
type SessionStore interface {
	// CreateSession records a new research session and returns its id.
	CreateSession(ctx context.Context, userID, questionText string) (string, error)

	// UpdateSessionStatus moves a session record through
	// pending/researching/completed/failed.
	UpdateSessionStatus(ctx context.Context, sessionID string, status types.SessionStatus, completedAt *time.Time) error

	// SaveReport attaches a completed report to a session record.
	SaveReport(ctx context.Context, sessionID string, report types.Report) error
}

// NopStore discards everything. Used when persistence is disabled.
type NopStore struct{}

func (NopStore) CreateSession(context.Context, string, string) (string, error) {
	return "", nil
}

func (NopStore) UpdateSessionStatus(context.Context, string, types.SessionStatus, *time.Time) error {
	return nil
}

func (NopStore) SaveReport(context.Context, string, types.Report) error {
	return nil
}

// SQLiteStore persists sessions and reports in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and ensures the
// schema exists.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			question TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			question TEXT NOT NULL,
			payload TEXT NOT NULL,
			quality_score REAL,
			generated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_session_id ON reports(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateSession inserts a pending session record and returns its id.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID, questionText string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, question, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, questionText, string(types.StatusPending), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	return id, nil
}

// UpdateSessionStatus updates a session record's status and, when
// provided, its completion time.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status types.SessionStatus, completedAt *time.Time) error {
	var completed any
	if completedAt != nil {
		completed = completedAt.UTC().Format(time.RFC3339Nano)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), completed, sessionID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sessionID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sessionID, err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// SaveReport stores the report JSON against its session record.
func (s *SQLiteStore) SaveReport(ctx context.Context, sessionID string, report types.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, session_id, question, payload, quality_score, generated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, sessionID, report.Question, string(payload), report.QualityScore,
		report.GeneratedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// LoadReports returns the reports saved for a session, oldest first.
func (s *SQLiteStore) LoadReports(ctx context.Context, sessionID string) ([]types.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM reports WHERE session_id = ? ORDER BY generated_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []types.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		var report types.Report
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			return nil, fmt.Errorf("decoding report payload: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
