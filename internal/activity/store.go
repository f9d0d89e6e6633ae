// Package activity is a small sqlite-backed event log recording session
// lifecycle events (created/updated/deleted) observed by the project
// watcher, so the live feed has a cross-restart history. It is separate
// from and does not replace internal/claude's disposable JSON session
// cache (spec.md section 4.4): that cache is a parse-optimization detail
// the engine can regenerate from scratch at any time, while this store
// is the durable record of "what happened and when" for the API's
// activity feed.
package activity

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaFiles embed.FS

// EventType is one of the three session lifecycle events the watcher
// can observe.
type EventType string

const (
	SessionCreated EventType = "session_created"
	SessionUpdated EventType = "session_updated"
	SessionDeleted EventType = "session_deleted"
)

// Event is one observed lifecycle transition.
type Event struct {
	Type            EventType `db:"event_type" json:"event_type"`
	ActualSessionID string    `db:"actual_session_id" json:"actual_session_id"`
	ProjectName     string    `db:"project_name" json:"project_name"`
	FilePath        string    `db:"file_path" json:"file_path"`
	MessageCount    int       `db:"message_count" json:"message_count"`
	OccurredAt      time.Time `db:"occurred_at" json:"occurred_at"`
}

// Store is the sqlite-backed event log.
type Store struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// Open creates (or opens) the event log at dbPath and applies its schema.
// Grounded on internal/database/database.go's NewDatabase: same
// WAL/busy-timeout DSN tuning, same embedded-schema migrate step.
func Open(dbPath string, logger *logrus.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create activity store directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_timeout=30000&_busy_timeout=30000&_synchronous=NORMAL"
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect activity store: %w", err)
	}

	schemaSQL, err := schemaFiles.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read activity schema: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply activity schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends an event to the log and updates the session's current
// status row. The status row is an upsert (INSERT ... ON CONFLICT
// (actual_session_id) DO UPDATE), adapted from the status-row idiom
// internal/database/incremental_importer.go uses for file_watchers: the
// latest observation always wins, with no read-before-write race.
func (s *Store) Record(event Event) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin activity transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO activity_events
			(event_type, actual_session_id, project_name, file_path, message_count, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.Type, event.ActualSessionID, event.ProjectName, event.FilePath, event.MessageCount, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}

	if event.Type == SessionDeleted {
		if _, err := tx.Exec(`DELETE FROM session_status WHERE actual_session_id = ?`, event.ActualSessionID); err != nil {
			return fmt.Errorf("delete session status: %w", err)
		}
	} else {
		_, err = tx.Exec(`
			INSERT INTO session_status
				(actual_session_id, project_name, file_path, last_event_type, message_count, last_event_time, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(actual_session_id) DO UPDATE SET
				project_name = excluded.project_name,
				file_path = excluded.file_path,
				last_event_type = excluded.last_event_type,
				message_count = excluded.message_count,
				last_event_time = excluded.last_event_time,
				updated_at = CURRENT_TIMESTAMP
		`, event.ActualSessionID, event.ProjectName, event.FilePath, event.Type, event.MessageCount, event.OccurredAt)
		if err != nil {
			return fmt.Errorf("upsert session status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activity transaction: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first, bounded by limit.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []Event
	err := s.db.Select(&events, `
		SELECT event_type, actual_session_id, project_name, file_path, message_count, occurred_at
		FROM activity_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent activity: %w", err)
	}
	return events, nil
}

// SessionStatus is one row of the current per-session snapshot.
type SessionStatus struct {
	ActualSessionID string    `db:"actual_session_id" json:"actual_session_id"`
	ProjectName     string    `db:"project_name" json:"project_name"`
	FilePath        string    `db:"file_path" json:"file_path"`
	LastEventType   string    `db:"last_event_type" json:"last_event_type"`
	MessageCount    int       `db:"message_count" json:"message_count"`
	LastEventTime   time.Time `db:"last_event_time" json:"last_event_time"`
}

// LiveSessions returns the current status snapshot of every
// not-yet-deleted session, most recently active first.
func (s *Store) LiveSessions() ([]SessionStatus, error) {
	var rows []SessionStatus
	err := s.db.Select(&rows, `
		SELECT actual_session_id, project_name, file_path, last_event_type, message_count, last_event_time
		FROM session_status
		ORDER BY last_event_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query live sessions: %w", err)
	}
	return rows, nil
}
