// Package sqlite provides a SQLite-backed dead-letter journal for sync
// events that exhausted their retries. The journal exists for operators:
// permanently failed events are queryable here for manual remediation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	stdSync "sync"
	"time"

	"github.com/dulcera/syncbridge/event"
	"github.com/dulcera/syncbridge/logging"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrStoreClosed is returned by operations on a closed journal
var ErrStoreClosed = errors.New("dead-letter store is closed")

// Entry is one permanently failed event as recorded in the journal
type Entry struct {
	EventID   string                 `json:"eventId"`
	Type      event.Type             `json:"type"`
	Source    event.Source           `json:"source"`
	EntityKey string                 `json:"entityKey"`
	Data      map[string]interface{} `json:"data"`
	Reason    string                 `json:"reason"`
	FailedAt  time.Time              `json:"failedAt"`
}

// Config holds configuration options for the dead-letter store
type Config struct {
	// DataSourceName is the connection string for the SQLite database
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency
	EnableWAL bool

	// Logger is optional; the package default is used when nil
	Logger *logging.Logger
}

// DeadLetterStore implements the journal on SQLite
type DeadLetterStore struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
	logger *logging.Logger
}

// New opens (or creates) the journal database
func New(config *Config) (*DeadLetterStore, error) {
	if config == nil || config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	dsn := config.DataSourceName
	if config.EnableWAL {
		dsn += "?_journal_mode=WAL"
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("deadletter-store")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &DeadLetterStore{db: db, logger: logger}
	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.Info("dead-letter journal initialized", "data_source", config.DataSourceName)
	return store, nil
}

func (s *DeadLetterStore) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS dead_letters (
        seq         INTEGER PRIMARY KEY AUTOINCREMENT,
        event_id    TEXT NOT NULL UNIQUE,
        event_type  TEXT NOT NULL,
        source      TEXT NOT NULL,
        entity_key  TEXT NOT NULL,
        data        TEXT,
        reason      TEXT NOT NULL,
        failed_at   TIMESTAMP NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_dead_letters_entity_key ON dead_letters (entity_key);
    CREATE INDEX IF NOT EXISTS idx_dead_letters_failed_at ON dead_letters (failed_at);
    `
	_, err := s.db.Exec(query)
	return err
}

// Record journals a permanently failed event. The payload is sanitized
// before it touches disk.
func (s *DeadLetterStore) Record(ctx context.Context, ev *event.SyncEvent, reason string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	data, err := json.Marshal(event.Sanitize(ev.Data))
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO dead_letters (event_id, event_type, source, entity_key, data, reason, failed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), string(ev.Source), ev.EntityKey, string(data), reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record dead letter: %w", err)
	}

	s.logger.Warn("event journaled to dead letters",
		"event_id", ev.ID,
		"event_type", string(ev.Type),
		"entity_key", ev.EntityKey,
		"reason", reason)
	return nil
}

// List returns the most recent entries, newest first
func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT event_id, event_type, source, entity_key, data, reason, failed_at
        FROM dead_letters ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			typ     string
			source  string
			rawData string
		)
		if err := rows.Scan(&e.EventID, &typ, &source, &e.EntityKey, &rawData, &e.Reason, &e.FailedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter row: %w", err)
		}
		e.Type = event.Type(typ)
		e.Source = event.Source(source)
		if rawData != "" {
			_ = json.Unmarshal([]byte(rawData), &e.Data)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of journaled events
func (s *DeadLetterStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

// Close closes the journal
func (s *DeadLetterStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
