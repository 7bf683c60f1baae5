// Package store persists session history snapshots to SQLite. The store
// is best-effort infrastructure: the turn loop keeps running when a
// snapshot fails, it only loses replay history.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"arox/internal/chat"
)

// HistoryStore saves one transcript snapshot per session.
type HistoryStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// SessionInfo summarizes one saved session.
type SessionInfo struct {
	ID        string
	Agent     string
	StartedAt time.Time
	Messages  int
}

// Open initializes the history database at the given path, creating the
// parent directory and schema as needed.
func Open(path string, logger *zap.Logger) (*HistoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	s := &HistoryStore{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	agent      TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	tag        TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	PRIMARY KEY (session_id, seq)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the stored transcript for a session. Snapshots
// are whole-transcript, not incremental, so a crash never leaves a
// half-written history.
func (s *HistoryStore) SaveSnapshot(sessionID, agent string, msgs []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, agent) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`,
		sessionID, agent,
	); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear prior snapshot: %w", err)
	}
	for i, m := range msgs {
		if _, err := tx.Exec(
			`INSERT INTO messages (session_id, seq, role, tag, content) VALUES (?, ?, ?, ?, ?)`,
			sessionID, i, string(m.Role), m.Tag, m.Content,
		); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.Debug("session snapshot saved",
		zap.String("session", sessionID), zap.Int("messages", len(msgs)))
	return nil
}

// ListSessions returns saved sessions, most recently started first.
func (s *HistoryStore) ListSessions() ([]SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT s.id, s.agent, s.started_at, COUNT(m.seq)
		 FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		 GROUP BY s.id ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Agent, &info.StartedAt, &info.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// LoadSnapshot returns the stored transcript for a session in order.
func (s *HistoryStore) LoadSnapshot(sessionID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT role, tag, content FROM messages WHERE session_id = ? ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var role, tag, content string
		if err := rows.Scan(&role, &tag, &content); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, chat.Message{Role: chat.Role(role), Tag: tag, Content: content})
	}
	return msgs, rows.Err()
}

// Close releases the underlying database.
func (s *HistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
