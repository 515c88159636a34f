package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the person chatting.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the language model.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// ConversationStore persists and retrieves conversation history keyed by
// username. Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Append persists a single message for the given user.
	Append(ctx context.Context, username string, role Role, content string) error
	// Recent returns the most recent n messages for the user, ordered
	// oldest-first so they can be forwarded to the model directly.
	// If fewer than n messages exist, all are returned.
	Recent(ctx context.Context, username string, n int) ([]Message, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteHistory is a ConversationStore backed by a local SQLite database.
type SQLiteHistory struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

const historyDDL = `
CREATE TABLE IF NOT EXISTS conversations (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    username     TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_conversations_username_created
    ON conversations (username, created_at);
`

// OpenHistory opens (or creates) a SQLiteHistory at the given path.
func OpenHistory(path string) (*SQLiteHistory, error) {
	db, err := openSQLite(path, historyDDL)
	if err != nil {
		return nil, err
	}
	return &SQLiteHistory{db: db}, nil
}

// Append persists a single message for the given user.
func (s *SQLiteHistory) Append(ctx context.Context, username string, role Role, content string) error {
	const q = `INSERT INTO conversations (username, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, username, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n messages for the user, ordered
// oldest-first. A subquery selects the tail, which is then re-ordered.
func (s *SQLiteHistory) Recent(ctx context.Context, username string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   conversations
    WHERE  username = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, username, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return msgs, nil
}

// Ping checks the database connection.
func (s *SQLiteHistory) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: history ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteHistory) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
