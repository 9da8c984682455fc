// Package transcript persists the message history of booking threads so
// operators can audit what the engine said and why.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is one transcript entry. Direction is "inbound" or "outbound".
type Message struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ThreadKey string    `json:"thread_key"`
	Direction string    `json:"direction"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is one conversation in the registry.
type Thread struct {
	TenantID      string    `json:"tenant_id"`
	ThreadKey     string    `json:"thread_key"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
}

// Store writes transcripts through database/sql.
type Store struct {
	db *sql.DB
}

// NewStore creates a transcript store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("transcript: db required")
	}
	return &Store{db: db}
}

// Record appends one message and freshens the thread registry row. It
// implements the booking recorder contract.
func (s *Store) Record(ctx context.Context, tenantID, threadKey, direction, text string) error {
	if tenantID == "" || threadKey == "" {
		return fmt.Errorf("transcript: tenant and thread required")
	}
	if direction != "inbound" && direction != "outbound" {
		return fmt.Errorf("transcript: unknown direction %q", direction)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transcript: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (tenant_id, thread_key, last_message_at, message_count)
		VALUES ($1, $2, now(), 1)
		ON CONFLICT (tenant_id, thread_key) DO UPDATE SET
			last_message_at = now(),
			message_count = conversations.message_count + 1
	`, tenantID, threadKey); err != nil {
		return fmt.Errorf("transcript: upsert thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, tenant_id, thread_key, direction, body)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), tenantID, threadKey, direction, text); err != nil {
		return fmt.Errorf("transcript: insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transcript: commit: %w", err)
	}
	return nil
}

// List returns the messages of one thread, oldest first.
func (s *Store) List(ctx context.Context, tenantID, threadKey string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, thread_key, direction, body, created_at
		FROM conversation_messages
		WHERE tenant_id = $1 AND thread_key = $2
		ORDER BY created_at ASC
		LIMIT $3
	`, tenantID, threadKey, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ThreadKey, &m.Direction, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan message: %w", err)
		}
		out = append(out, m)
	}
	if out == nil {
		out = []Message{}
	}
	return out, rows.Err()
}

// Threads returns the most recently active threads for a tenant.
func (s *Store) Threads(ctx context.Context, tenantID string, limit int) ([]Thread, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, thread_key, last_message_at, message_count
		FROM conversations
		WHERE tenant_id = $1
		ORDER BY last_message_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: list threads: %w", err)
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		var th Thread
		if err := rows.Scan(&th.TenantID, &th.ThreadKey, &th.LastMessageAt, &th.MessageCount); err != nil {
			return nil, fmt.Errorf("transcript: scan thread: %w", err)
		}
		out = append(out, th)
	}
	if out == nil {
		out = []Thread{}
	}
	return out, rows.Err()
}
