package store

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/slotchat/internal/domain"
)

// ThreadSummary describes one stored thread.
type ThreadSummary struct {
	ThreadID string    `json:"threadId"`
	Messages int       `json:"messages"`
	LastAt   time.Time `json:"lastAt"`
}

// MessageStore is an append-only log of chat messages per thread.
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a message store using the given database.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// Ping reports whether the backing database answers.
func (s *MessageStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Append stores msg in threadID. It reports false when an identical message
// (same sender, timestamp and content) is already stored.
func (s *MessageStore) Append(ctx context.Context, threadID string, msg domain.Message) (bool, error) {
	res, err := s.db.sql.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_messages (thread_id, sender, sender_role, content, timestamp, read)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, msg.Sender, string(msg.SenderRole), msg.Content,
		msg.Timestamp.UTC().Format(domain.TimestampLayout), msg.Read,
	)
	if err != nil {
		return false, fmt.Errorf("appending message to %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("appending message to %s: %w", threadID, err)
	}
	if n == 0 {
		s.db.log.Debug().Str("thread", threadID).Str("sender", msg.Sender).Msg("duplicate message ignored")
	}
	return n > 0, nil
}

// List returns the messages of threadID in arrival order.
func (s *MessageStore) List(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT sender, sender_role, content, timestamp, read
		 FROM chat_messages WHERE thread_id = ? ORDER BY id`, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", threadID, err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var role, ts string
		if err := rows.Scan(&m.Sender, &role, &m.Content, &ts, &m.Read); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.SenderRole = domain.Role(role)
		m.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", ts, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Threads summarizes every thread with at least one message, most recently
// active first.
func (s *MessageStore) Threads(ctx context.Context) ([]ThreadSummary, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT thread_id, COUNT(*), MAX(timestamp)
		 FROM chat_messages GROUP BY thread_id ORDER BY MAX(timestamp) DESC, thread_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var out []ThreadSummary
	for rows.Next() {
		var t ThreadSummary
		var last string
		if err := rows.Scan(&t.ThreadID, &t.Messages, &last); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		t.LastAt, _ = time.Parse(time.RFC3339Nano, last)
		out = append(out, t)
	}
	return out, rows.Err()
}
