package store

import (
	"context"
	"fmt"
	"time"
)

// Dispatch is one row of the dispatch journal.
type Dispatch struct {
	ID         int64     `json:"id"`
	MessageID  string    `json:"messageId"`
	ChatID     string    `json:"chatId"`
	AgentID    string    `json:"agentId"`
	AgentName  string    `json:"agentName"`
	Outcome    string    `json:"outcome"`
	ReplyChars int       `json:"replyChars"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RecordDispatch appends d to the journal. A zero CreatedAt is stamped now.
func (db *DB) RecordDispatch(ctx context.Context, d Dispatch) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO dispatches (message_id, chat_id, agent_id, agent_name, outcome, reply_chars, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.MessageID, d.ChatID, d.AgentID, d.AgentName, d.Outcome, d.ReplyChars,
		d.DurationMs, d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording dispatch: %w", err)
	}
	return nil
}

// RecentDispatches returns up to limit journal rows, newest first.
func (db *DB) RecentDispatches(ctx context.Context, limit int) ([]Dispatch, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, message_id, chat_id, agent_id, agent_name, outcome, reply_chars, duration_ms, created_at
		 FROM dispatches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer rows.Close()

	out := []Dispatch{}
	for rows.Next() {
		var (
			d         Dispatch
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.MessageID, &d.ChatID, &d.AgentID, &d.AgentName,
			&d.Outcome, &d.ReplyChars, &d.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning dispatch: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at of dispatch %d: %w", d.ID, err)
		}
		d.CreatedAt = t
		out = append(out, d)
	}
	return out, rows.Err()
}
