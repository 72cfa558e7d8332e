package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hattiebot/funcchat/internal/core"
)

// Message is a stored transcript message.
type Message struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Seq          int       `json:"seq"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Name         string    `json:"name,omitempty"`
	FunctionCall string    `json:"function_call,omitempty"` // JSON
	CreatedAt    time.Time `json:"created_at"`
}

// Core converts the row back to a transcript message.
func (m Message) Core() core.Message {
	out := core.Message{Role: m.Role, Content: m.Content, Name: m.Name}
	if m.FunctionCall != "" {
		var fc core.FunctionCall
		if err := json.Unmarshal([]byte(m.FunctionCall), &fc); err == nil {
			out.FunctionCall = &fc
		}
	}
	return out
}

// InsertMessage appends msg to the session (created if missing) and returns the row id.
// Sequence numbers are assigned in insertion order starting at 0.
func (db *DB) InsertMessage(ctx context.Context, sessionID string, msg core.Message) (int64, error) {
	var fc sql.NullString
	if msg.FunctionCall != nil {
		b, err := json.Marshal(msg.FunctionCall)
		if err != nil {
			return 0, err
		}
		fc = sql.NullString{String: string(b), Valid: true}
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sessions (id) VALUES (?)`, sessionID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, name, function_call)
		 VALUES (?, (SELECT COUNT(*) FROM messages WHERE session_id = ?), ?, ?, ?, ?)`,
		sessionID, sessionID, msg.Role, msg.Content, msg.Name, fc,
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// Record implements core.AuditLog.
func (db *DB) Record(ctx context.Context, sessionID string, msg core.Message) error {
	_, err := db.InsertMessage(ctx, sessionID, msg)
	return err
}

// SessionMessages returns the session's messages in insertion order.
func (db *DB) SessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, name, function_call, created_at
		 FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		var name, fc sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &name, &fc, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Name = name.String
		m.FunctionCall = fc.String
		out = append(out, m)
	}
	return out, rows.Err()
}
