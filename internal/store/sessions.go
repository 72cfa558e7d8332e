package store

import (
	"context"
	"time"
)

// Session summarizes one stored conversation.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// CreateSession registers id. Creating an existing session is a no-op.
func (db *DB) CreateSession(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO sessions (id) VALUES (?)`, id)
	return err
}

// Sessions lists sessions newest first, at most limit (0 = all).
func (db *DB) Sessions(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT s.id, s.created_at, COUNT(m.id)
		FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		GROUP BY s.id, s.created_at
		ORDER BY s.created_at DESC, s.id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.MessageCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
