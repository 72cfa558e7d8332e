// Package store keeps an audit copy of every conversation in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB for conversation storage. Schema is owned by the app.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path and applies the schema. Creates file if missing.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	// Older files may predate the function_call column.
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_table_info('messages') WHERE name='function_call'").Scan(&count); err == nil && count == 0 {
		if _, err := db.ExecContext(ctx, "ALTER TABLE messages ADD COLUMN function_call TEXT"); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating schema (messages.function_call): %w", err)
		}
	}
	return &DB{DB: db}, nil
}
