// Package sqlitedb opens SQLite databases with the settings every store in
// this repo relies on.
//
// WAL mode is enabled so that readers never block writers.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Pure-Go driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z"

// Open opens (or creates) the database file at path.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %q: %w", path, err)
	}
	return db, nil
}

// ApplySchema runs idempotent DDL.
func ApplySchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// FormatTime renders t as sortable UTC TEXT. SQLite has no datetime type.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses values written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
