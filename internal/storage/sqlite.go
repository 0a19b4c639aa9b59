// Package storage persists generation runs and recovery attempts in a local
// SQLite database.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path and runs migrations.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id       TEXT NOT NULL,
		operation        TEXT NOT NULL,
		app_name         TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		success          INTEGER NOT NULL,
		fallback_used    INTEGER NOT NULL,
		healing_applied  INTEGER NOT NULL,
		validation_score REAL NOT NULL DEFAULT 0,
		file_count       INTEGER NOT NULL DEFAULT 0,
		duration_ms      INTEGER NOT NULL DEFAULT 0,
		error            TEXT NOT NULL DEFAULT '',
		data             TEXT NOT NULL,
		created_at       INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at DESC);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_generations_request ON generations(request_id);

	CREATE TABLE IF NOT EXISTS recovery_attempts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id  TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		attempt     INTEGER NOT NULL,
		state       TEXT NOT NULL,
		categories  TEXT NOT NULL DEFAULT '[]',
		fixes       TEXT NOT NULL DEFAULT '[]',
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_request ON recovery_attempts(request_id, id);
	CREATE INDEX IF NOT EXISTS idx_attempts_fingerprint ON recovery_attempts(fingerprint);
	`

	_, err := d.db.Exec(schema)
	return err
}
