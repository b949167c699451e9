// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package db provides the SQLite database holding controller rolling state
// and the log of identified captures.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Rolling state of each emulated remote, keyed by controller name
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS controller_state (
			name TEXT PRIMARY KEY,
			tx_count INTEGER NOT NULL DEFAULT 0,
			seed INTEGER NOT NULL DEFAULT 0,
			device_uuid TEXT,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create controller_state table: %w", err)
	}

	// Identified captures, append-only
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS capture_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			codec TEXT NOT NULL,
			transmitter_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			tx_count INTEGER NOT NULL,
			opcode INTEGER NOT NULL,
			args BLOB,
			raw BLOB NOT NULL,
			no_diff INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_capture_log_ts ON capture_log(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create capture_log table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
