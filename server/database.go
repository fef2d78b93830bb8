package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// StatsRow is one persisted telemetry sample
type StatsRow struct {
	SessionID    string    `json:"sid"`
	Tick         int64     `json:"tick"`
	Moves        int64     `json:"moves"`
	Blocked      int64     `json:"blocked"`
	Placeholders int64     `json:"placeholders"`
	Spills       int       `json:"spills"`
	CreatedAt    time.Time `json:"created_at"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		moves INTEGER NOT NULL DEFAULT 0,
		blocked INTEGER NOT NULL DEFAULT 0,
		placeholders INTEGER NOT NULL DEFAULT 0,
		spills INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_stats_session ON session_stats(session_id, tick);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// GetSetting returns a stored setting, or "" when it is missing
func (db *DB) GetSetting(key string) (string, error) {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetSetting stores a setting, replacing any previous value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// InsertStats writes a batch of samples in one transaction
func (db *DB) InsertStats(batch []StatsSample) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO session_stats
		(session_id, tick, moves, blocked, placeholders, spills, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range batch {
		if _, err := stmt.Exec(s.SessionID, s.Tick, s.Moves, s.Blocked, s.Placeholders, s.Spills, s.At.UTC()); err != nil {
			return fmt.Errorf("inserting sample for %s: %w", s.SessionID, err)
		}
	}
	return tx.Commit()
}

// SessionStats returns the most recent samples of a session, newest first
func (db *DB) SessionStats(sid string, limit int) ([]StatsRow, error) {
	rows, err := db.conn.Query(`
		SELECT session_id, tick, moves, blocked, placeholders, spills, created_at
		FROM session_stats
		WHERE session_id = ?
		ORDER BY tick DESC, id DESC
		LIMIT ?`,
		sid, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatsRow
	for rows.Next() {
		var r StatsRow
		if err := rows.Scan(&r.SessionID, &r.Tick, &r.Moves, &r.Blocked, &r.Placeholders, &r.Spills, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
