// Package database opens the sqlite store and applies schema migrations.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql handle so callers do not open connections themselves.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates (if needed) and opens the sqlite database at path, enables WAL
// mode, and applies migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Conn exposes the underlying handle for repositories.
func (db *DB) Conn() *sql.DB { return db.conn }

// Path returns the file the store was opened at.
func (db *DB) Path() string { return db.path }

// Close closes the underlying handle.
func (db *DB) Close() error { return db.conn.Close() }

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS assets (
		symbol TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		asset_type TEXT NOT NULL,
		asset_class TEXT NOT NULL DEFAULT '',
		asset_sub_class TEXT NOT NULL DEFAULT '',
		exchange TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'VND',
		data_source TEXT NOT NULL DEFAULT '',
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, asset_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(asset_type)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_name ON assets(name)`,

	`CREATE TABLE IF NOT EXISTS quotes (
		symbol TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, asset_type)
	)`,

	`CREATE TABLE IF NOT EXISTS search_results (
		query TEXT NOT NULL PRIMARY KEY,
		data_json TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS historical_records (
		symbol TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL,
		high REAL,
		low REAL,
		close REAL,
		adjclose REAL,
		volume REAL NOT NULL DEFAULT 0,
		nav REAL,
		buy_price REAL,
		sell_price REAL,
		data_json TEXT NOT NULL DEFAULT '{}',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, asset_type, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hist_symbol_type ON historical_records(symbol, asset_type)`,
	`CREATE INDEX IF NOT EXISTS idx_hist_date ON historical_records(date)`,
	`CREATE INDEX IF NOT EXISTS idx_hist_symbol_date ON historical_records(symbol, date)`,
	`CREATE INDEX IF NOT EXISTS idx_hist_updated ON historical_records(updated_at)`,

	`CREATE TABLE IF NOT EXISTS provider_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		called_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_provider_logs_called ON provider_logs(called_at)`,

	`CREATE TABLE IF NOT EXISTS fetch_tasks (
		task_key TEXT NOT NULL PRIMARY KEY,
		symbol TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'queued',
		error TEXT NOT NULL DEFAULT '',
		total_chunks INTEGER NOT NULL DEFAULT 0,
		completed_chunks INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// Stats returns row counts used by the cache stats endpoint.
func (db *DB) Stats() (assets, historical, quotes int64, err error) {
	if err = db.conn.QueryRow(`SELECT COUNT(*) FROM assets`).Scan(&assets); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count assets: %w", err)
	}
	if err = db.conn.QueryRow(`SELECT COUNT(*) FROM historical_records`).Scan(&historical); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count historical records: %w", err)
	}
	if err = db.conn.QueryRow(`SELECT COUNT(*) FROM quotes`).Scan(&quotes); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return assets, historical, quotes, nil
}
