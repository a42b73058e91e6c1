package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection holding the collected corpus and
// exported projects
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens (creating if needed) bills.db in dataDir and brings its schema up to date
func New(ctx context.Context, dataDir string, logger *log.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "bills.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := ApplyMigrations(ctx, db, logger.Debugf); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Debug("Opened database", "path", dbPath)
	return &DB{db: db, logger: logger}, nil
}

// createTables creates the necessary tables in the database. Dates are kept as
// TEXT in YYYY-MM-DD form.
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bills (
			id TEXT PRIMARY KEY,
			type_code TEXT NOT NULL DEFAULT '',
			type_description TEXT NOT NULL DEFAULT '',
			number TEXT NOT NULL DEFAULT '',
			year TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			indexing TEXT NOT NULL DEFAULT '',
			presented_at TEXT NOT NULL DEFAULT '',
			document_url TEXT NOT NULL DEFAULT '',
			page_url TEXT NOT NULL DEFAULT '',
			situation TEXT NOT NULL DEFAULT '',
			last_stage TEXT NOT NULL DEFAULT '',
			last_stage_at TEXT NOT NULL DEFAULT '',
			last_stage_dispatch TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			author_party TEXT NOT NULL DEFAULT '',
			co_authors TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS projects (
			norm TEXT PRIMARY KEY,
			type_description TEXT,
			presented_at TEXT,
			authors TEXT,
			party TEXT,
			summary TEXT,
			document_url TEXT,
			page_url TEXT,
			indexing TEXT,
			last_stage TEXT,
			last_stage_at TEXT,
			situation TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_bills_year ON bills(year)",
		"CREATE INDEX IF NOT EXISTS idx_projects_presented_at ON projects(presented_at)",
	}
	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// DB returns the underlying database connection
func (d *DB) DB() *sql.DB {
	return d.db
}
