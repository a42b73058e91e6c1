package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a single database migration. Each migration has a
// unique ID and is applied once.
type Migration struct {
	ID int
	Up func(ctx context.Context, tx *sql.Tx) error
}

// migrations are applied in order
var migrations = []Migration{
	{
		ID: 1,
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_projects_party ON projects(party);
				CREATE INDEX IF NOT EXISTS idx_projects_situation ON projects(situation);
			`)
			return err
		},
	},
	{
		ID: 2,
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `ALTER TABLE bills ADD COLUMN collected_at DATETIME`)
			return err
		},
	},
}

// ApplyMigrations applies all pending migrations, each in its own transaction
func ApplyMigrations(ctx context.Context, db *sql.DB, logf func(msg string, args ...interface{})) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `SELECT id FROM migrations`)
	if err != nil {
		return err
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		applied[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		logf("Applying migration %d", m.ID)
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.ID, err)
		}
		logf("Migration %d applied", m.ID)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO migrations (id) VALUES (?)`, m.ID); err != nil {
		return err
	}
	return tx.Commit()
}
