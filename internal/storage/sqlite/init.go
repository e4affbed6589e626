package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the statuses table if
// it doesn't exist. ":memory:" is accepted for tests.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS shard_statuses (
		engine TEXT NOT NULL,
		model_id TEXT NOT NULL,
		start_layer INTEGER NOT NULL,
		end_layer INTEGER NOT NULL,
		n_layers INTEGER NOT NULL,
		downloaded_bytes INTEGER NOT NULL DEFAULT 0,
		total_bytes INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'not_started',
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (engine, model_id, start_layer, end_layer, n_layers)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
