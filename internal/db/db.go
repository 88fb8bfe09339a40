package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS print_jobs (
	id                TEXT PRIMARY KEY,
	order_id          TEXT NOT NULL,
	order_number      TEXT NOT NULL DEFAULT '',
	restaurant_id     TEXT NOT NULL,
	target_printer_id TEXT NOT NULL,
	items_json        TEXT NOT NULL,
	priority          INTEGER NOT NULL DEFAULT 5,
	status            TEXT NOT NULL DEFAULT 'pending',
	error_message     TEXT NOT NULL DEFAULT '',
	claimed_by        TEXT NOT NULL DEFAULT '',
	claimed_at        DATETIME,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_printer_status ON print_jobs (target_printer_id, status);
CREATE INDEX IF NOT EXISTS idx_jobs_order ON print_jobs (order_id);
CREATE INDEX IF NOT EXISTS idx_jobs_restaurant_updated ON print_jobs (restaurant_id, updated_at);

CREATE TABLE IF NOT EXISTS printers (
	id                TEXT PRIMARY KEY,
	restaurant_id     TEXT NOT NULL,
	name              TEXT NOT NULL,
	mode              TEXT NOT NULL DEFAULT 'remote',
	address           TEXT NOT NULL,
	port              INTEGER NOT NULL DEFAULT 9100,
	type              TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'unknown',
	last_connected_at DATETIME,
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_printers_restaurant ON printers (restaurant_id);

CREATE TABLE IF NOT EXISTS printer_assignments (
	id              TEXT PRIMARY KEY,
	restaurant_id   TEXT NOT NULL,
	printer_id      TEXT NOT NULL,
	assignment_type TEXT NOT NULL,
	target_id       TEXT NOT NULL,
	priority        INTEGER NOT NULL DEFAULT 0,
	is_active       INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assignments_restaurant ON printer_assignments (restaurant_id, is_active);
`

// Open opens (or creates) the relay database and bootstraps the schema.
// sqlite is single-writer; one connection keeps job updates serialized.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return database, nil
}
