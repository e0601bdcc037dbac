// Package db owns the SQLite connection: pragmas, the single-writer
// discipline SQLite needs for race-free task claiming, and migrations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"transhub/internal/db/migrations"
)

// WriteMutex serializes writers across the whole process. SQLite has no
// row-level locking; claim_pending_batch and every other write-bearing
// operation must hold this for the duration of its transaction so two
// concurrent workers can never both claim the same row (spec §4.2, §5).
var WriteMutex sync.Mutex

// Open creates (if needed) the database directory, opens the SQLite
// file, applies pragmas, and runs migrations.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := applyPragmas(database); err != nil {
		_ = database.Close()
		return nil, err
	}
	if err := Migrate(database); err != nil {
		_ = database.Close()
		return nil, err
	}

	return database, nil
}

func applyPragmas(database *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, stmt := range pragmas {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

// Migrate applies every pending numbered migration and records the
// resulting schema version in th_meta.
func Migrate(database *sql.DB) error {
	return migrations.Run(database)
}
