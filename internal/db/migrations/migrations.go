// Package migrations applies Trans-Hub's schema in ordered numbered
// steps, recording the current version in th_meta so Run is idempotent
// across restarts.
package migrations

import (
	"database/sql"
	"fmt"
)

type step struct {
	version int
	name    string
	apply   func(*sql.Tx) error
}

var steps = []step{
	{1, "initial_schema", migrate001InitialSchema},
	{2, "jobs_and_dead_letter_queue", migrate002JobsAndDeadLetterQueue},
	{3, "audit_log", migrate003AuditLog},
}

// Run applies every migration whose version is greater than th_meta's
// recorded schema_version, in ascending order, each in its own
// transaction.
func Run(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS th_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("create th_meta: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if s.version <= current {
			continue
		}
		if err := applyStep(db, s); err != nil {
			return fmt.Errorf("migration %03d_%s: %w", s.version, s.name, err)
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM th_meta WHERE key = 'schema_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("parse schema_version %q: %w", v, err)
	}
	return n, nil
}

func applyStep(db *sql.DB, s step) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec(`INSERT INTO th_meta(key, value) VALUES('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprintf("%d", s.version)); err != nil {
		return fmt.Errorf("record schema_version: %w", err)
	}

	return tx.Commit()
}
