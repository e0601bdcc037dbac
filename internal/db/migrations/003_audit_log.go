package migrations

import "database/sql"

// migrate003AuditLog adds the supplemented audit trail (SPEC_FULL.md
// §3): one row per translation result saved by save_results.
func migrate003AuditLog(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE th_audit_logs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id       TEXT NOT NULL UNIQUE,
			event_type     TEXT NOT NULL,
			translation_id TEXT,
			content_id     TEXT,
			details        TEXT,
			recorded_at    DATETIME NOT NULL
		);`,
		`CREATE INDEX idx_audit_logs_translation ON th_audit_logs(translation_id);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
