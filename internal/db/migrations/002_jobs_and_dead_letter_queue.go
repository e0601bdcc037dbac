package migrations

import "database/sql"

// migrate002JobsAndDeadLetterQueue adds request bookkeeping (one job
// row per piece of content, spec §4.3) and the terminal-failure sink
// (spec §4.7).
func migrate002JobsAndDeadLetterQueue(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE th_jobs (
			id                 TEXT PRIMARY KEY,
			content_id         TEXT NOT NULL UNIQUE REFERENCES th_content(id) ON DELETE CASCADE,
			last_requested_at  DATETIME NOT NULL
		);`,
		`CREATE TABLE th_dead_letter_queue (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			translation_id       TEXT,
			content_id           TEXT,
			lang_code            TEXT NOT NULL,
			original_payload     TEXT NOT NULL,
			context_payload      TEXT,
			last_error           TEXT NOT NULL,
			engine_name          TEXT,
			engine_version       TEXT,
			failed_at            DATETIME NOT NULL
		);`,
		`CREATE INDEX idx_dlq_content_lang ON th_dead_letter_queue(content_id, lang_code);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
