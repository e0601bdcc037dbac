package migrations

import "database/sql"

// migrate001InitialSchema creates the content/context/translation core
// the rest of the schema hangs off (spec §3, §6).
func migrate001InitialSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE th_content (
			id               TEXT PRIMARY KEY,
			business_id      TEXT UNIQUE,
			source_payload   TEXT NOT NULL,
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL
		);`,
		`CREATE TABLE th_contexts (
			id               TEXT PRIMARY KEY,
			context_hash     TEXT NOT NULL UNIQUE,
			context_payload  TEXT NOT NULL,
			created_at       DATETIME NOT NULL
		);`,
		`CREATE TABLE th_translations (
			id                  TEXT PRIMARY KEY,
			content_id          TEXT NOT NULL REFERENCES th_content(id) ON DELETE CASCADE,
			context_id          TEXT REFERENCES th_contexts(id) ON DELETE CASCADE,
			lang_code           TEXT NOT NULL,
			source_lang         TEXT,
			status              TEXT NOT NULL,
			translation_payload TEXT,
			engine_name         TEXT,
			engine_version      TEXT,
			last_error          TEXT,
			retry_count         INTEGER NOT NULL DEFAULT 0,
			created_at          DATETIME NOT NULL,
			last_updated_at     DATETIME NOT NULL
		);`,
		`CREATE UNIQUE INDEX idx_translations_unique_with_context
			ON th_translations(content_id, context_id, lang_code)
			WHERE context_id IS NOT NULL;`,
		`CREATE UNIQUE INDEX idx_translations_unique_global
			ON th_translations(content_id, lang_code)
			WHERE context_id IS NULL;`,
		`CREATE INDEX idx_translations_status_lang
			ON th_translations(status, lang_code);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
