package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DeadLetterEntry is a snapshot of a terminally-failed task, archived
// for operator inspection (spec §3, §4.2's move_to_dlq).
type DeadLetterEntry struct {
	TranslationID    *string
	ContentID        *string
	TargetLangCode   string
	OriginalPayload  map[string]any
	ContextPayload   map[string]any
	LastErrorMessage string
	EngineName       *string
	EngineVersion    *string
}

type deadLetterRepository struct {
	db dbtx
}

func newDeadLetterRepository(db dbtx) *deadLetterRepository {
	return &deadLetterRepository{db: db}
}

func (r *deadLetterRepository) insert(ctx context.Context, entry DeadLetterEntry) error {
	originalJSON, err := json.Marshal(entry.OriginalPayload)
	if err != nil {
		return fmt.Errorf("encode dlq original payload: %w", err)
	}

	var contextJSON any
	if entry.ContextPayload != nil {
		b, err := json.Marshal(entry.ContextPayload)
		if err != nil {
			return fmt.Errorf("encode dlq context payload: %w", err)
		}
		contextJSON = string(b)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO th_dead_letter_queue(translation_id, content_id, lang_code, original_payload, context_payload, last_error, engine_name, engine_version, failed_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(entry.TranslationID), nullableString(entry.ContentID), entry.TargetLangCode,
		string(originalJSON), contextJSON, entry.LastErrorMessage,
		nullableString(entry.EngineName), nullableString(entry.EngineVersion), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert dead letter entry: %w", err)
	}
	return nil
}
