package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// auditRepository backs the supplemented th_audit_logs table
// (SPEC_FULL.md §3): one row per translation result written by
// Store.SaveResults. Claims and reopened rows are not recorded.
type auditRepository struct {
	db dbtx
}

func newAuditRepository(db dbtx) *auditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) record(ctx context.Context, eventType string, translationID, contentID *string, details map[string]any) error {
	var detailsJSON any
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		detailsJSON = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO th_audit_logs(event_id, event_type, translation_id, content_id, details, recorded_at) VALUES(?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), eventType, nullableString(translationID), nullableString(contentID), detailsJSON, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record audit log: %w", err)
	}
	return nil
}
