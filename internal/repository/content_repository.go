package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"transhub/internal/snowflake"
	"transhub/internal/types"
)

// contentRow mirrors th_content.
type contentRow struct {
	ID            string
	BusinessID    *string
	SourcePayload types.SourcePayload
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type contentRepository struct {
	db dbtx
}

func newContentRepository(db dbtx) *contentRepository {
	return &contentRepository{db: db}
}

// upsert implements §4.2's upsert_content: insert, or on business_id
// conflict update the payload if it changed. businessID is always
// supplied by the caller: when request() omits one, the Coordinator
// generates the synthetic id before calling here.
func (r *contentRepository) upsert(ctx context.Context, businessID string, payload types.SourcePayload) (string, error) {
	payloadJSON, err := encodeSourcePayload(payload)
	if err != nil {
		return "", fmt.Errorf("encode source payload: %w", err)
	}

	existing, err := r.getByBusinessID(ctx, businessID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if err == nil {
		if existing.SourcePayload.Text == payload.Text && extraEqual(existing.SourcePayload.Extra, payload.Extra) {
			return existing.ID, nil
		}
		now := formatTime(time.Now())
		if _, err := r.db.ExecContext(ctx, `UPDATE th_content SET source_payload = ?, updated_at = ? WHERE id = ?`,
			payloadJSON, now, existing.ID); err != nil {
			return "", fmt.Errorf("update content: %w", err)
		}
		return existing.ID, nil
	}

	id := snowflake.NextStringID()
	now := formatTime(time.Now())
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO th_content(id, business_id, source_payload, created_at, updated_at) VALUES(?, ?, ?, ?, ?)`,
		id, businessID, payloadJSON, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert content: %w", err)
	}
	return id, nil
}

func (r *contentRepository) getByBusinessID(ctx context.Context, businessID string) (contentRow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, business_id, source_payload, created_at, updated_at FROM th_content WHERE business_id = ?`,
		businessID)
	return scanContentRow(row)
}

func (r *contentRepository) getByID(ctx context.Context, id string) (contentRow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, business_id, source_payload, created_at, updated_at FROM th_content WHERE id = ?`, id)
	return scanContentRow(row)
}

func scanContentRow(scanner interface{ Scan(dest ...any) error }) (contentRow, error) {
	var c contentRow
	var businessID sql.NullString
	var payloadJSON, createdAt, updatedAt string

	if err := scanner.Scan(&c.ID, &businessID, &payloadJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contentRow{}, ErrNotFound
		}
		return contentRow{}, err
	}

	c.BusinessID = nullableStringFromNullString(businessID)
	payload, err := decodeSourcePayload(payloadJSON)
	if err != nil {
		return contentRow{}, fmt.Errorf("decode source payload: %w", err)
	}
	c.SourcePayload = payload

	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return contentRow{}, fmt.Errorf("parse content created_at: %w", err)
	}
	c.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return contentRow{}, fmt.Errorf("parse content updated_at: %w", err)
	}
	return c, nil
}

func encodeSourcePayload(p types.SourcePayload) (string, error) {
	flat := map[string]any{"text": p.Text}
	for k, v := range p.Extra {
		flat[k] = v
	}
	b, err := json.Marshal(flat)
	return string(b), err
}

func decodeSourcePayload(raw string) (types.SourcePayload, error) {
	var flat map[string]any
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return types.SourcePayload{}, err
	}
	text, _ := flat["text"].(string)
	delete(flat, "text")
	return types.SourcePayload{Text: text, Extra: flat}, nil
}

func extraEqual(a, b map[string]any) bool {
	aJSON, errA := json.Marshal(a)
	bJSON, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}
