package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"transhub/internal/contexthash"
	"transhub/internal/snowflake"
	"transhub/internal/types"
)

type contextRepository struct {
	db dbtx
}

func newContextRepository(db dbtx) *contextRepository {
	return &contextRepository{db: db}
}

// ensure implements §4.2's ensure_context: lazily create the context
// row for a distinct context_hash, or return the existing one. A nil
// contextID paired with GlobalContextSentinel means "no context row" —
// the sentinel never gets a th_contexts row of its own.
func (r *contextRepository) ensure(ctx context.Context, payload map[string]any) (contextID *string, contextHash string, err error) {
	contextHash = contexthash.Hash(payload)
	if contextHash == types.GlobalContextSentinel {
		return nil, contextHash, nil
	}

	existingID, err := r.findByHash(ctx, contextHash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}
	if err == nil {
		return &existingID, contextHash, nil
	}

	id := snowflake.NextStringID()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode context payload: %w", err)
	}
	now := formatTime(time.Now())

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO th_contexts(id, context_hash, context_payload, created_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(context_hash) DO NOTHING`,
		id, contextHash, string(payloadJSON), now)
	if err != nil {
		return nil, "", fmt.Errorf("insert context: %w", err)
	}

	resolvedID, err := r.findByHash(ctx, contextHash)
	if err != nil {
		return nil, "", err
	}
	return &resolvedID, contextHash, nil
}

func (r *contextRepository) findByHash(ctx context.Context, contextHash string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM th_contexts WHERE context_hash = ?`, contextHash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (r *contextRepository) getPayload(ctx context.Context, contextID string) (map[string]any, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT context_payload FROM th_contexts WHERE id = ?`, contextID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode context payload: %w", err)
	}
	return payload, nil
}
