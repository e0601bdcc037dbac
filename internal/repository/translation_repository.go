package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"transhub/internal/snowflake"
	"transhub/internal/types"
)

type translationRepository struct {
	db dbtx
}

func newTranslationRepository(db dbtx) *translationRepository {
	return &translationRepository{db: db}
}

// ensurePending implements §4.2's ensure_pending_translations: one
// UPSERT per target language. A conflicting row is reset to PENDING
// only when force is set, or the existing row already reached a
// terminal state that force_retranslate is meant to reopen.
func (r *translationRepository) ensurePending(ctx context.Context, contentID string, contextID *string, targetLangs []string, sourceLang *string, force bool) (int, error) {
	inserted := 0
	now := formatTime(time.Now())

	for _, lang := range targetLangs {
		id := snowflake.NextStringID()
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO th_translations(id, content_id, context_id, lang_code, source_lang, status, created_at, last_updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(content_id, context_id, lang_code) WHERE context_id IS NOT NULL DO NOTHING`,
			id, contentID, contextID, lang, nullableString(sourceLang), string(types.StatusPending), now, now,
		)
		if err != nil && contextID == nil {
			// SQLite can't target a partial unique index whose predicate
			// differs per row in one statement; retry against the
			// global-context partial index explicitly.
			res, err = r.db.ExecContext(ctx,
				`INSERT INTO th_translations(id, content_id, context_id, lang_code, source_lang, status, created_at, last_updated_at)
				 VALUES(?, ?, NULL, ?, ?, ?, ?, ?)
				 ON CONFLICT(content_id, lang_code) WHERE context_id IS NULL DO NOTHING`,
				id, contentID, lang, nullableString(sourceLang), string(types.StatusPending), now, now,
			)
		}
		if err != nil {
			return inserted, fmt.Errorf("ensure pending translation (%s): %w", lang, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		if n > 0 {
			inserted++
			continue
		}

		if force {
			reopened, err := r.reopenIfEligible(ctx, contentID, contextID, lang, true)
			if err != nil {
				return inserted, err
			}
			if reopened {
				inserted++
			}
			continue
		}

		reopened, err := r.reopenIfEligible(ctx, contentID, contextID, lang, false)
		if err != nil {
			return inserted, err
		}
		if reopened {
			inserted++
		}
	}

	return inserted, nil
}

func (r *translationRepository) reopenIfEligible(ctx context.Context, contentID string, contextID *string, lang string, force bool) (bool, error) {
	statusFilter := string(types.StatusFailed)
	query := `UPDATE th_translations SET status = ?, translation_payload = NULL, engine_name = NULL, engine_version = NULL, last_error = NULL, retry_count = 0, last_updated_at = ?
		WHERE content_id = ? AND lang_code = ? AND `
	args := []any{string(types.StatusPending), formatTime(time.Now())}

	if contextID == nil {
		query += `context_id IS NULL`
	} else {
		query += `context_id = ?`
	}
	args = append(args, contentID, lang)
	if contextID != nil {
		args = append(args, *contextID)
	}

	if force {
		query += ` AND status IN (?, ?)`
		args = append(args, statusFilter, string(types.StatusTranslated))
	} else {
		query += ` AND status = ?`
		args = append(args, statusFilter)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("reopen translation (%s): %w", lang, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// claimBatch implements §4.2/§5's claim_pending_batch: a two-step
// select-then-update inside one transaction. Callers must hold
// db.WriteMutex for the duration so two workers never observe the
// same row.
func (r *translationRepository) claimBatch(ctx context.Context, langCode string, batchSize int, includeFailed bool) ([]types.ContentItem, error) {
	statuses := []string{string(types.StatusPending)}
	if includeFailed {
		statuses = append(statuses, string(types.StatusFailed))
	}
	placeholders := strings.Repeat("?,", len(statuses)-1) + "?"

	args := make([]any, 0, len(statuses)+2)
	args = append(args, langCode)
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, batchSize)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id FROM th_translations WHERE lang_code = ? AND status IN (%s) ORDER BY last_updated_at ASC LIMIT ?`,
		placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("select claimable translations: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	idPlaceholders := strings.Repeat("?,", len(ids)-1) + "?"
	updateArgs := make([]any, 0, len(ids)+1)
	now := formatTime(time.Now())
	updateArgs = append(updateArgs, string(types.StatusTranslating), now)
	for _, id := range ids {
		updateArgs = append(updateArgs, id)
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE th_translations SET status = ?, last_updated_at = ? WHERE id IN (%s)`, idPlaceholders),
		updateArgs...); err != nil {
		return nil, fmt.Errorf("claim translations: %w", err)
	}

	return r.loadContentItems(ctx, ids)
}

func (r *translationRepository) loadContentItems(ctx context.Context, ids []string) ([]types.ContentItem, error) {
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT t.id, t.content_id, t.context_id, t.lang_code, t.source_lang,
		       c.source_payload, ctx.context_payload, ctx.context_hash
		FROM th_translations t
		JOIN th_content c ON c.id = t.content_id
		LEFT JOIN th_contexts ctx ON ctx.id = t.context_id
		WHERE t.id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("load claimed content items: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]types.ContentItem, len(ids))
	for rows.Next() {
		var translationID, contentID, langCode, sourcePayloadJSON string
		var contextID, contextPayloadJSON, contextHash sql.NullString
		var sourceLang sql.NullString

		if err := rows.Scan(&translationID, &contentID, &contextID, &langCode, &sourceLang,
			&sourcePayloadJSON, &contextPayloadJSON, &contextHash); err != nil {
			return nil, err
		}

		payload, err := decodeSourcePayload(sourcePayloadJSON)
		if err != nil {
			return nil, fmt.Errorf("decode source payload: %w", err)
		}

		item := types.ContentItem{
			ContentID:     contentID,
			Text:          payload.Text,
			TranslationID: translationID,
			TargetLang:    langCode,
			SourceLang:    nullableStringFromNullString(sourceLang),
		}
		if contextHash.Valid {
			item.ContextHash = contextHash.String
		} else {
			item.ContextHash = types.GlobalContextSentinel
		}
		if contextPayloadJSON.Valid {
			var ctxPayload map[string]any
			if err := json.Unmarshal([]byte(contextPayloadJSON.String), &ctxPayload); err != nil {
				return nil, fmt.Errorf("decode context payload: %w", err)
			}
			item.ContextPayload = ctxPayload
		}
		byID[translationID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the claim-order snapshot (ids is already ordered).
	out := make([]types.ContentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// saveResults implements §4.2's save_results: a batched update writing
// either a TRANSLATED or FAILED terminal state.
func (r *translationRepository) saveResults(ctx context.Context, results []types.TranslationResult) error {
	now := formatTime(time.Now())
	for _, res := range results {
		switch res.Status {
		case types.StatusTranslated, types.StatusApproved:
			payloadJSON, err := encodeTranslationPayload(res)
			if err != nil {
				return fmt.Errorf("encode translation payload: %w", err)
			}
			if _, err := r.db.ExecContext(ctx,
				`UPDATE th_translations SET status = ?, translation_payload = ?, engine_name = ?, engine_version = ?, last_error = NULL, last_updated_at = ? WHERE id = ?`,
				string(res.Status), payloadJSON, nullableString(res.Engine), nullableString(res.EngineVersion), now, res.TranslationID,
			); err != nil {
				return fmt.Errorf("save translated result: %w", err)
			}
		case types.StatusFailed:
			if _, err := r.db.ExecContext(ctx,
				`UPDATE th_translations SET status = ?, last_error = ?, retry_count = retry_count + 1, last_updated_at = ? WHERE id = ?`,
				string(types.StatusFailed), nullableString(res.Error), now, res.TranslationID,
			); err != nil {
				return fmt.Errorf("save failed result: %w", err)
			}
		default:
			return fmt.Errorf("save_results: unexpected terminal status %q", res.Status)
		}
	}
	return nil
}

func encodeTranslationPayload(res types.TranslationResult) (string, error) {
	flat := map[string]any{}
	for k, v := range res.Extra {
		flat[k] = v
	}
	if res.TranslatedText != nil {
		flat["text"] = *res.TranslatedText
	}
	b, err := json.Marshal(flat)
	return string(b), err
}

// getByBusinessID implements §4.2's get_translation: looks a single
// translation row up by the caller-facing (business_id, lang, context)
// triple.
func (r *translationRepository) getByBusinessID(ctx context.Context, businessID, langCode, contextHash string) (*types.TranslationResult, error) {
	query := `
		SELECT t.id, t.content_id, t.context_id, c.business_id, c.source_payload,
		       t.status, t.translation_payload, t.engine_name, t.engine_version, t.last_error, t.created_at
		FROM th_translations t
		JOIN th_content c ON c.id = t.content_id
		LEFT JOIN th_contexts ctx ON ctx.id = t.context_id
		WHERE c.business_id = ? AND t.lang_code = ? AND `

	var row *sql.Row
	if contextHash == "" || contextHash == types.GlobalContextSentinel {
		row = r.db.QueryRowContext(ctx, query+`t.context_id IS NULL`, businessID, langCode)
	} else {
		row = r.db.QueryRowContext(ctx, query+`ctx.context_hash = ?`, businessID, langCode, contextHash)
	}

	return scanTranslationResult(row)
}

func scanTranslationResult(scanner interface{ Scan(dest ...any) error }) (*types.TranslationResult, error) {
	var translationID, contentID, sourcePayloadJSON, status, createdAt string
	var contextID, businessID, translationPayloadJSON, engine, engineVersion, lastError sql.NullString

	err := scanner.Scan(&translationID, &contentID, &contextID, &businessID, &sourcePayloadJSON,
		&status, &translationPayloadJSON, &engine, &engineVersion, &lastError, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sourcePayload, err := decodeSourcePayload(sourcePayloadJSON)
	if err != nil {
		return nil, fmt.Errorf("decode source payload: %w", err)
	}

	result := &types.TranslationResult{
		ContentID:      contentID,
		TranslationID:  translationID,
		BusinessID:     nullableStringFromNullString(businessID),
		OriginalText:   sourcePayload.Text,
		Status:         types.TranslationStatus(status),
		Engine:         nullableStringFromNullString(engine),
		EngineVersion:  nullableStringFromNullString(engineVersion),
		Error:          nullableStringFromNullString(lastError),
		ContextID:      nullableStringFromNullString(contextID),
		Extra:          sourcePayload.Extra,
	}
	result.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse translation created_at: %w", err)
	}

	if translationPayloadJSON.Valid {
		translated, err := decodeSourcePayload(translationPayloadJSON.String)
		if err != nil {
			return nil, fmt.Errorf("decode translation payload: %w", err)
		}
		text := translated.Text
		result.TranslatedText = &text
	}

	return result, nil
}

// findStaleTranslating implements the recovery sweep SPEC_FULL.md adds
// on top of §5's optional watchdog: rows stuck in TRANSLATING past the
// threshold are returned for reset.
func (r *translationRepository) findStaleTranslating(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM th_translations WHERE status = ? AND last_updated_at < ?`,
		string(types.StatusTranslating), formatTime(olderThan))
	if err != nil {
		return nil, fmt.Errorf("find stale translating rows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *translationRepository) resetToPending(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(types.StatusPending), formatTime(time.Now()))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE th_translations SET status = ?, last_updated_at = ? WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("reset stale translating rows: %w", err)
	}
	return nil
}
