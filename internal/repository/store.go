package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"transhub/internal/db"
	"transhub/internal/types"
)

// GCCounts is the result of a garbage-collection pass (spec §4.2,
// §8 scenario 6).
type GCCounts struct {
	DeletedJobs         int64
	DeletedContent      int64
	DeletedTranslations int64
}

// Store is Trans-Hub's Persistence Handler contract (spec §4.2): the
// only component permitted to touch database/sql. Every write-bearing
// method serializes through db.WriteMutex, the SQLite stand-in for
// row-level locking the spec calls for.
type Store struct {
	conn *sql.DB

	content     *contentRepository
	contextRepo *contextRepository
	translation *translationRepository
	job         *jobRepository
	deadLetter  *deadLetterRepository
	audit       *auditRepository
}

// NewStore wraps an already-migrated *sql.DB.
func NewStore(conn *sql.DB) *Store {
	return &Store{
		conn:        conn,
		content:     newContentRepository(conn),
		contextRepo: newContextRepository(conn),
		translation: newTranslationRepository(conn),
		job:         newJobRepository(conn),
		deadLetter:  newDeadLetterRepository(conn),
		audit:       newAuditRepository(conn),
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// UpsertContent implements upsert_content.
func (s *Store) UpsertContent(ctx context.Context, businessID string, payload types.SourcePayload) (string, error) {
	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()
	return s.content.upsert(ctx, businessID, payload)
}

// EnsureContext implements ensure_context.
func (s *Store) EnsureContext(ctx context.Context, payload map[string]any) (contextID *string, contextHash string, err error) {
	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()
	return s.contextRepo.ensure(ctx, payload)
}

// EnsurePendingTranslations implements ensure_pending_translations.
func (s *Store) EnsurePendingTranslations(ctx context.Context, contentID string, contextID *string, targetLangs []string, sourceLang *string, force bool) (int, error) {
	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()
	return s.translation.ensurePending(ctx, contentID, contextID, targetLangs, sourceLang, force)
}

// TouchJob implements touch_job.
func (s *Store) TouchJob(ctx context.Context, contentID string) error {
	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()
	return s.job.touch(ctx, contentID)
}

// ClaimPendingBatch implements claim_pending_batch: the single point
// of concurrency control for task assignment (spec §5). The whole
// select-then-update round trip happens under db.WriteMutex and inside
// one transaction, so no other writer — in this process — can observe
// or mutate the same rows concurrently.
func (s *Store) ClaimPendingBatch(ctx context.Context, langCode string, batchSize int, includeFailed bool) ([]types.ContentItem, error) {
	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	items, err := newTranslationRepository(tx).claimBatch(ctx, langCode, batchSize, includeFailed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return items, nil
}

// SaveResults implements save_results, persisting every translation
// outcome and appending dead-letter entries in the same transaction
// (spec §4.7 step 5).
func (s *Store) SaveResults(ctx context.Context, results []types.TranslationResult, deadLetters []DeadLetterEntry) error {
	if len(results) == 0 && len(deadLetters) == 0 {
		return nil
	}

	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save_results tx: %w", err)
	}
	defer tx.Rollback()

	if len(results) > 0 {
		if err := newTranslationRepository(tx).saveResults(ctx, results); err != nil {
			return err
		}
	}

	dlq := newDeadLetterRepository(tx)
	auditRepo := newAuditRepository(tx)
	for _, entry := range deadLetters {
		if err := dlq.insert(ctx, entry); err != nil {
			return err
		}
	}
	for _, res := range results {
		translationID := res.TranslationID
		contentID := res.ContentID
		if err := auditRepo.record(ctx, "translation_"+string(res.Status), &translationID, &contentID, nil); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save_results tx: %w", err)
	}
	return nil
}

// GetTranslation implements get_translation.
func (s *Store) GetTranslation(ctx context.Context, businessID, langCode, contextHash string) (*types.TranslationResult, error) {
	return s.translation.getByBusinessID(ctx, businessID, langCode, contextHash)
}

// GarbageCollect implements garbage_collect: deletes stale jobs, then
// content rows no longer referenced by any job (spec §4.2, §8
// scenario 6). dry_run reports counts without mutating.
func (s *Store) GarbageCollect(ctx context.Context, retentionDays int, dryRun bool) (GCCounts, error) {
	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	staleContentIDs, err := s.job.staleContentIDs(ctx, cutoff)
	if err != nil {
		return GCCounts{}, err
	}

	counts := GCCounts{DeletedJobs: int64(len(staleContentIDs))}
	if len(staleContentIDs) == 0 {
		return counts, nil
	}

	// th_jobs.content_id is unique, so the content row behind a stale
	// job has no other job keeping it alive; its own deletion cascades
	// to every translation row that hung off it. th_contexts rows are
	// not deleted.
	orphanedContentIDs := staleContentIDs
	counts.DeletedContent = int64(len(orphanedContentIDs))

	translationCount, err := s.countTranslationsForContent(ctx, orphanedContentIDs)
	if err != nil {
		return GCCounts{}, err
	}
	counts.DeletedTranslations = translationCount

	if dryRun {
		return counts, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return GCCounts{}, fmt.Errorf("begin gc tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := newJobRepository(tx).deleteByContentID(ctx, staleContentIDs); err != nil {
		return GCCounts{}, err
	}
	if len(orphanedContentIDs) > 0 {
		if _, err := deleteByIDColumn(ctx, tx, "th_content", "id", orphanedContentIDs); err != nil {
			return GCCounts{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return GCCounts{}, fmt.Errorf("commit gc tx: %w", err)
	}
	return counts, nil
}

func (s *Store) countTranslationsForContent(ctx context.Context, contentIDs []string) (int64, error) {
	var total int64
	for _, id := range contentIDs {
		var count int64
		if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM th_translations WHERE content_id = ?`, id).Scan(&count); err != nil {
			return 0, fmt.Errorf("count translations for content: %w", err)
		}
		total += count
	}
	return total, nil
}

// RecoverStaleClaims implements SPEC_FULL.md's watchdog recovery
// sweep: translations stuck in TRANSLATING past threshold (an
// abandoned claim from a crashed or cancelled worker, spec §5) are
// reset to PENDING.
func (s *Store) RecoverStaleClaims(ctx context.Context, threshold time.Duration) (int, error) {
	db.WriteMutex.Lock()
	defer db.WriteMutex.Unlock()

	cutoff := time.Now().Add(-threshold)
	ids, err := s.translation.findStaleTranslating(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.translation.resetToPending(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ContextPayload fetches a context row's decoded payload by context
// id.
func (s *Store) ContextPayload(ctx context.Context, contextID string) (map[string]any, error) {
	return s.contextRepo.getPayload(ctx, contextID)
}
