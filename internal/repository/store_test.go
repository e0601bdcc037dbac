package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transhub/internal/repository"
	"transhub/internal/repository/testutil"
	"transhub/internal/types"
)

func TestStore_UpsertContent_IsIdempotentAndUpdatesPayload(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	id1, err := store.UpsertContent(ctx, "g.hello", types.SourcePayload{Text: "Hello"})
	require.NoError(t, err)

	id2, err := store.UpsertContent(ctx, "g.hello", types.SourcePayload{Text: "Hello"})
	require.NoError(t, err)
	require.Equal(t, id1, id2, "same business_id + payload must not create a second row")

	id3, err := store.UpsertContent(ctx, "g.hello", types.SourcePayload{Text: "Hello there"})
	require.NoError(t, err)
	require.Equal(t, id1, id3, "updating payload under the same business_id updates the same row")
}

func TestStore_EnsureContext_GlobalSentinelHasNoRow(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	id, hash, err := store.EnsureContext(ctx, nil)
	require.NoError(t, err)
	require.Nil(t, id)
	require.Equal(t, types.GlobalContextSentinel, hash)

	id2, hash2, err := store.EnsureContext(ctx, map[string]any{})
	require.NoError(t, err)
	require.Nil(t, id2)
	require.Equal(t, hash, hash2)
}

func TestStore_EnsureContext_DistinctPayloadsGetDistinctRows(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	id1, hash1, err := store.EnsureContext(ctx, map[string]any{"domain": "animal"})
	require.NoError(t, err)
	id2, hash2, err := store.EnsureContext(ctx, map[string]any{"domain": "car"})
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2)
	require.NotEqual(t, *id1, *id2)

	id1Again, hash1Again, err := store.EnsureContext(ctx, map[string]any{"domain": "animal"})
	require.NoError(t, err)
	require.Equal(t, *id1, *id1Again)
	require.Equal(t, hash1, hash1Again)
}

func TestStore_ClaimPendingBatch_IsRaceFreeAcrossTwoClaims(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	contentID, err := store.UpsertContent(ctx, "g.hello", types.SourcePayload{Text: "Hello"})
	require.NoError(t, err)
	require.NoError(t, store.TouchJob(ctx, contentID))
	n, err := store.EnsurePendingTranslations(ctx, contentID, nil, []string{"fr"}, nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	first, err := store.ClaimPendingBatch(ctx, "fr", 10, false)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "Hello", first[0].Text)

	second, err := store.ClaimPendingBatch(ctx, "fr", 10, false)
	require.NoError(t, err)
	require.Empty(t, second, "a claimed row must not be claimable again")
}

func TestStore_SaveResultsAndGetTranslation_CacheableRoundTrip(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	contentID, err := store.UpsertContent(ctx, "g.hello", types.SourcePayload{Text: "Hello"})
	require.NoError(t, err)
	require.NoError(t, store.TouchJob(ctx, contentID))
	_, err = store.EnsurePendingTranslations(ctx, contentID, nil, []string{"fr"}, nil, false)
	require.NoError(t, err)

	claimed, err := store.ClaimPendingBatch(ctx, "fr", 10, false)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	translated := "[fr]Hello"
	engine := "debug"
	err = store.SaveResults(ctx, []types.TranslationResult{{
		TranslationID:  claimed[0].TranslationID,
		ContentID:      claimed[0].ContentID,
		Status:         types.StatusTranslated,
		TranslatedText: &translated,
		Engine:         &engine,
	}}, nil)
	require.NoError(t, err)

	result, err := store.GetTranslation(ctx, "g.hello", "fr", types.GlobalContextSentinel)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, types.StatusTranslated, result.Status)
	require.Equal(t, translated, *result.TranslatedText)
}

func TestStore_SaveResults_FailureWritesDeadLetterEntry(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	contentID, err := store.UpsertContent(ctx, "g.hello", types.SourcePayload{Text: "Hello"})
	require.NoError(t, err)
	require.NoError(t, store.TouchJob(ctx, contentID))
	_, err = store.EnsurePendingTranslations(ctx, contentID, nil, []string{"fr"}, nil, false)
	require.NoError(t, err)

	claimed, err := store.ClaimPendingBatch(ctx, "fr", 10, false)
	require.NoError(t, err)

	errMsg := "engine exhausted retries"
	err = store.SaveResults(ctx, []types.TranslationResult{{
		TranslationID: claimed[0].TranslationID,
		ContentID:     claimed[0].ContentID,
		Status:        types.StatusFailed,
		Error:         &errMsg,
	}}, []repository.DeadLetterEntry{{
		TranslationID:    &claimed[0].TranslationID,
		ContentID:        &claimed[0].ContentID,
		TargetLangCode:   "fr",
		OriginalPayload:  map[string]any{"text": "Hello"},
		LastErrorMessage: errMsg,
	}})
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM th_dead_letter_queue WHERE translation_id = ?`, claimed[0].TranslationID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestStore_GarbageCollect_DryRunMatchesRealRun(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	contentID, err := store.UpsertContent(ctx, "g.stale", types.SourcePayload{Text: "Old"})
	require.NoError(t, err)
	_, err = store.EnsurePendingTranslations(ctx, contentID, nil, []string{"fr"}, nil, false)
	require.NoError(t, err)
	require.NoError(t, store.TouchJob(ctx, contentID))

	staleTimestamp := time.Now().AddDate(0, 0, -40).UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
	_, err = conn.Exec(`UPDATE th_jobs SET last_requested_at = ? WHERE content_id = ?`, staleTimestamp, contentID)
	require.NoError(t, err)

	dryCounts, err := store.GarbageCollect(ctx, 30, true)
	require.NoError(t, err)
	require.Equal(t, int64(1), dryCounts.DeletedJobs)
	require.Equal(t, int64(1), dryCounts.DeletedContent)
	require.GreaterOrEqual(t, dryCounts.DeletedTranslations, int64(1))

	realCounts, err := store.GarbageCollect(ctx, 30, false)
	require.NoError(t, err)
	require.Equal(t, dryCounts, realCounts)

	var remaining int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM th_content WHERE id = ?`, contentID).Scan(&remaining))
	require.Zero(t, remaining)
}

func TestStore_RecoverStaleClaims_ResetsAbandonedTranslating(t *testing.T) {
	conn := testutil.NewTestDB(t)
	store := repository.NewStore(conn)
	ctx := context.Background()

	contentID, err := store.UpsertContent(ctx, "g.hello", types.SourcePayload{Text: "Hello"})
	require.NoError(t, err)
	_, err = store.EnsurePendingTranslations(ctx, contentID, nil, []string{"fr"}, nil, false)
	require.NoError(t, err)

	claimed, err := store.ClaimPendingBatch(ctx, "fr", 10, false)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	_, err = conn.Exec(`UPDATE th_translations SET last_updated_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour).UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), claimed[0].TranslationID)
	require.NoError(t, err)

	n, err := store.RecoverStaleClaims(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	reclaimed, err := store.ClaimPendingBatch(ctx, "fr", 10, false)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
}
