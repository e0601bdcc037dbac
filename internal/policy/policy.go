// Package policy is the Processing Policy (spec §4.7): a pure
// function over injected dependencies and one already-claimed batch
// that shares a single context_hash. It has no long-lived state and
// no back-pointer to the Coordinator (spec §9's "avoiding circular
// references").
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"transhub/internal/cache"
	"transhub/internal/engine"
	"transhub/internal/logger"
	"transhub/internal/ratelimit"
	"transhub/internal/repository"
	"transhub/internal/types"
)

// RetryConfig bounds the retry/backoff loop (spec §4.7, §6).
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Persistence is the slice of the Persistence Handler the policy
// needs: a single save_results call combining translation updates and
// dead-letter archival in one transaction.
type Persistence interface {
	SaveResults(ctx context.Context, results []types.TranslationResult, deadLetters []repository.DeadLetterEntry) error
}

// Deps is the immutable context the spec's design notes call for:
// engine, cache, rate limiter, persistence, and retry config, passed
// by value with no reference back to the Coordinator.
type Deps struct {
	Engine      engine.Engine
	Cache       *cache.Cache
	RateLimiter ratelimit.Limiter
	Persistence Persistence
	Retry       RetryConfig
}

// pendingItem tracks one not-yet-terminal translation across retry
// attempts.
type pendingItem struct {
	item         types.ContentItem
	lastError    string
	lastRetrying bool
}

// ProcessBatch runs spec §4.7's algorithm over one context-homogeneous
// batch and returns the combined TranslationResult list in input
// order. The empty-batch and mixed-context edge cases are handled
// up front; everything else follows the numbered steps in the
// design doc.
func ProcessBatch(ctx context.Context, deps Deps, batch []types.ContentItem, targetLang string) ([]types.TranslationResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	contextHash := batch[0].ContextHash
	for _, item := range batch[1:] {
		if item.ContextHash != contextHash {
			return nil, fmt.Errorf("policy: mixed context_hash in one batch (programmer error): %q vs %q", contextHash, item.ContextHash)
		}
	}
	contextPayload := batch[0].ContextPayload

	results := make([]types.TranslationResult, len(batch))
	var pending []pendingItem

	// Step 1: partition by cache.
	for i, item := range batch {
		sourceLang := ""
		if item.SourceLang != nil {
			sourceLang = *item.SourceLang
		}
		fp := cache.Fingerprint(targetLang, sourceLang, item.ContextHash, item.Text)
		if entry, ok := deps.Cache.Get(fp); ok {
			results[i] = translatedResult(item, targetLang, entry.TranslatedText, entry.Engine, entry.EngineVersion, true)
			continue
		}
		pending = append(pending, pendingItem{item: item})
		results[i] = types.TranslationResult{} // filled once resolved below
	}

	indexByTranslationID := make(map[string]int, len(batch))
	for i, item := range batch {
		indexByTranslationID[item.TranslationID] = i
	}

	var deadLetters []repository.DeadLetterEntry

	// Step 2: retry loop over the uncached subset.
	if len(pending) > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = deps.Retry.InitialBackoff
		bo.MaxInterval = deps.Retry.MaxBackoff
		bo.Multiplier = 2
		bo.RandomizationFactor = 0
		bo.MaxElapsedTime = 0
		bo.Reset() // restart from InitialInterval; the constructor reset to the library default

		maxAttempts := deps.Retry.MaxAttempts
		if maxAttempts < 1 {
			maxAttempts = 1
		}

		for attempt := 1; attempt <= maxAttempts && len(pending) > 0; attempt++ {
			if err := deps.RateLimiter.Acquire(ctx, len(pending)); err != nil {
				return nil, fmt.Errorf("acquire rate limit tokens: %w", err)
			}

			if deps.Engine.AcceptsContext() {
				if err := deps.Engine.ValidateContext(contextPayload); err != nil {
					for _, p := range pending {
						idx := indexByTranslationID[p.item.TranslationID]
						results[idx] = failedResult(p.item, targetLang, err.Error())
					}
					pending = nil
					break
				}
			}

			texts := make([]string, len(pending))
			var sourceLang *string
			for i, p := range pending {
				texts[i] = p.item.Text
				if p.item.SourceLang != nil {
					sourceLang = p.item.SourceLang
				}
			}

			engineResults := engine.TranslateBatch(ctx, deps.Engine, texts, targetLang, sourceLang, contextPayload)
			engineResults = conformToLength(engineResults, len(pending))

			var stillPending []pendingItem
			for i, p := range pending {
				er := engineResults[i]
				idx := indexByTranslationID[p.item.TranslationID]

				switch {
				case er.Success:
					results[idx] = translatedResult(p.item, targetLang, er.TranslatedText, deps.Engine.Name(), deps.Engine.Version(), false)
					deps.Cache.Set(
						cache.Fingerprint(targetLang, sourceLangOf(p.item), p.item.ContextHash, p.item.Text),
						cache.Entry{TranslatedText: er.TranslatedText, Engine: deps.Engine.Name(), EngineVersion: deps.Engine.Version(), StoredAt: time.Now()},
					)
				case !er.IsRetryable:
					results[idx] = failedResult(p.item, targetLang, er.Message)
				default:
					p.lastError = er.Message
					p.lastRetrying = true
					stillPending = append(stillPending, p)
				}
			}
			pending = stillPending

			if len(pending) == 0 {
				break
			}
			if attempt < maxAttempts {
				sleep := bo.NextBackOff()
				logger.Debug("processing policy retrying batch", "module", "policy", "action", "retry", "resource", "translation", "result", "pending", "attempt", attempt, "pending_count", len(pending), "sleep", sleep)
				select {
				case <-time.After(sleep):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}

		// After the last attempt, whatever remains pending is terminal.
		for _, p := range pending {
			idx := indexByTranslationID[p.item.TranslationID]
			results[idx] = failedResult(p.item, targetLang, p.lastError)
		}
	}

	// Step 3: DLQ every terminal failure.
	for i, res := range results {
		if res.Status == types.StatusFailed {
			item := batch[i]
			deadLetters = append(deadLetters, repository.DeadLetterEntry{
				TranslationID:    &item.TranslationID,
				ContentID:        &item.ContentID,
				TargetLangCode:   targetLang,
				OriginalPayload:  map[string]any{"text": item.Text},
				ContextPayload:   item.ContextPayload,
				LastErrorMessage: derefOrEmpty(res.Error),
			})
		}
	}

	// Step 5: persist everything in one transaction.
	if err := deps.Persistence.SaveResults(ctx, results, deadLetters); err != nil {
		return nil, fmt.Errorf("save batch results: %w", err)
	}

	return results, nil
}

func sourceLangOf(item types.ContentItem) string {
	if item.SourceLang == nil {
		return ""
	}
	return *item.SourceLang
}

func translatedResult(item types.ContentItem, targetLang, translatedText, engineName, engineVersion string, fromCache bool) types.TranslationResult {
	text := translatedText
	eng := engineName
	ver := engineVersion
	return types.TranslationResult{
		ContentID:      item.ContentID,
		TranslationID:  item.TranslationID,
		OriginalText:   item.Text,
		TranslatedText: &text,
		TargetLang:     targetLang,
		Status:         types.StatusTranslated,
		Engine:         &eng,
		EngineVersion:  &ver,
		FromCache:      fromCache,
		ContextHash:    item.ContextHash,
		ContextPayload: item.ContextPayload,
	}
}

func failedResult(item types.ContentItem, targetLang, message string) types.TranslationResult {
	msg := message
	return types.TranslationResult{
		ContentID:      item.ContentID,
		TranslationID:  item.TranslationID,
		OriginalText:   item.Text,
		TargetLang:     targetLang,
		Status:         types.StatusFailed,
		Error:          &msg,
		ContextHash:    item.ContextHash,
		ContextPayload: item.ContextPayload,
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// conformToLength implements §4.7's edge case for engines that
// violate the length contract: extra results are dropped, missing
// ones become a retryable "engine contract violation" error.
func conformToLength(results []types.EngineResult, want int) []types.EngineResult {
	if len(results) == want {
		return results
	}
	out := make([]types.EngineResult, want)
	for i := range out {
		if i < len(results) {
			out[i] = results[i]
		} else {
			out[i] = types.EngineErr("engine contract violation", true)
		}
	}
	return out
}
