// Package engine is the translation Engine abstraction (spec §4.3):
// the contract every concrete translator implements, plus the batch
// orchestration that wraps bounded concurrent fan-out and context
// validation around a single translate_one call.
package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"transhub/internal/types"
)

// Engine is the capability every concrete translator must satisfy.
// TranslateOne is the only required method; Initialize/Close are
// idempotent lifecycle hooks.
type Engine interface {
	// Name identifies the engine for logging and the result's
	// "engine" field.
	Name() string
	// Version is recorded on every successful TranslationResult.
	Version() string
	// AcceptsContext reports whether this engine understands a
	// context payload at all.
	AcceptsContext() bool
	// RequiresSourceLang reports whether translate calls must carry a
	// non-nil source language.
	RequiresSourceLang() bool
	// ValidateContext checks a context payload against the engine's
	// own schema. Called per batch, never per item (the Processing
	// Policy and TranslateBatch each call it on every attempt). A nil
	// payload (global context) always validates.
	ValidateContext(payload map[string]any) error
	// TranslateOne translates a single text. Must not panic for
	// expected failure modes — return a typed EngineResult instead.
	TranslateOne(ctx context.Context, text, targetLang string, sourceLang *string, contextPayload map[string]any) types.EngineResult
	// Initialize performs optional warm-up / credential checks.
	Initialize(ctx context.Context) error
	// Close releases resources. Idempotent.
	Close() error
	// Concurrency bounds translate_one fan-out within one batch.
	// Engines with no preference return 1 (serial, the spec's stated
	// default).
	Concurrency() int
}

// TranslateBatch implements spec §4.3's batch orchestration layered on
// top of any Engine's TranslateOne: context validation once per batch,
// bounded concurrent fan-out via errgroup (the structured-concurrency
// equivalent of the teacher's hand-rolled semaphore channel), and
// exactly one EngineResult per input text, in order.
func TranslateBatch(ctx context.Context, eng Engine, texts []string, targetLang string, sourceLang *string, contextPayload map[string]any) []types.EngineResult {
	results := make([]types.EngineResult, len(texts))

	if eng.RequiresSourceLang() && sourceLang == nil {
		for i := range results {
			results[i] = types.EngineErr("source_lang required", false)
		}
		return results
	}

	if eng.AcceptsContext() {
		if err := eng.ValidateContext(contextPayload); err != nil {
			for i := range results {
				results[i] = types.EngineErr(err.Error(), false)
			}
			return results
		}
	}

	limit := eng.Concurrency()
	if limit <= 0 {
		limit = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	for i, text := range texts {
		i, text := i, text
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					results[i] = types.EngineErr(panicMessage(r), true)
				}
			}()
			results[i] = eng.TranslateOne(groupCtx, text, targetLang, sourceLang, contextPayload)
			return nil
		})
	}
	// TranslateOne failures never abort the group: each is captured as
	// a retryable EngineResult rather than a group error, matching
	// §4.3's "any exception leaking from translate_one is converted
	// into Error{is_retryable=true}".
	_ = group.Wait()

	return results
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "engine panic"
}
