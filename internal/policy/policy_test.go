package policy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transhub/internal/cache"
	"transhub/internal/policy"
	"transhub/internal/ratelimit"
	"transhub/internal/repository"
	"transhub/internal/types"
)

type fakePersistence struct {
	mu          sync.Mutex
	results     []types.TranslationResult
	deadLetters []repository.DeadLetterEntry
	calls       int
}

func (f *fakePersistence) SaveResults(_ context.Context, results []types.TranslationResult, deadLetters []repository.DeadLetterEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.results = append(f.results, results...)
	f.deadLetters = append(f.deadLetters, deadLetters...)
	return nil
}

// scriptedEngine returns a scripted EngineResult per call, by text;
// each call to TranslateOne consumes the next scripted entry for that
// text, letting tests model "fails once then succeeds".
type scriptedEngine struct {
	mu      sync.Mutex
	script  map[string][]types.EngineResult
	callLog map[string]int
}

func newScriptedEngine(script map[string][]types.EngineResult) *scriptedEngine {
	return &scriptedEngine{script: script, callLog: map[string]int{}}
}

func (e *scriptedEngine) Name() string                                  { return "scripted" }
func (e *scriptedEngine) Version() string                               { return "test" }
func (e *scriptedEngine) AcceptsContext() bool                          { return false }
func (e *scriptedEngine) RequiresSourceLang() bool                      { return false }
func (e *scriptedEngine) ValidateContext(map[string]any) error          { return nil }
func (e *scriptedEngine) Concurrency() int                              { return 4 }
func (e *scriptedEngine) Initialize(context.Context) error              { return nil }
func (e *scriptedEngine) Close() error                                  { return nil }
func (e *scriptedEngine) TranslateOne(_ context.Context, text, _ string, _ *string, _ map[string]any) types.EngineResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps := e.script[text]
	call := e.callLog[text]
	e.callLog[text] = call + 1
	if call >= len(steps) {
		return steps[len(steps)-1]
	}
	return steps[call]
}

func (e *scriptedEngine) callCount(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callLog[text]
}

func item(translationID, text string) types.ContentItem {
	return types.ContentItem{
		ContentID:     "content-" + translationID,
		Text:          text,
		ContextHash:   types.GlobalContextSentinel,
		TranslationID: translationID,
		TargetLang:    "fr",
	}
}

func TestProcessBatch_FreshSuccess(t *testing.T) {
	eng := newScriptedEngine(map[string][]types.EngineResult{
		"Hello": {types.EngineSuccess("[fr]Hello")},
	})
	persistence := &fakePersistence{}
	deps := policy.Deps{
		Engine:      eng,
		Cache:       cache.New(100, time.Hour),
		RateLimiter: ratelimit.Disabled(),
		Persistence: persistence,
		Retry:       policy.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}

	results, err := policy.ProcessBatch(context.Background(), deps, []types.ContentItem{item("t1", "Hello")}, "fr")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.StatusTranslated, results[0].Status)
	require.Equal(t, "[fr]Hello", *results[0].TranslatedText)
	require.False(t, results[0].FromCache)
	require.Equal(t, 1, persistence.calls)
}

func TestProcessBatch_EmptyBatchDoesNoWork(t *testing.T) {
	persistence := &fakePersistence{}
	deps := policy.Deps{
		Engine:      newScriptedEngine(nil),
		Cache:       cache.New(100, time.Hour),
		RateLimiter: ratelimit.Disabled(),
		Persistence: persistence,
	}

	results, err := policy.ProcessBatch(context.Background(), deps, nil, "fr")
	require.NoError(t, err)
	require.Nil(t, results)
	require.Zero(t, persistence.calls)
}

func TestProcessBatch_RetryThenSuccess(t *testing.T) {
	eng := newScriptedEngine(map[string][]types.EngineResult{
		"Hello": {types.EngineErr("transient", true), types.EngineSuccess("[fr]Hello")},
	})
	persistence := &fakePersistence{}
	deps := policy.Deps{
		Engine:      eng,
		Cache:       cache.New(100, time.Hour),
		RateLimiter: ratelimit.Disabled(),
		Persistence: persistence,
		Retry:       policy.RetryConfig{MaxAttempts: 2, InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second},
	}

	start := time.Now()
	results, err := policy.ProcessBatch(context.Background(), deps, []types.ContentItem{item("t1", "Hello")}, "fr")
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.StatusTranslated, results[0].Status)
	require.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	require.Equal(t, 2, eng.callCount("Hello"))
}

func TestProcessBatch_TerminalFailureGoesToDeadLetterQueue(t *testing.T) {
	eng := newScriptedEngine(map[string][]types.EngineResult{
		"Hello": {
			types.EngineErr("transient", true),
			types.EngineErr("transient", true),
			types.EngineErr("transient", true),
		},
	})
	persistence := &fakePersistence{}
	deps := policy.Deps{
		Engine:      eng,
		Cache:       cache.New(100, time.Hour),
		RateLimiter: ratelimit.Disabled(),
		Persistence: persistence,
		Retry:       policy.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}

	results, err := policy.ProcessBatch(context.Background(), deps, []types.ContentItem{item("t1", "Hello")}, "fr")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.StatusFailed, results[0].Status)
	require.Equal(t, 3, eng.callCount("Hello"))
	require.Len(t, persistence.deadLetters, 1)
	require.Equal(t, "t1", *persistence.deadLetters[0].TranslationID)
}

func TestProcessBatch_CacheHitSkipsEngine(t *testing.T) {
	eng := newScriptedEngine(map[string][]types.EngineResult{
		"Hello": {types.EngineSuccess("[fr]Hello")},
	})
	c := cache.New(100, time.Hour)
	fp := cache.Fingerprint("fr", "", types.GlobalContextSentinel, "Hello")
	c.Set(fp, cache.Entry{TranslatedText: "[fr]Hello-cached", Engine: "debug", EngineVersion: "1.0.0", StoredAt: time.Now()})

	persistence := &fakePersistence{}
	deps := policy.Deps{
		Engine:      eng,
		Cache:       c,
		RateLimiter: ratelimit.Disabled(),
		Persistence: persistence,
		Retry:       policy.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}

	results, err := policy.ProcessBatch(context.Background(), deps, []types.ContentItem{item("t1", "Hello")}, "fr")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].FromCache)
	require.Equal(t, "[fr]Hello-cached", *results[0].TranslatedText)
	require.Zero(t, eng.callCount("Hello"), "engine must not be invoked on a cache hit")
}

func TestProcessBatch_MixedContextInOneBatchIsAProgrammerError(t *testing.T) {
	persistence := &fakePersistence{}
	deps := policy.Deps{
		Engine:      newScriptedEngine(nil),
		Cache:       cache.New(100, time.Hour),
		RateLimiter: ratelimit.Disabled(),
		Persistence: persistence,
	}

	a := item("t1", "Hello")
	b := item("t2", "World")
	b.ContextHash = "some-other-hash"

	_, err := policy.ProcessBatch(context.Background(), deps, []types.ContentItem{a, b}, "fr")
	require.Error(t, err)
	require.Zero(t, persistence.calls)
}
