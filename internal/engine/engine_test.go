package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"transhub/internal/engine"
	"transhub/internal/types"
)

// fakeEngine is a minimal in-package test double; the real reference
// implementation lives in internal/engine/debugengine.
type fakeEngine struct {
	requiresSourceLang bool
	acceptsContext     bool
	validateErr        error
	concurrency        int
}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) Version() string { return "0.0.1" }
func (e *fakeEngine) AcceptsContext() bool {
	return e.acceptsContext
}
func (e *fakeEngine) RequiresSourceLang() bool { return e.requiresSourceLang }
func (e *fakeEngine) ValidateContext(map[string]any) error {
	return e.validateErr
}
func (e *fakeEngine) Concurrency() int {
	if e.concurrency == 0 {
		return 1
	}
	return e.concurrency
}
func (e *fakeEngine) Initialize(context.Context) error { return nil }
func (e *fakeEngine) Close() error                     { return nil }
func (e *fakeEngine) TranslateOne(_ context.Context, text, targetLang string, _ *string, _ map[string]any) types.EngineResult {
	return types.EngineSuccess(fmt.Sprintf("[%s]%s", targetLang, text))
}

func TestTranslateBatch_PreservesOrderAndLength(t *testing.T) {
	e := &fakeEngine{}
	texts := []string{"a", "b", "c"}

	results := engine.TranslateBatch(context.Background(), e, texts, "fr", nil, nil)

	require.Len(t, results, len(texts))
	for i, text := range texts {
		require.True(t, results[i].Success)
		require.Equal(t, "[fr]"+text, results[i].TranslatedText)
	}
}

func TestTranslateBatch_RequiresSourceLangWhenEngineDemandsIt(t *testing.T) {
	e := &fakeEngine{requiresSourceLang: true}
	results := engine.TranslateBatch(context.Background(), e, []string{"a", "b"}, "fr", nil, nil)

	for _, r := range results {
		require.False(t, r.Success)
		require.False(t, r.IsRetryable)
		require.Equal(t, "source_lang required", r.Message)
	}
}

func TestTranslateBatch_ValidatesContextOnceAndFailsWholeBatch(t *testing.T) {
	e := &fakeEngine{acceptsContext: true, validateErr: fmt.Errorf("bad context schema")}
	results := engine.TranslateBatch(context.Background(), e, []string{"a", "b"}, "fr", nil, map[string]any{"x": 1})

	for _, r := range results {
		require.False(t, r.Success)
		require.False(t, r.IsRetryable)
		require.Equal(t, "bad context schema", r.Message)
	}
}
