// Package debugengine is the reference Engine implementation used by
// tests (spec §4.3's DebugEngine): SUCCESS mode prefixes every text
// with "[lang]"; FAIL mode always returns a retryable error. It
// self-registers with the Engine Registry at import time, the way the
// teacher's concrete AI providers are selected by name in
// internal/service/ai/provider.go's NewProvider switch, generalized
// here into the open registry.Register call spec §4.4 requires.
package debugengine

import (
	"context"
	"fmt"

	"transhub/internal/engine"
	"transhub/internal/registry"
	"transhub/internal/types"
)

func init() {
	registry.Register("debug", func(config any) (engine.Engine, error) {
		cfg, _ := config.(Config)
		return New(cfg), nil
	})
}

// Mode selects DebugEngine's canned behavior.
type Mode string

const (
	ModeSuccess Mode = "success"
	ModeFail    Mode = "fail"
)

// Config is DebugEngine's config_model.
type Config struct {
	Mode Mode
}

// Engine is the reference DebugEngine.
type Engine struct {
	mode Mode
}

// New builds a DebugEngine in the given mode.
func New(cfg Config) *Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeSuccess
	}
	return &Engine{mode: mode}
}

func (e *Engine) Name() string { return "debug" }

func (e *Engine) Version() string { return "1.0.0" }

func (e *Engine) AcceptsContext() bool { return false }

func (e *Engine) RequiresSourceLang() bool { return false }

func (e *Engine) ValidateContext(map[string]any) error { return nil }

func (e *Engine) Concurrency() int { return 1 }

func (e *Engine) Initialize(context.Context) error { return nil }

func (e *Engine) Close() error { return nil }

func (e *Engine) TranslateOne(_ context.Context, text, targetLang string, _ *string, _ map[string]any) types.EngineResult {
	if e.mode == ModeFail {
		return types.EngineErr("debug engine configured to fail", true)
	}
	return types.EngineSuccess(fmt.Sprintf("[%s]%s", targetLang, text))
}
