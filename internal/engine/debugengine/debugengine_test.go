package debugengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"transhub/internal/engine/debugengine"
	"transhub/internal/registry"
)

func TestDebugEngine_SuccessMode(t *testing.T) {
	e := debugengine.New(debugengine.Config{Mode: debugengine.ModeSuccess})
	result := e.TranslateOne(context.Background(), "Hello", "fr", nil, nil)
	require.True(t, result.Success)
	require.Equal(t, "[fr]Hello", result.TranslatedText)
}

func TestDebugEngine_FailMode(t *testing.T) {
	e := debugengine.New(debugengine.Config{Mode: debugengine.ModeFail})
	result := e.TranslateOne(context.Background(), "Hello", "fr", nil, nil)
	require.False(t, result.Success)
	require.True(t, result.IsRetryable)
}

func TestDebugEngine_SelfRegistersUnderDebug(t *testing.T) {
	eng, err := registry.New("DEBUG", debugengine.Config{Mode: debugengine.ModeSuccess})
	require.NoError(t, err)
	require.Equal(t, "debug", eng.Name())
}
