package policy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"transhub/internal/cache"
	"transhub/internal/policy"
	"transhub/internal/policy/policymock"
	"transhub/internal/ratelimit"
	"transhub/internal/types"
)

// TestProcessBatch_SaveResultsFailurePropagates uses a gomock double
// instead of the hand-rolled fakePersistence in policy_test.go to pin down
// save_results' error-propagation contract (spec §7: "persistence
// errors during save_results ... the affected translations remain in
// TRANSLATING") without asserting anything about the SQL layer itself.
func TestProcessBatch_SaveResultsFailurePropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	persistence := policymock.NewMockPersistence(ctrl)
	persistence.EXPECT().
		SaveResults(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	eng := newScriptedEngine(map[string][]types.EngineResult{
		"Hello": {types.EngineSuccess("[fr]Hello")},
	})
	deps := policy.Deps{
		Engine:      eng,
		Cache:       cache.New(100, time.Hour),
		RateLimiter: ratelimit.Disabled(),
		Persistence: persistence,
		Retry:       policy.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}

	_, err := policy.ProcessBatch(context.Background(), deps, []types.ContentItem{item("t1", "Hello")}, "fr")
	require.Error(t, err)
}
