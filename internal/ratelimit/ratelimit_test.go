package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transhub/internal/ratelimit"
)

func TestTokenBucket_AcquireWithinCapacityDoesNotBlock(t *testing.T) {
	limiter := ratelimit.New(10, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.Acquire(ctx, 5))
}

func TestTokenBucket_AcquireBeyondCapacityBlocksUntilRefill(t *testing.T) {
	limiter := ratelimit.New(100, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx, 1))

	start := time.Now()
	require.NoError(t, limiter.Acquire(ctx, 1))
	require.Greater(t, time.Since(start), time.Duration(0))
}

func TestDisabled_NeverBlocks(t *testing.T) {
	limiter := ratelimit.Disabled()
	require.NoError(t, limiter.Acquire(context.Background(), 1_000_000))
}

func TestDisabled_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, ratelimit.Disabled().Acquire(ctx, 1))
}
