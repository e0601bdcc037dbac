package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transhub/internal/cache"
)

func TestCache_SetThenGet(t *testing.T) {
	c := cache.New(10, time.Hour)
	key := cache.Fingerprint("fr", "", "__GLOBAL__", "Hello")

	c.Set(key, cache.Entry{TranslatedText: "[fr]Hello", Engine: "debug", StoredAt: time.Now()})

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "[fr]Hello", got.TranslatedText)
}

func TestCache_MissingKey(t *testing.T) {
	c := cache.New(10, time.Hour)
	_, ok := c.Get("missing")
	require.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := cache.New(10, 10*time.Millisecond)
	c.Set("k", cache.Entry{TranslatedText: "x", StoredAt: time.Now().Add(-time.Hour)})

	_, ok := c.Get("k")
	require.False(t, ok, "entry older than ttl must be treated as a miss")
}

func TestCache_EvictsLeastRecentlyUsedWhenFull(t *testing.T) {
	c := cache.New(2, time.Hour)
	c.Set("a", cache.Entry{TranslatedText: "A", StoredAt: time.Now()})
	c.Set("b", cache.Entry{TranslatedText: "B", StoredAt: time.Now()})

	// touch "a" so "b" becomes least-recently-used
	_, _ = c.Get("a")

	c.Set("c", cache.Entry{TranslatedText: "C", StoredAt: time.Now()})

	_, ok := c.Get("b")
	require.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestFingerprint_DifferentContextHashesProduceDifferentKeys(t *testing.T) {
	a := cache.Fingerprint("zh", "", "hash-animal", "Jaguar")
	b := cache.Fingerprint("zh", "", "hash-car", "Jaguar")
	require.NotEqual(t, a, b)
}
