// Package coordinator is Trans-Hub's public API (spec §4.8): the only
// component allowed to own the engine instance, the cache, the rate
// limiter, and the persistence handle. The Processing Policy it calls
// into is a pure function over those dependencies — the Coordinator
// never hands the policy a back-pointer to itself (spec §9).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"transhub/internal/cache"
	"transhub/internal/engine"
	"transhub/internal/logger"
	"transhub/internal/policy"
	"transhub/internal/ratelimit"
	"transhub/internal/registry"
	"transhub/internal/repository"
	"transhub/internal/types"
)

// Config configures a Coordinator's dependencies (spec §6's nested TH_
// options, already parsed by internal/config).
type Config struct {
	ActiveEngine    string
	EngineConfig    any
	DefaultSource   string
	BatchSize       int
	GCRetentionDays int
	Retry           policy.RetryConfig
	CacheMaxSize    int
	CacheTTL        time.Duration
	RateRefill      float64
	RateCapacity    int
}

// Coordinator owns the full pipeline's shared mutable state (spec
// §5's "shared mutable state" list).
type Coordinator struct {
	store *repository.Store
	cache *cache.Cache
	limit ratelimit.Limiter

	mu     sync.RWMutex
	engine engine.Engine

	batchSize       int
	gcRetentionDays int
	retry           policy.RetryConfig
	defaultSource   string
}

// New builds a Coordinator. The returned value still needs Initialize
// called before use.
func New(store *repository.Store, cfg Config) *Coordinator {
	var limiter ratelimit.Limiter = ratelimit.Disabled()
	if cfg.RateCapacity > 0 {
		limiter = ratelimit.New(cfg.RateRefill, cfg.RateCapacity)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	return &Coordinator{
		store:           store,
		cache:           cache.New(cfg.CacheMaxSize, cfg.CacheTTL),
		limit:           limiter,
		batchSize:       batchSize,
		gcRetentionDays: cfg.GCRetentionDays,
		retry:           cfg.Retry,
		defaultSource:   cfg.DefaultSource,
	}
}

// Initialize discovers and instantiates the active engine and calls
// its lifecycle hook (spec §4.8's initialize()).
func (c *Coordinator) Initialize(ctx context.Context, activeEngineName string, engineConfig any) error {
	ctx, correlationID := withCorrelationID(ctx)

	eng, err := registry.New(activeEngineName, engineConfig)
	if err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}
	if err := eng.Initialize(ctx); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("initialize engine %q: %v", activeEngineName, err)}
	}

	c.mu.Lock()
	c.engine = eng
	c.mu.Unlock()

	logger.Info("coordinator initialized", "module", "coordinator", "action", "initialize", "resource", "engine", "result", "ok",
		"engine", activeEngineName, "correlation_id", correlationID)
	return nil
}

// Close releases the active engine and the persistence handle (spec
// §4.8's close()).
func (c *Coordinator) Close() error {
	c.mu.Lock()
	eng := c.engine
	c.engine = nil
	c.mu.Unlock()

	var engineErr error
	if eng != nil {
		engineErr = eng.Close()
	}
	storeErr := c.store.Close()

	if engineErr != nil {
		return engineErr
	}
	return storeErr
}

// RequestInput is request()'s normalized argument bundle.
type RequestInput struct {
	TargetLangs      []string
	Text             any // string or map[string]any, per spec §4.8
	BusinessID       *string
	ContextPayload   map[string]any
	SourceLang       *string
	ForceRetranslate bool
}

// Request implements spec §4.8's request(): normalize, validate,
// upsert content, touch job, ensure pending translations.
func (c *Coordinator) Request(ctx context.Context, in RequestInput) error {
	ctx, correlationID := withCorrelationID(ctx)

	payload, err := normalizeSourcePayload(in.Text)
	if err != nil {
		return err
	}
	if payload.Text == "" {
		return &ValidationError{Reason: "text must not be empty"}
	}
	if len(in.TargetLangs) == 0 {
		return &ValidationError{Reason: "target_langs must not be empty"}
	}
	for _, lang := range in.TargetLangs {
		if !types.ValidLangCode(lang) {
			return &ValidationError{Reason: fmt.Sprintf("invalid lang_code %q", lang)}
		}
	}

	businessID := ""
	if in.BusinessID != nil && *in.BusinessID != "" {
		businessID = *in.BusinessID
	} else {
		businessID = "synthetic-" + uuid.NewString()
	}

	sourceLang := in.SourceLang
	if sourceLang == nil && c.defaultSource != "" {
		sourceLang = &c.defaultSource
	}

	contentID, err := c.store.UpsertContent(ctx, businessID, payload)
	if err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}

	contextID, _, err := c.store.EnsureContext(ctx, in.ContextPayload)
	if err != nil {
		return fmt.Errorf("ensure context: %w", err)
	}

	if err := c.store.TouchJob(ctx, contentID); err != nil {
		return fmt.Errorf("touch job: %w", err)
	}

	inserted, err := c.store.EnsurePendingTranslations(ctx, contentID, contextID, in.TargetLangs, sourceLang, in.ForceRetranslate)
	if err != nil {
		return fmt.Errorf("ensure pending translations: %w", err)
	}

	logger.Info("request accepted", "module", "coordinator", "action", "request", "resource", "translation", "result", "ok",
		"business_id", businessID, "target_langs", in.TargetLangs, "inserted", inserted, "correlation_id", correlationID)
	return nil
}

func normalizeSourcePayload(text any) (types.SourcePayload, error) {
	switch v := text.(type) {
	case string:
		return types.SourcePayload{Text: v}, nil
	case types.SourcePayload:
		return v, nil
	case map[string]any:
		raw, ok := v["text"].(string)
		if !ok {
			return types.SourcePayload{}, &ValidationError{Reason: "structured payload must contain a string \"text\" field"}
		}
		extra := make(map[string]any, len(v))
		for k, val := range v {
			if k == "text" {
				continue
			}
			extra[k] = val
		}
		return types.SourcePayload{Text: raw, Extra: extra}, nil
	default:
		return types.SourcePayload{}, &ValidationError{Reason: "text must be a string or a structured payload"}
	}
}

// GetTranslation implements spec §4.8's get_translation(). It reads the
// persisted row first, because the cache fingerprint needs the row's
// original text, and then checks the cache: a cache hit is returned
// with FromCache set; a miss on a TRANSLATED row populates the cache
// from the row. The persistence read happens on every call, cache hit
// or not.
func (c *Coordinator) GetTranslation(ctx context.Context, businessID, targetLang string, contextPayload map[string]any) (*types.TranslationResult, error) {
	ctx, _ = withCorrelationID(ctx)

	contextHash := types.GlobalContextSentinel
	if len(contextPayload) > 0 {
		if _, hash, err := c.store.EnsureContext(ctx, contextPayload); err == nil {
			contextHash = hash
		}
	}

	result, err := c.store.GetTranslation(ctx, businessID, targetLang, contextHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil // ErrNotFound maps to "no result", not a caller-visible error.
		}
		return nil, fmt.Errorf("get translation: %w", err)
	}

	sourceLang := ""
	fp := cache.Fingerprint(targetLang, sourceLang, contextHash, result.OriginalText)
	if entry, ok := c.cache.Get(fp); ok {
		translated := entry.TranslatedText
		result.TranslatedText = &translated
		result.FromCache = true
		return result, nil
	}

	if result.Status == types.StatusTranslated && result.TranslatedText != nil {
		c.cache.Set(fp, cache.Entry{
			TranslatedText: *result.TranslatedText,
			Engine:         derefOrEmpty(result.Engine),
			EngineVersion:  derefOrEmpty(result.EngineVersion),
			StoredAt:       time.Now(),
		})
	}
	result.FromCache = false
	return result, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SwitchEngine implements spec §4.8's switch_engine(): replace the
// active engine by registry lookup, closing the old one and
// initializing the new one.
func (c *Coordinator) SwitchEngine(ctx context.Context, name string, config any) error {
	ctx, correlationID := withCorrelationID(ctx)

	next, err := registry.New(name, config)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("unknown engine %q", name)}
	}
	if err := next.Initialize(ctx); err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}

	c.mu.Lock()
	previous := c.engine
	c.engine = next
	c.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			logger.Warn("closing previous engine failed", "module", "coordinator", "action", "switch_engine", "resource", "engine", "result", "failed",
				"error", err, "correlation_id", correlationID)
		}
	}
	logger.Info("engine switched", "module", "coordinator", "action", "switch_engine", "resource", "engine", "result", "ok",
		"engine", name, "correlation_id", correlationID)
	return nil
}

// ProcessOptions overrides the defaults a single ProcessPending call
// runs with (spec §4.8's process_pending() keyword arguments).
type ProcessOptions struct {
	Limit         int  // 0 means "no limit": keep claiming until a batch comes back empty.
	BatchSize     int  // 0 uses the Coordinator's configured default.
	IncludeFailed bool // retry previously FAILED translations alongside PENDING ones.
}

// ProcessPending implements spec §4.8's process_pending(): claim
// batches for targetLang, split each claimed batch by context_hash
// (policy.ProcessBatch requires a context-homogeneous batch), run the
// Processing Policy over every sub-batch, and stream results out over
// the returned channel. The channel is closed when claiming is
// exhausted, ctx is cancelled, or opts.Limit results have been
// produced.
func (c *Coordinator) ProcessPending(ctx context.Context, targetLang string, opts ProcessOptions) (<-chan types.TranslationResult, <-chan error) {
	out := make(chan types.TranslationResult)
	errs := make(chan error, 1)

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = c.batchSize
	}

	go func() {
		defer close(out)
		defer close(errs)

		ctx, correlationID := withCorrelationID(ctx)
		processed := 0

		for {
			if ctx.Err() != nil {
				errs <- ctx.Err()
				return
			}

			claimSize := batchSize
			if opts.Limit > 0 {
				remaining := opts.Limit - processed
				if remaining <= 0 {
					return
				}
				if remaining < claimSize {
					claimSize = remaining
				}
			}

			claimed, err := c.store.ClaimPendingBatch(ctx, targetLang, claimSize, opts.IncludeFailed)
			if err != nil {
				errs <- fmt.Errorf("claim pending batch: %w", err)
				return
			}
			if len(claimed) == 0 {
				return
			}

			for _, subBatch := range groupByContextHash(claimed) {
				c.mu.RLock()
				eng := c.engine
				c.mu.RUnlock()
				if eng == nil {
					errs <- &ConfigurationError{Reason: "no active engine initialized"}
					return
				}

				results, err := policy.ProcessBatch(ctx, policy.Deps{
					Engine:      eng,
					Cache:       c.cache,
					RateLimiter: c.limit,
					Persistence: c.store,
					Retry:       c.retry,
				}, subBatch, targetLang)
				if err != nil {
					logger.Error("processing policy failed", "module", "coordinator", "action", "process_pending", "resource", "translation", "result", "failed",
						"error", err, "correlation_id", correlationID)
					errs <- err
					return
				}

				for _, res := range results {
					select {
					case out <- res:
						processed++
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
			}
		}
	}()

	return out, errs
}

func groupByContextHash(items []types.ContentItem) [][]types.ContentItem {
	order := make([]string, 0, 4)
	groups := make(map[string][]types.ContentItem, 4)
	for _, item := range items {
		if _, ok := groups[item.ContextHash]; !ok {
			order = append(order, item.ContextHash)
		}
		groups[item.ContextHash] = append(groups[item.ContextHash], item)
	}
	out := make([][]types.ContentItem, 0, len(order))
	for _, hash := range order {
		out = append(out, groups[hash])
	}
	return out
}

// RunGarbageCollection implements spec §4.8's run_garbage_collection().
func (c *Coordinator) RunGarbageCollection(ctx context.Context, retentionDays int, dryRun bool) (repository.GCCounts, error) {
	ctx, correlationID := withCorrelationID(ctx)

	if retentionDays <= 0 {
		retentionDays = c.gcRetentionDays
	}
	counts, err := c.store.GarbageCollect(ctx, retentionDays, dryRun)
	if err != nil {
		return repository.GCCounts{}, err
	}
	logger.Info("garbage collection ran", "module", "coordinator", "action", "run_garbage_collection", "resource", "gc", "result", "ok",
		"dry_run", dryRun, "deleted_jobs", counts.DeletedJobs, "deleted_content", counts.DeletedContent, "correlation_id", correlationID)
	return counts, nil
}
