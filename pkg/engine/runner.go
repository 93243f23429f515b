package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kholzweiler/planfreeze/pkg/cache"
	"github.com/kholzweiler/planfreeze/pkg/model"
	"github.com/kholzweiler/planfreeze/pkg/observability"
)

// Runner encapsulates document resolution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store resolution results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Result bundles the resolved document with the report of the run that
// produced it. This is the unit stored in the resolution cache.
type Result struct {
	Document model.Document `json:"document"`
	Report   *Report        `json:"report"`

	// DocHash identifies the input document; computed, never cached.
	DocHash string `json:"-"`

	// CacheInfo reports whether the result came from the cache.
	CacheInfo CacheInfo `json:"-"`
}

// CacheInfo tracks cache hits for a runner execution.
type CacheInfo struct {
	ResolutionHit bool `json:"resolution_hit"`
}

// Execute resolves a document with caching. On a cache hit the engine is
// never invoked and the archived document and report are returned as-is.
func (r *Runner) Execute(ctx context.Context, doc model.Document, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}

	docData, err := model.MarshalDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize document for cache key: %w", err)
	}
	docHash := cache.Hash(docData)
	cacheKey := r.Keyer.ResolutionKey(docHash, opts.ResolutionKeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				observability.Cache().OnCacheHit(ctx, "resolution")
				cached.DocHash = docHash
				cached.CacheInfo.ResolutionHit = true
				r.Logger.Debug("resolution cache hit", "doc", docHash[:12])
				return &cached, nil
			}
			// Corrupt entry, fall through to recompute.
		}
		observability.Cache().OnCacheMiss(ctx, "resolution")
	}

	reg, err := doc.ToRegistry()
	if err != nil {
		return nil, fmt.Errorf("materialize document: %w", err)
	}

	start := time.Now()
	report, err := Resolve(ctx, reg, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Document: model.FromRegistry(reg),
		Report:   report,
		DocHash:  docHash,
	}

	r.Logger.Info("resolved document",
		"elements", len(result.Document.Elements),
		"reason", report.Reason,
		"iterations", report.Iterations,
		"duration", time.Since(start))

	// Cache the result
	if !opts.Refresh {
		if data, err := json.Marshal(result); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLResolution); err == nil {
				observability.Cache().OnCacheSet(ctx, "resolution", len(data))
			}
		}
	}

	return result, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// ResolutionKeyOpts extracts the options that affect the resolution result
// for cache key generation. Runtime-only fields are excluded.
func (o Options) ResolutionKeyOpts() cache.ResolutionKeyOpts {
	th := DefaultThresholds()
	if o.Thresholds != nil {
		th = *o.Thresholds
	}
	return cache.ResolutionKeyOpts{
		Tolerance:       o.Tolerance,
		MaxIterations:   o.MaxIterations,
		CascadeFraction: o.CascadeFraction,
		Thresholds:      [4]int{th.Required, th.Strong, th.Medium, th.Weak},
	}
}
