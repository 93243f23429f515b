// Package cache provides content-addressed caching for resolution results.
//
// Resolution runs are deterministic: the same document resolved with the
// same options always produces the same placement and report. That makes
// runs safe to cache on a hash of their inputs. The package ships three
// backends - a file cache for the CLI, a Redis cache for the API server,
// and a null cache for disabling caching - behind one interface.
package cache

import (
	"context"
	"time"
)

// TTL values for the different cached artifact classes.
const (
	// TTLResolution is the lifetime of cached resolution results.
	TTLResolution = 24 * time.Hour

	// TTLRender is the lifetime of cached render artifacts.
	TTLRender = 24 * time.Hour

	// TTLForever disables expiration.
	TTLForever = time.Duration(0)
)

// Cache is the storage interface shared by all backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL means no
	// expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ResolutionKeyOpts carries the engine options that affect a resolution
// result and therefore belong in its cache key.
type ResolutionKeyOpts struct {
	Tolerance       float64
	MaxIterations   int
	CascadeFraction float64
	Thresholds      [4]int
}

// RenderKeyOpts carries the options that affect a rendered artifact.
type RenderKeyOpts struct {
	Format string
}

// Keyer generates cache keys for the cacheable stages.
type Keyer interface {
	// ResolutionKey generates a key for a resolved document.
	ResolutionKey(docHash string, opts ResolutionKeyOpts) string

	// RenderKey generates a key for a rendered artifact.
	RenderKey(docHash string, opts RenderKeyOpts) string
}

// DefaultKeyer is the standard key scheme: a stage prefix plus a SHA-256
// hash over the document hash and the stage options.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// ResolutionKey generates a key for a resolved document.
func (k *DefaultKeyer) ResolutionKey(docHash string, opts ResolutionKeyOpts) string {
	return hashKey("resolution", docHash, opts)
}

// RenderKey generates a key for a rendered artifact.
func (k *DefaultKeyer) RenderKey(docHash string, opts RenderKeyOpts) string {
	return hashKey("render", docHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
