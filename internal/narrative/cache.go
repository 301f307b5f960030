package narrative

import (
	"context"
	"errors"
)

// ErrNotCached is returned by Cache implementations on a miss.
var ErrNotCached = errors.New("not cached")

// Cache stores finished analysis payloads keyed by content hash. Identical
// input must yield the identical cached payload, bypassing re-analysis; the
// cache is an optimization and must never change output.
type Cache interface {
	// Get returns the cached payload for key, or ErrNotCached.
	Get(ctx context.Context, kind, key string) ([]byte, error)

	// Set stores the payload for key. Best effort; failures are logged by
	// callers, never propagated into analysis results.
	Set(ctx context.Context, kind, key string, payload []byte) error
}

// NopCache caches nothing. Used when no store is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string, string) ([]byte, error) { return nil, ErrNotCached }
func (NopCache) Set(context.Context, string, string, []byte) error  { return nil }
