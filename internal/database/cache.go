package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/duetlabs/duet/internal/metrics"
	"github.com/duetlabs/duet/internal/narrative"
)

// analysisCache adapts the Store's cache table to the narrative.Cache
// interface so analysis results survive restarts.
type analysisCache struct {
	store Store
}

// NewAnalysisCache wraps a Store as a narrative.Cache.
func NewAnalysisCache(store Store) narrative.Cache {
	return &analysisCache{store: store}
}

func (c *analysisCache) Get(ctx context.Context, kind, key string) ([]byte, error) {
	payload, err := c.store.GetCacheEntry(ctx, kind, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, narrative.ErrNotCached
	}
	if err != nil {
		return nil, err
	}
	metrics.AnalysisCacheHits.WithLabelValues(kind).Inc()
	return payload, nil
}

func (c *analysisCache) Set(ctx context.Context, kind, key string, payload []byte) error {
	return c.store.SetCacheEntry(ctx, kind, key, payload)
}
