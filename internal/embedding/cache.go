package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jbpayton/sophia-ams/internal/store"
)

// CachedEmbedder decorates an Embedder with two cache levels: an in-process
// TTL cache for hot texts and the SQLite embedding_cache table for
// persistence across restarts.
type CachedEmbedder struct {
	inner  Embedder
	hot    *gocache.Cache
	cold   *store.EmbeddingCacheStore
	model  string
	dim    int
	logger *slog.Logger
}

func NewCachedEmbedder(inner Embedder, cold *store.EmbeddingCacheStore, model string, dim int, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbedder{
		inner:  inner,
		hot:    gocache.New(ttl, 2*ttl),
		cold:   cold,
		model:  model,
		dim:    dim,
		logger: logger,
	}
}

// Embed returns the embedding for text, consulting the hot cache, then the
// SQLite cache, then the wrapped embedder. Cache write failures are logged
// and never fail the embed.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(text)

	if v, ok := e.hot.Get(hash); ok {
		return v.([]float32), nil
	}

	entry, err := e.cold.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil && entry.Model == e.model {
		vec := BytesToFloat32(entry.Embedding)
		e.hot.SetDefault(hash, vec)
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.hot.SetDefault(hash, vec)
	if err := e.cold.Put(ctx, &store.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   Float32ToBytes(vec),
		Dimension:   e.dim,
		Model:       e.model,
	}); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}

	return vec, nil
}

// HealthCheck probes the wrapped embedder when it has a remote dependency.
func (e *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
