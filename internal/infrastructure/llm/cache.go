package llm

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/metrics"
	"PerspectiveEngine/internal/ports"
)

// CachedAnalyzer keeps recent successful analysis answers in a bounded,
// time-expiring cache keyed by the submitted text. Failures are never cached.
type CachedAnalyzer struct {
	next       ports.TextAnalyzer
	entities   *expirable.LRU[string, domain.ExtractedEntities]
	embeddings *expirable.LRU[string, []float32]
}

var _ ports.TextAnalyzer = (*CachedAnalyzer)(nil)

// NewCachedAnalyzer wraps next with a cache of size entries per kind and the given TTL.
func NewCachedAnalyzer(next ports.TextAnalyzer, size int, ttl time.Duration) *CachedAnalyzer {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedAnalyzer{
		next:       next,
		entities:   expirable.NewLRU[string, domain.ExtractedEntities](size, nil, ttl),
		embeddings: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// ExtractEntities serves from cache or delegates.
func (c *CachedAnalyzer) ExtractEntities(ctx context.Context, text string) (domain.ExtractedEntities, error) {
	if cached, ok := c.entities.Get(text); ok {
		metrics.AnalysisCacheLookups.WithLabelValues("entities", "hit").Inc()
		return cached, nil
	}
	metrics.AnalysisCacheLookups.WithLabelValues("entities", "miss").Inc()

	entities, err := c.next.ExtractEntities(ctx, text)
	if err != nil {
		return domain.ExtractedEntities{}, err
	}
	c.entities.Add(text, entities)
	return entities, nil
}

// Embed serves from cache or delegates.
func (c *CachedAnalyzer) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.embeddings.Get(text); ok {
		metrics.AnalysisCacheLookups.WithLabelValues("embedding", "hit").Inc()
		return cached, nil
	}
	metrics.AnalysisCacheLookups.WithLabelValues("embedding", "miss").Inc()

	vector, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.embeddings.Add(text, vector)
	return vector, nil
}

// Len reports cached entries per kind.
func (c *CachedAnalyzer) Len() (entities, embeddings int) {
	return c.entities.Len(), c.embeddings.Len()
}
