package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/repository"
)

const (
	graphKeyPrefix = "graph:"
	listKey        = "graphs:list"
)

// CachingGraphRepository is a cache-aside decorator: reads go through the
// cache, writes go to the inner repository first and then refresh or drop
// the affected keys.
type CachingGraphRepository struct {
	inner  repository.GraphRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingGraphRepository wraps inner.
func NewCachingGraphRepository(inner repository.GraphRepository, cache Cache, ttl time.Duration, logger *zap.Logger) *CachingGraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachingGraphRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func graphKey(id string) string {
	return graphKeyPrefix + id
}

func (r *CachingGraphRepository) Save(ctx context.Context, g graph.KnowledgeGraph) error {
	if err := r.inner.Save(ctx, g); err != nil {
		return err
	}

	if data, err := json.Marshal(g.Clone()); err == nil {
		r.set(ctx, graphKey(g.ID), data)
	}
	r.drop(ctx, listKey)
	return nil
}

func (r *CachingGraphRepository) FindByID(ctx context.Context, id string) (graph.KnowledgeGraph, error) {
	if data, found, err := r.cache.Get(ctx, graphKey(id)); err == nil && found {
		var g graph.KnowledgeGraph
		if err := json.Unmarshal(data, &g); err == nil {
			return g.Clone(), nil
		}
		r.drop(ctx, graphKey(id))
	}

	g, err := r.inner.FindByID(ctx, id)
	if err != nil {
		return graph.KnowledgeGraph{}, err
	}
	if data, err := json.Marshal(g); err == nil {
		r.set(ctx, graphKey(id), data)
	}
	return g, nil
}

func (r *CachingGraphRepository) List(ctx context.Context) ([]graph.GraphSummary, error) {
	if data, found, err := r.cache.Get(ctx, listKey); err == nil && found {
		var summaries []graph.GraphSummary
		if err := json.Unmarshal(data, &summaries); err == nil {
			return summaries, nil
		}
		r.drop(ctx, listKey)
	}

	summaries, err := r.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(summaries); err == nil {
		r.set(ctx, listKey, data)
	}
	return summaries, nil
}

func (r *CachingGraphRepository) Delete(ctx context.Context, id string) error {
	err := r.inner.Delete(ctx, id)
	// Drop even on failure: a NotFound means the cached copy is stale.
	r.drop(ctx, graphKey(id))
	r.drop(ctx, listKey)
	return err
}

// Cache failures never fail the operation.
func (r *CachingGraphRepository) set(ctx context.Context, key string, data []byte) {
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *CachingGraphRepository) drop(ctx context.Context, key string) {
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
