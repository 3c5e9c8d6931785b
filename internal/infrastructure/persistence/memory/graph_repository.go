// Package memory is the in-process GraphRepository used in development and
// tests.
package memory

import (
	"context"
	"sync"

	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/repository"
)

// GraphRepository keeps graphs in a map.
type GraphRepository struct {
	mu     sync.RWMutex
	graphs map[string]graph.KnowledgeGraph
}

// NewGraphRepository returns an empty repository.
func NewGraphRepository() *GraphRepository {
	return &GraphRepository{graphs: make(map[string]graph.KnowledgeGraph)}
}

func (r *GraphRepository) Save(_ context.Context, g graph.KnowledgeGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[g.ID] = g.Clone()
	return nil
}

func (r *GraphRepository) FindByID(_ context.Context, id string) (graph.KnowledgeGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[id]
	if !ok {
		return graph.KnowledgeGraph{}, repository.NewNotFound(id)
	}
	return g.Clone(), nil
}

func (r *GraphRepository) List(_ context.Context) ([]graph.GraphSummary, error) {
	r.mu.RLock()
	summaries := make([]graph.GraphSummary, 0, len(r.graphs))
	for _, g := range r.graphs {
		summaries = append(summaries, g.Summary())
	}
	r.mu.RUnlock()

	repository.SortSummaries(summaries)
	return summaries, nil
}

func (r *GraphRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[id]; !ok {
		return repository.NewNotFound(id)
	}
	delete(r.graphs, id)
	return nil
}
