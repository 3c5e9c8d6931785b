// Package repository defines the storage contract for knowledge graphs.
package repository

import (
	"context"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
)

// GraphRepository persists whole knowledge graphs. Implementations return
// deep copies, so callers may edit what they read.
type GraphRepository interface {
	// Save inserts or replaces the graph with g.ID.
	Save(ctx context.Context, g graph.KnowledgeGraph) error

	// FindByID returns a NotFound error when no graph has id.
	FindByID(ctx context.Context, id string) (graph.KnowledgeGraph, error)

	// List returns summaries, most recently updated first.
	List(ctx context.Context) ([]graph.GraphSummary, error)

	// Delete returns a NotFound error when no graph has id.
	Delete(ctx context.Context, id string) error
}

// NewNotFound is the error every driver returns for a missing graph.
func NewNotFound(id string) error {
	return apperrors.NotFound("GRAPH_NOT_FOUND", "Graph not found").
		WithResource("graph").
		WithDetails(id).
		Build()
}

// SortSummaries orders summaries the way List promises: newest update first,
// ties broken by id.
func SortSummaries(summaries []graph.GraphSummary) {
	sortSummaries(summaries)
}
