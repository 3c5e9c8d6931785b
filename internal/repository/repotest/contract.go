// Package repotest holds the behavioural test suite every GraphRepository
// driver runs.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/internal/repository"
)

// Graph builds a small graph with fixed UTC timestamps.
func Graph(id string, updated time.Time) graph.KnowledgeGraph {
	return graph.KnowledgeGraph{
		ID:         id,
		Name:       "Graph " + id,
		SourceText: "Alice works at Acme.",
		Entities: []graph.Entity{
			{ID: id + "-alice", Name: "Alice", Type: "person", Properties: map[string]string{"mentions": "1"}},
			{ID: id + "-acme", Name: "Acme", Type: "organization"},
		},
		Relationships: []graph.Relationship{
			{ID: id + "-r1", From: id + "-alice", To: id + "-acme", Type: "related_to", Weight: 1},
		},
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

// Run exercises repo. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) repository.GraphRepository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and find", func(t *testing.T) {
		repo := newRepo(t)
		want := Graph("g1", base)
		require.NoError(t, repo.Save(ctx, want))

		got, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("graph mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("find missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, "nope")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("save replaces", func(t *testing.T) {
		repo := newRepo(t)
		g := Graph("g1", base)
		require.NoError(t, repo.Save(ctx, g))

		g.Name = "Renamed"
		g.Entities = append(g.Entities, graph.Entity{ID: "g1-bob", Name: "Bob"})
		g.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, repo.Save(ctx, g))

		got, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Len(t, got.Entities, 3)
		assert.True(t, got.UpdatedAt.Equal(g.UpdatedAt))
	})

	t.Run("returned graph is a copy", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, Graph("g1", base)))

		got, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		got.Entities[0].Name = "Mallory"
		got.Entities[0].Properties["mentions"] = "99"

		again, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", again.Entities[0].Name)
		assert.Equal(t, "1", again.Entities[0].Properties["mentions"])
	})

	t.Run("empty graph", func(t *testing.T) {
		repo := newRepo(t)
		g := graph.KnowledgeGraph{ID: "empty", CreatedAt: base, UpdatedAt: base}
		require.NoError(t, repo.Save(ctx, g))

		got, err := repo.FindByID(ctx, "empty")
		require.NoError(t, err)
		assert.NotNil(t, got.Entities)
		assert.NotNil(t, got.Relationships)
		assert.Empty(t, got.Entities)
	})

	t.Run("list order", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, Graph("old", base)))
		require.NoError(t, repo.Save(ctx, Graph("new", base.Add(time.Hour))))
		require.NoError(t, repo.Save(ctx, Graph("b-tie", base)))

		summaries, err := repo.List(ctx)
		require.NoError(t, err)
		ids := make([]string, len(summaries))
		for i, s := range summaries {
			ids[i] = s.ID
		}
		assert.Equal(t, []string{"new", "b-tie", "old"}, ids)
		assert.Equal(t, 2, summaries[0].EntityCount)
		assert.Equal(t, 1, summaries[0].RelationshipCount)
		assert.Equal(t, "Graph new", summaries[0].Name)
	})

	t.Run("list empty", func(t *testing.T) {
		summaries, err := newRepo(t).List(ctx)
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, Graph("g1", base)))
		require.NoError(t, repo.Delete(ctx, "g1"))

		_, err := repo.FindByID(ctx, "g1")
		assert.True(t, apperrors.IsNotFound(err))

		summaries, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})

	t.Run("delete missing", func(t *testing.T) {
		err := newRepo(t).Delete(ctx, "nope")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}
