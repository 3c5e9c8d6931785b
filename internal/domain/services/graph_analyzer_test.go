package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-graph/internal/domain/graph"
)

// chain: a - b - c - d, plus isolated e
func chainGraph() graph.KnowledgeGraph {
	return graph.KnowledgeGraph{
		ID: "g",
		Entities: []graph.Entity{
			{ID: "a", Name: "Alice", Type: "entity"},
			{ID: "b", Name: "Bob", Type: "entity"},
			{ID: "c", Name: "Carol", Type: "entity", Properties: map[string]string{"role": "engineer"}},
			{ID: "d", Name: "Dave", Type: "entity"},
			{ID: "e", Name: "Eve", Type: "concept"},
		},
		Relationships: []graph.Relationship{
			{ID: "r1", From: "a", To: "b"},
			{ID: "r2", From: "c", To: "b"},
			{ID: "r3", From: "c", To: "d"},
		},
	}
}

func entityIDs(sub graph.Subgraph) []string {
	out := make([]string, len(sub.Entities))
	for i, e := range sub.Entities {
		out[i] = e.ID
	}
	return out
}

func TestNeighbors(t *testing.T) {
	a := NewGraphAnalyzer()
	g := chainGraph()

	sub, ok := a.Neighbors(g, "b", 1)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, entityIDs(sub))
	assert.Len(t, sub.Relationships, 2)

	sub, _ = a.Neighbors(g, "a", 2)
	assert.Equal(t, []string{"a", "b", "c"}, entityIDs(sub))

	sub, _ = a.Neighbors(g, "a", 3)
	assert.Equal(t, []string{"a", "b", "c", "d"}, entityIDs(sub))

	sub, _ = a.Neighbors(g, "e", 0)
	assert.Equal(t, []string{"e"}, entityIDs(sub))
	assert.Empty(t, sub.Relationships)

	_, ok = a.Neighbors(g, "zz", 1)
	assert.False(t, ok)
}

func TestShortestPath(t *testing.T) {
	a := NewGraphAnalyzer()
	g := chainGraph()

	path := a.ShortestPath(g, "a", "d")
	assert.Equal(t, []string{"a", "b", "c", "d"}, path)

	sub := a.PathSubgraph(g, path)
	assert.Equal(t, []string{"a", "b", "c", "d"}, entityIDs(sub))
	require.Len(t, sub.Relationships, 3)
	assert.Equal(t, "r2", sub.Relationships[1].ID)

	assert.Equal(t, []string{"c"}, a.ShortestPath(g, "c", "c"))
	assert.Nil(t, a.ShortestPath(g, "a", "e"))
	assert.Nil(t, a.ShortestPath(g, "a", "missing"))
}

func TestSearch(t *testing.T) {
	a := NewGraphAnalyzer()
	g := chainGraph()

	assert.Equal(t, []string{"b", "c", "e"}, entityIDs(a.Search(g, "o")), "type matches too")
	assert.Equal(t, []string{"c"}, entityIDs(a.Search(g, "ENGINEER")))
	assert.Equal(t, []string{"e"}, entityIDs(a.Search(g, "concept")))
	assert.Empty(t, a.Search(g, "  ").Entities)

	sub := a.Search(g, "a")
	assert.Equal(t, []string{"a", "c", "d"}, entityIDs(sub))
	assert.Equal(t, "r3", sub.Relationships[0].ID)
}

func TestStats(t *testing.T) {
	a := NewGraphAnalyzer()

	stats := a.Stats(chainGraph())
	assert.Equal(t, 5, stats.EntityCount)
	assert.Equal(t, 3, stats.RelationshipCount)
	assert.InDelta(t, 1.2, stats.AverageDegree, 1e-9)
	assert.Equal(t, []string{"b", "c", "a", "d"}, stats.MostConnected)

	empty := a.Stats(graph.KnowledgeGraph{})
	assert.Zero(t, empty.AverageDegree)
	assert.Empty(t, empty.MostConnected)
}
