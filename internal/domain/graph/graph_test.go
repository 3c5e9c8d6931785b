package graph

import (
	"fmt"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func entities(ids ...string) []Entity {
	out := make([]Entity, len(ids))
	for i, id := range ids {
		out[i] = Entity{ID: id}
	}
	return out
}

func entityIDs(es []Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestMerge_Overlap(t *testing.T) {
	// Arrange
	parent := KnowledgeGraph{ID: "g1", Entities: entities("a", "b")}
	sub := Subgraph{Entities: entities("b", "c")}

	// Act
	merged, added := parent.Merge(sub)

	// Assert
	assert.Equal(t, []string{"a", "b", "c"}, entityIDs(merged.Entities))
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"a", "b"}, entityIDs(parent.Entities), "receiver must not change")
}

func TestMerge_Relationships(t *testing.T) {
	parent := KnowledgeGraph{
		ID:            "g1",
		Entities:      entities("a", "b"),
		Relationships: []Relationship{{ID: "r1", From: "a", To: "b"}},
	}
	sub := Subgraph{
		Entities: entities("c"),
		Relationships: []Relationship{
			{ID: "r1", From: "a", To: "b"},
			{ID: "r2", From: "b", To: "c"},
		},
	}

	merged, added := parent.Merge(sub)

	require.Len(t, merged.Relationships, 2)
	assert.Equal(t, "r2", merged.Relationships[1].ID)
	assert.Equal(t, 2, added)
	assert.True(t, merged.HasUniqueIDs())
}

func TestMerge_DuplicatesInsidePayload(t *testing.T) {
	parent := KnowledgeGraph{ID: "g1"}
	merged, added := parent.Merge(Subgraph{Entities: entities("x", "x", "y")})

	assert.Equal(t, []string{"x", "y"}, entityIDs(merged.Entities))
	assert.Equal(t, 2, added)
}

func TestClone_IsDeep(t *testing.T) {
	g := KnowledgeGraph{
		ID:       "g1",
		Entities: []Entity{{ID: "a", Properties: map[string]string{"k": "v"}}},
	}

	c := g.Clone()
	c.Entities[0].Properties["k"] = "changed"
	c.Entities[0].Name = "changed"

	assert.Equal(t, "v", g.Entities[0].Properties["k"])
	assert.Empty(t, g.Entities[0].Name)
}

func TestSummary(t *testing.T) {
	g := KnowledgeGraph{
		ID:            "g1",
		Name:          "Acme",
		Entities:      entities("a", "b"),
		Relationships: []Relationship{{ID: "r1", From: "a", To: "b"}},
	}

	s := g.Summary()
	assert.Equal(t, GraphSummary{ID: "g1", Name: "Acme", EntityCount: 2, RelationshipCount: 1}, s)
}

func TestQueryParams_Canonical(t *testing.T) {
	a := QueryParams{"from": "alice", "to": "acme"}
	b := QueryParams{"to": "acme", "from": "alice"}
	c := QueryParams{"from": "alice", "to": "bob"}

	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.NotEqual(t, a.Canonical(), c.Canonical())
	assert.Equal(t, "{}", QueryParams(nil).Canonical())

	// separator characters inside values must not cause collisions
	assert.NotEqual(t,
		QueryParams{"a": "1,b:2"}.Canonical(),
		QueryParams{"a": "1", "b": "2"}.Canonical())

	// invalid UTF-8 is kept byte for byte
	assert.NotEqual(t,
		QueryParams{"term": "\xff"}.Canonical(),
		QueryParams{"term": "\xfe"}.Canonical())
	assert.NotEqual(t,
		QueryParams{"\xff": "x"}.Canonical(),
		QueryParams{"\ufffd": "x"}.Canonical())
}

// TestProperty_CanonicalMatchesEquality verifies that two parameter sets
// encode equally exactly when they hold the same pairs.
func TestProperty_CanonicalMatchesEquality(t *testing.T) {
	part := rapid.OneOf(
		rapid.SampledFrom([]string{"", "a", "\xff", "\xfe", "\ufffd", `"`, ":", ","}),
		rapid.Map(rapid.SliceOfN(rapid.Byte(), 0, 3), func(b []byte) string { return string(b) }),
	)
	params := rapid.Map(rapid.MapOfN(part, part, 0, 3), func(m map[string]string) QueryParams { return QueryParams(m) })

	rapid.Check(t, func(rt *rapid.T) {
		a := params.Draw(rt, "a")
		b := params.Draw(rt, "b")

		if maps.Equal(a, b) != (a.Canonical() == b.Canonical()) {
			rt.Fatalf("maps.Equal=%v but encodings %q and %q", maps.Equal(a, b), a.Canonical(), b.Canonical())
		}
	})
}

func drawGraph(rt *rapid.T, label string) KnowledgeGraph {
	ids := rapid.SliceOfDistinct(rapid.StringMatching(`[a-f]{1,2}`), func(s string) string { return s }).
		Draw(rt, label+"_entities")
	relIDs := rapid.SliceOfDistinct(rapid.IntRange(0, 20), func(i int) int { return i }).
		Draw(rt, label+"_relationships")

	g := KnowledgeGraph{ID: "g", Entities: entities(ids...)}
	for _, id := range relIDs {
		g.Relationships = append(g.Relationships, Relationship{ID: fmt.Sprintf("r%d", id)})
	}
	return g
}

func drawSubgraph(rt *rapid.T) Subgraph {
	ids := rapid.SliceOf(rapid.StringMatching(`[a-f]{1,2}`)).Draw(rt, "sub_entities")
	relIDs := rapid.SliceOf(rapid.IntRange(0, 20)).Draw(rt, "sub_relationships")

	sub := Subgraph{Entities: entities(ids...)}
	for _, id := range relIDs {
		sub.Relationships = append(sub.Relationships, Relationship{ID: fmt.Sprintf("r%d", id)})
	}
	return sub
}

// TestProperty_MergeIdempotent verifies that applying the same expansion twice
// gives the same graph as applying it once and never introduces duplicate ids.
func TestProperty_MergeIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		parent := drawGraph(rt, "parent")
		sub := drawSubgraph(rt)

		once, _ := parent.Merge(sub)
		twice, addedAgain := once.Merge(sub)

		if !once.HasUniqueIDs() {
			rt.Fatalf("merge introduced duplicate ids: %v", entityIDs(once.Entities))
		}
		if addedAgain != 0 {
			rt.Fatalf("second merge added %d elements", addedAgain)
		}
		if fmt.Sprint(entityIDs(once.Entities)) != fmt.Sprint(entityIDs(twice.Entities)) {
			rt.Fatalf("entities differ: %v vs %v", entityIDs(once.Entities), entityIDs(twice.Entities))
		}
		if len(once.Relationships) != len(twice.Relationships) {
			rt.Fatalf("relationships differ: %d vs %d", len(once.Relationships), len(twice.Relationships))
		}

		// existing elements keep their positions
		for i, e := range parent.Entities {
			if once.Entities[i].ID != e.ID {
				rt.Fatalf("entity %d moved: got %q want %q", i, once.Entities[i].ID, e.ID)
			}
		}
	})
}
