// Package graph holds the knowledge-graph data model shared by the client
// cache layer and the graph service.
package graph

import "time"

// Entity is a node of a knowledge graph. Only ID takes part in identity.
type Entity struct {
	ID         string            `json:"id" dynamodbav:"id"`
	Name       string            `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Type       string            `json:"type,omitempty" dynamodbav:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty" dynamodbav:"properties,omitempty"`
}

// Relationship is a directed edge between two entities.
type Relationship struct {
	ID     string  `json:"id" dynamodbav:"id"`
	From   string  `json:"from" dynamodbav:"from"`
	To     string  `json:"to" dynamodbav:"to"`
	Type   string  `json:"type,omitempty" dynamodbav:"type,omitempty"`
	Weight float64 `json:"weight,omitempty" dynamodbav:"weight,omitempty"`
}

// KnowledgeGraph is identified by ID. Entities and Relationships never hold
// two elements with the same ID; their order is kept for display.
type KnowledgeGraph struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	SourceText    string         `json:"sourceText,omitempty"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Subgraph is the payload of an entity expansion.
type Subgraph struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// GraphSummary is the list-view projection of a graph.
type GraphSummary struct {
	ID                string    `json:"id"`
	Name              string    `json:"name,omitempty"`
	EntityCount       int       `json:"entityCount"`
	RelationshipCount int       `json:"relationshipCount"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Summary projects g for list views.
func (g KnowledgeGraph) Summary() GraphSummary {
	return GraphSummary{
		ID:                g.ID,
		Name:              g.Name,
		EntityCount:       len(g.Entities),
		RelationshipCount: len(g.Relationships),
		UpdatedAt:         g.UpdatedAt,
	}
}

// Clone returns a deep copy of g. Cached values are shared between readers,
// so anything that edits a graph works on a clone.
func (g KnowledgeGraph) Clone() KnowledgeGraph {
	out := g
	out.Entities = make([]Entity, len(g.Entities))
	for i, e := range g.Entities {
		out.Entities[i] = e.clone()
	}
	out.Relationships = append([]Relationship(nil), g.Relationships...)
	if out.Relationships == nil {
		out.Relationships = []Relationship{}
	}
	return out
}

func (e Entity) clone() Entity {
	if e.Properties == nil {
		return e
	}
	props := make(map[string]string, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	e.Properties = props
	return e
}

// Entity looks an entity up by id.
func (g KnowledgeGraph) Entity(id string) (Entity, bool) {
	for _, e := range g.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Merge returns a copy of g extended with the entities and relationships of
// sub whose ids g does not already contain. Existing elements keep their
// position; new ones follow in payload order. Applying the same subgraph
// twice yields the same result as applying it once.
func (g KnowledgeGraph) Merge(sub Subgraph) (KnowledgeGraph, int) {
	out := g.Clone()
	added := 0

	seenEntities := make(map[string]struct{}, len(out.Entities))
	for _, e := range out.Entities {
		seenEntities[e.ID] = struct{}{}
	}
	for _, e := range sub.Entities {
		if _, ok := seenEntities[e.ID]; ok {
			continue
		}
		seenEntities[e.ID] = struct{}{}
		out.Entities = append(out.Entities, e.clone())
		added++
	}

	seenRelationships := make(map[string]struct{}, len(out.Relationships))
	for _, r := range out.Relationships {
		seenRelationships[r.ID] = struct{}{}
	}
	for _, r := range sub.Relationships {
		if _, ok := seenRelationships[r.ID]; ok {
			continue
		}
		seenRelationships[r.ID] = struct{}{}
		out.Relationships = append(out.Relationships, r)
		added++
	}

	return out, added
}

// HasUniqueIDs reports whether g satisfies the id uniqueness invariant.
func (g KnowledgeGraph) HasUniqueIDs() bool {
	entityIDs := make(map[string]struct{}, len(g.Entities))
	for _, e := range g.Entities {
		if _, dup := entityIDs[e.ID]; dup {
			return false
		}
		entityIDs[e.ID] = struct{}{}
	}
	relIDs := make(map[string]struct{}, len(g.Relationships))
	for _, r := range g.Relationships {
		if _, dup := relIDs[r.ID]; dup {
			return false
		}
		relIDs[r.ID] = struct{}{}
	}
	return true
}
