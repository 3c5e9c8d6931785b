package services

import (
	"slices"
	"strings"

	"brain2-graph/internal/domain/graph"
)

// mostConnectedLimit caps Stats.MostConnected.
const mostConnectedLimit = 5

// GraphAnalyzer answers structured queries over one graph. Relationships are
// treated as undirected for traversal.
type GraphAnalyzer struct{}

func NewGraphAnalyzer() *GraphAnalyzer {
	return &GraphAnalyzer{}
}

// buildAdjacencyList maps each entity id to its neighbours in relationship
// order, without duplicates.
func (a *GraphAnalyzer) buildAdjacencyList(g graph.KnowledgeGraph) map[string][]string {
	adjacency := make(map[string][]string, len(g.Entities))
	link := func(from, to string) {
		if !slices.Contains(adjacency[from], to) {
			adjacency[from] = append(adjacency[from], to)
		}
	}
	for _, r := range g.Relationships {
		if r.From == r.To {
			continue
		}
		link(r.From, r.To)
		link(r.To, r.From)
	}
	return adjacency
}

// Neighbors returns the entities within depth hops of entityID (the entity
// itself included) and the relationships among them. ok is false when the
// entity does not exist.
func (a *GraphAnalyzer) Neighbors(g graph.KnowledgeGraph, entityID string, depth int) (graph.Subgraph, bool) {
	if _, ok := g.Entity(entityID); !ok {
		return graph.Subgraph{}, false
	}
	if depth < 1 {
		depth = 1
	}

	adjacency := a.buildAdjacencyList(g)
	visited := map[string]bool{entityID: true}
	frontier := []string{entityID}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			for _, n := range adjacency[id] {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		frontier = next
	}

	return induced(g, visited), true
}

// ShortestPath returns the entity ids of a shortest path from one entity to
// another, or nil when they are not connected.
func (a *GraphAnalyzer) ShortestPath(g graph.KnowledgeGraph, from, to string) []string {
	if _, ok := g.Entity(from); !ok {
		return nil
	}
	if _, ok := g.Entity(to); !ok {
		return nil
	}
	if from == to {
		return []string{from}
	}

	adjacency := a.buildAdjacencyList(g)
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range adjacency[id] {
			if _, seen := parent[n]; seen {
				continue
			}
			parent[n] = id
			if n == to {
				return walkBack(parent, from, to)
			}
			queue = append(queue, n)
		}
	}
	return nil
}

func walkBack(parent map[string]string, from, to string) []string {
	path := []string{to}
	for id := to; id != from; {
		id = parent[id]
		path = append(path, id)
	}
	slices.Reverse(path)
	return path
}

// PathSubgraph returns the entities on path and one relationship per hop.
func (a *GraphAnalyzer) PathSubgraph(g graph.KnowledgeGraph, path []string) graph.Subgraph {
	sub := graph.Subgraph{Entities: []graph.Entity{}, Relationships: []graph.Relationship{}}
	for i, id := range path {
		if e, ok := g.Entity(id); ok {
			sub.Entities = append(sub.Entities, e)
		}
		if i == 0 {
			continue
		}
		prev := path[i-1]
		for _, r := range g.Relationships {
			if (r.From == prev && r.To == id) || (r.From == id && r.To == prev) {
				sub.Relationships = append(sub.Relationships, r)
				break
			}
		}
	}
	return sub
}

// Search returns entities whose name, type or property values contain term,
// ignoring case, plus the relationships among them.
func (a *GraphAnalyzer) Search(g graph.KnowledgeGraph, term string) graph.Subgraph {
	term = strings.ToLower(strings.TrimSpace(term))
	matched := make(map[string]bool)
	if term != "" {
		for _, e := range g.Entities {
			if matches(e, term) {
				matched[e.ID] = true
			}
		}
	}
	return induced(g, matched)
}

func matches(e graph.Entity, term string) bool {
	if strings.Contains(strings.ToLower(e.Name), term) || strings.Contains(strings.ToLower(e.Type), term) {
		return true
	}
	for _, v := range e.Properties {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// Stats summarizes g. MostConnected lists up to five entity ids by degree,
// ties broken by graph order.
func (a *GraphAnalyzer) Stats(g graph.KnowledgeGraph) graph.Stats {
	stats := graph.Stats{
		EntityCount:       len(g.Entities),
		RelationshipCount: len(g.Relationships),
	}
	if len(g.Entities) == 0 {
		return stats
	}
	stats.AverageDegree = float64(2*len(g.Relationships)) / float64(len(g.Entities))

	degree := make(map[string]int, len(g.Entities))
	for _, r := range g.Relationships {
		degree[r.From]++
		degree[r.To]++
	}

	ids := make([]string, 0, len(g.Entities))
	for _, e := range g.Entities {
		if degree[e.ID] > 0 {
			ids = append(ids, e.ID)
		}
	}
	slices.SortStableFunc(ids, func(x, y string) int {
		return degree[y] - degree[x]
	})
	if len(ids) > mostConnectedLimit {
		ids = ids[:mostConnectedLimit]
	}
	stats.MostConnected = ids
	return stats
}

// induced keeps the entities in ids, in graph order, and the relationships
// with both ends in ids.
func induced(g graph.KnowledgeGraph, ids map[string]bool) graph.Subgraph {
	sub := graph.Subgraph{Entities: []graph.Entity{}, Relationships: []graph.Relationship{}}
	for _, e := range g.Entities {
		if ids[e.ID] {
			sub.Entities = append(sub.Entities, e)
		}
	}
	for _, r := range g.Relationships {
		if ids[r.From] && ids[r.To] {
			sub.Relationships = append(sub.Relationships, r)
		}
	}
	return sub
}
