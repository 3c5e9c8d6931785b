package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/querycache"
)

// print writes v as indented JSON or through the text renderer.
func (s *session) print(v any, text func(w io.Writer)) error {
	if s.settings.Output == OutputJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting output as JSON: %w", err)
		}
		fmt.Fprintln(s.out, string(data))
		return nil
	}
	text(s.out)
	return nil
}

func printGraph(w io.Writer, g graph.KnowledgeGraph) {
	fmt.Fprintf(w, "Graph %s\n", g.ID)
	if g.Name != "" {
		fmt.Fprintf(w, "  %-16s %s\n", "Name:", g.Name)
	}
	if !g.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  %-16s %s\n", "Updated:", g.UpdatedAt.Format(time.RFC3339))
	}
	printSubgraph(w, graph.Subgraph{Entities: g.Entities, Relationships: g.Relationships})
}

func printSubgraph(w io.Writer, sub graph.Subgraph) {
	names := make(map[string]string, len(sub.Entities))
	for _, e := range sub.Entities {
		names[e.ID] = e.Name
	}

	fmt.Fprintf(w, "\n  Entities (%d):\n", len(sub.Entities))
	for _, e := range sub.Entities {
		fmt.Fprintf(w, "    %-38s %s%s\n", e.ID, e.Name, typeSuffix(e.Type))
	}

	fmt.Fprintf(w, "\n  Relationships (%d):\n", len(sub.Relationships))
	for _, rel := range sub.Relationships {
		fmt.Fprintf(w, "    %s -> %s%s", label(names, rel.From), label(names, rel.To), typeSuffix(rel.Type))
		if rel.Weight != 0 {
			fmt.Fprintf(w, " weight=%g", rel.Weight)
		}
		fmt.Fprintln(w)
	}
}

func printSummaries(w io.Writer, graphs []graph.GraphSummary) {
	if len(graphs) == 0 {
		fmt.Fprintln(w, "No graphs found.")
		return
	}
	fmt.Fprintf(w, "%-38s %-8s %-8s %-20s %s\n", "ID", "ENTITIES", "RELS", "UPDATED", "NAME")
	for _, g := range graphs {
		fmt.Fprintf(w, "%-38s %-8d %-8d %-20s %s\n",
			g.ID, g.EntityCount, g.RelationshipCount, g.UpdatedAt.Format("2006-01-02 15:04:05"), g.Name)
	}
}

func printQueryResult(w io.Writer, result graph.QueryResult) {
	fmt.Fprintf(w, "Query %s on graph %s\n", result.QueryType, result.GraphID)
	if len(result.Params) > 0 {
		keys := make([]string, 0, len(result.Params))
		for k := range result.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+result.Params[k])
		}
		fmt.Fprintf(w, "  %-16s %s\n", "Params:", strings.Join(pairs, " "))
	}

	if result.Stats != nil {
		fmt.Fprintf(w, "  %-16s %d\n", "Entities:", result.Stats.EntityCount)
		fmt.Fprintf(w, "  %-16s %d\n", "Relationships:", result.Stats.RelationshipCount)
		fmt.Fprintf(w, "  %-16s %.2f\n", "Average degree:", result.Stats.AverageDegree)
		if len(result.Stats.MostConnected) > 0 {
			fmt.Fprintf(w, "  %-16s %s\n", "Most connected:", strings.Join(result.Stats.MostConnected, ", "))
		}
		return
	}

	if result.QueryType == graph.QueryPath {
		if len(result.Paths) == 0 {
			fmt.Fprintln(w, "  No path found.")
		}
		for _, p := range result.Paths {
			fmt.Fprintf(w, "  Path: %s\n", strings.Join(p, " -> "))
		}
	}
	printSubgraph(w, graph.Subgraph{Entities: result.Entities, Relationships: result.Relationships})
}

func printStats(w io.Writer, st querycache.Stats) {
	fmt.Fprintf(w, "\nCache: %d entries, %d hits, %d misses, %d fetches (%d failed), %d invalidations, %d rollbacks\n",
		st.Entries, st.Hits, st.Misses, st.Fetches, st.FetchErrors, st.Invalidations, st.Rollbacks)
}

func label(names map[string]string, id string) string {
	if name := names[id]; name != "" {
		return name
	}
	return id
}

func typeSuffix(t string) string {
	if t == "" {
		return ""
	}
	return " [" + t + "]"
}
