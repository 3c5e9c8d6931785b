package repository

import (
	"slices"
	"strings"

	"brain2-graph/internal/domain/graph"
)

func sortSummaries(summaries []graph.GraphSummary) {
	slices.SortFunc(summaries, func(a, b graph.GraphSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
