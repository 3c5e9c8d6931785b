package graph

import (
	"sort"
	"strconv"
	"strings"
)

// QueryType names a structured graph query.
type QueryType string

const (
	QueryNeighbors QueryType = "neighbors"
	QueryPath      QueryType = "path"
	QuerySearch    QueryType = "search"
	QueryStats     QueryType = "stats"
)

// QueryParams are the parameters of a structured query.
type QueryParams map[string]string

// Canonical encodes p deterministically: equal parameter sets encode equally
// and distinct ones never collide, invalid UTF-8 included.
func (p QueryParams) Canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(p[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// Stats summarizes the shape of a graph.
type Stats struct {
	EntityCount       int      `json:"entityCount"`
	RelationshipCount int      `json:"relationshipCount"`
	AverageDegree     float64  `json:"averageDegree"`
	MostConnected     []string `json:"mostConnected,omitempty"`
}

// QueryResult is the answer to ExecuteQueryInput.
type QueryResult struct {
	GraphID       string         `json:"graphId"`
	QueryType     QueryType      `json:"queryType"`
	Params        QueryParams    `json:"params,omitempty"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Paths         [][]string     `json:"paths,omitempty"`
	Stats         *Stats         `json:"stats,omitempty"`
}
