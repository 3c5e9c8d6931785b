package graphcache

import (
	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/querycache"
)

// Cache keys for graph data. Every key below extends the one it is listed
// under, so invalidating a key reaches everything nested beneath it:
//
//	All                      [graphs]
//	  Lists                  [graphs list]
//	  Details                [graphs detail]
//	    Detail(id)           [graphs detail <id>]
//	      Expansions(id)     [graphs detail <id> expansions]
//	        Expansion(id, e) [graphs detail <id> expansions <e>]
//	      Queries(id)        [graphs detail <id> query]
//	        Query(id, t, p)  [graphs detail <id> query <t> <params>]
//
// Graph data is only ever cached under keys built here.

// All is the root of every graph key.
func All() querycache.Key {
	return querycache.NewKey("graphs")
}

// Lists scopes graph list views.
func Lists() querycache.Key {
	return All().Append("list")
}

// Details scopes every single-graph entry.
func Details() querycache.Key {
	return All().Append("detail")
}

// Detail addresses one graph.
func Detail(graphID string) querycache.Key {
	return Details().Append(graphID)
}

// Expansions scopes the entity expansions of one graph.
func Expansions(graphID string) querycache.Key {
	return Detail(graphID).Append("expansions")
}

// Expansion addresses the expansion of one entity.
func Expansion(graphID, entityID string) querycache.Key {
	return Expansions(graphID).Append(entityID)
}

// Queries scopes the query results of one graph.
func Queries(graphID string) querycache.Key {
	return Detail(graphID).Append("query")
}

// Query addresses one query result. Parameters are encoded canonically, so
// equal parameter sets share a slot and distinct ones never collide.
func Query(graphID string, queryType graph.QueryType, params graph.QueryParams) querycache.Key {
	return Queries(graphID).Append(string(queryType), params.Canonical())
}
