package graph

// ProcessTextInput asks the service to extract a graph from raw text.
type ProcessTextInput struct {
	Text        string `json:"text" validate:"notblank,max=50000"`
	Name        string `json:"name,omitempty" validate:"max=200"`
	MaxEntities int    `json:"maxEntities,omitempty" validate:"omitempty,min=1,max=500"`
}

// ExpandEntityInput asks for the neighbourhood of one entity of a stored graph.
type ExpandEntityInput struct {
	GraphID     string `json:"graphId" validate:"notblank,max=100"`
	EntityID    string `json:"entityId" validate:"notblank,max=100"`
	Depth       int    `json:"depth,omitempty" validate:"omitempty,min=1,max=3"`
	MaxEntities int    `json:"maxEntities,omitempty" validate:"omitempty,min=1,max=100"`
}

// ExecuteQueryInput runs a structured query against a stored graph.
type ExecuteQueryInput struct {
	GraphID   string      `json:"graphId" validate:"notblank,max=100"`
	QueryType QueryType   `json:"queryType" validate:"required,oneof=neighbors path search stats"`
	Params    QueryParams `json:"params,omitempty"`
}
