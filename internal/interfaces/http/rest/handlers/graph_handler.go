// Package handlers adapts the graph service to HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/pkg/api"
)

// GraphService is what the handlers need from the application layer.
type GraphService interface {
	ProcessText(ctx context.Context, in graph.ProcessTextInput) (graph.KnowledgeGraph, error)
	GetGraph(ctx context.Context, graphID string) (graph.KnowledgeGraph, error)
	ListGraphs(ctx context.Context) ([]graph.GraphSummary, error)
	ExpandEntity(ctx context.Context, in graph.ExpandEntityInput) (graph.Subgraph, error)
	DeleteGraph(ctx context.Context, graphID string) error
	ExecuteQuery(ctx context.Context, in graph.ExecuteQueryInput) (graph.QueryResult, error)
}

// GraphHandler handles graph-related HTTP requests
type GraphHandler struct {
	service GraphService
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(service GraphService, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// ProcessText handles POST /api/graph/process
func (h *GraphHandler) ProcessText(w http.ResponseWriter, r *http.Request) {
	var in graph.ProcessTextInput
	if !h.decode(w, r, &in) {
		return
	}

	g, err := h.service.ProcessText(r.Context(), in)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, g)
}

// ListGraphs handles GET /api/graph
func (h *GraphHandler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListGraphs(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, summaries)
}

// GetGraph handles GET /api/graph/{graphId}
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.GetGraph(r.Context(), chi.URLParam(r, "graphId"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, g)
}

// DeleteGraph handles DELETE /api/graph/{graphId}
func (h *GraphHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	graphID := chi.URLParam(r, "graphId")
	if err := h.service.DeleteGraph(r.Context(), graphID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"graphId": graphID,
		"deleted": true,
	})
}

// ExpandEntity handles POST /api/graph/expand
func (h *GraphHandler) ExpandEntity(w http.ResponseWriter, r *http.Request) {
	var in graph.ExpandEntityInput
	if !h.decode(w, r, &in) {
		return
	}

	sub, err := h.service.ExpandEntity(r.Context(), in)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, sub)
}

// ExecuteQuery handles POST /api/graph/query
func (h *GraphHandler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	var in graph.ExecuteQueryInput
	if !h.decode(w, r, &in) {
		return
	}

	result, err := h.service.ExecuteQuery(r.Context(), in)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, result)
}

// decode reads a JSON body into dst and answers 400 or 413 when it cannot.
func (h *GraphHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		err = apperrors.Validation("REQUEST_TOO_LARGE", "Request body too large").
			WithStatus(http.StatusRequestEntityTooLarge).
			WithCause(err).
			Build()
	case errors.Is(err, io.EOF):
		err = apperrors.Validation("INVALID_JSON", "Request body is required").Build()
	default:
		err = apperrors.Validation("INVALID_JSON", "Invalid request body").
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}
	h.errors.Handle(w, r, err)
	return false
}
