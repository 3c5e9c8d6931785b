// Package graphapi is the typed HTTP client for the graph endpoints. Each call
// issues exactly one request, unwraps the {success, data, error} envelope and
// fails with a RequestFailed error on a non-2xx answer or a NetworkError when
// the transport fails.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/internal/validation"
	"brain2-graph/pkg/api"
)

// Fallback messages used when a failed response carries no readable error.
const (
	FallbackProcessText  = "Failed to process text"
	FallbackGetGraph     = "Failed to fetch graph"
	FallbackListGraphs   = "Failed to list graphs"
	FallbackExpandEntity = "Failed to expand entity"
	FallbackDeleteGraph  = "Failed to delete graph"
	FallbackExecuteQuery = "Failed to execute query"
)

const maxResponseBytes = 10 << 20

type operation struct {
	name     string
	fallback string
}

var (
	opProcessText  = operation{"ProcessText", FallbackProcessText}
	opGetGraph     = operation{"GetGraph", FallbackGetGraph}
	opListGraphs   = operation{"ListGraphs", FallbackListGraphs}
	opExpandEntity = operation{"ExpandEntity", FallbackExpandEntity}
	opDeleteGraph  = operation{"DeleteGraph", FallbackDeleteGraph}
	opExecuteQuery = operation{"ExecuteQuery", FallbackExecuteQuery}
)

// API is the set of graph endpoints. The cache layer depends on this
// interface so tests can substitute a fake server.
type API interface {
	ProcessText(ctx context.Context, in graph.ProcessTextInput) (graph.KnowledgeGraph, error)
	GetGraph(ctx context.Context, graphID string) (graph.KnowledgeGraph, error)
	ListGraphs(ctx context.Context) ([]graph.GraphSummary, error)
	ExpandEntity(ctx context.Context, in graph.ExpandEntityInput) (graph.Subgraph, error)
	DeleteGraph(ctx context.Context, graphID string) error
	ExecuteQuery(ctx context.Context, in graph.ExecuteQueryInput) (graph.QueryResult, error)
}

// Client talks to the graph endpoints over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	tracer     trace.Tracer
	logger     *zap.Logger
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider sets where client spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithBreaker configures the circuit breaker guarding the server.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = newBreaker(cfg, c)
	}
}

const tracerName = "brain2-graph/graphapi"

// DefaultTimeout bounds one request when no WithTimeout is given.
const DefaultTimeout = 30 * time.Second

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tracer:     otel.Tracer(tracerName),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = newBreaker(DefaultBreakerConfig("graph-api"), c)
	}
	return c
}

// ProcessText submits text for graph extraction. POST /api/graph/process
func (c *Client) ProcessText(ctx context.Context, in graph.ProcessTextInput) (graph.KnowledgeGraph, error) {
	var out graph.KnowledgeGraph
	if err := validation.Validate(in); err != nil {
		return out, err
	}
	err := c.do(ctx, opProcessText, http.MethodPost, "/api/graph/process", in, &out)
	return out, err
}

// GetGraph fetches a graph by id. GET /api/graph/{graphId}
func (c *Client) GetGraph(ctx context.Context, graphID string) (graph.KnowledgeGraph, error) {
	var out graph.KnowledgeGraph
	if strings.TrimSpace(graphID) == "" {
		return out, apperrors.Validation("INVALID_INPUT", "Invalid input: graphId is required").Build()
	}
	err := c.do(ctx, opGetGraph, http.MethodGet, "/api/graph/"+url.PathEscape(graphID), nil, &out)
	return out, err
}

// ListGraphs fetches graph summaries. GET /api/graph
func (c *Client) ListGraphs(ctx context.Context) ([]graph.GraphSummary, error) {
	out := []graph.GraphSummary{}
	err := c.do(ctx, opListGraphs, http.MethodGet, "/api/graph", nil, &out)
	return out, err
}

// ExpandEntity fetches the subgraph around one entity. POST /api/graph/expand
func (c *Client) ExpandEntity(ctx context.Context, in graph.ExpandEntityInput) (graph.Subgraph, error) {
	var out graph.Subgraph
	if err := validation.Validate(in); err != nil {
		return out, err
	}
	err := c.do(ctx, opExpandEntity, http.MethodPost, "/api/graph/expand", in, &out)
	return out, err
}

// DeleteGraph deletes a graph. DELETE /api/graph/{graphId}
func (c *Client) DeleteGraph(ctx context.Context, graphID string) error {
	if strings.TrimSpace(graphID) == "" {
		return apperrors.Validation("INVALID_INPUT", "Invalid input: graphId is required").Build()
	}
	return c.do(ctx, opDeleteGraph, http.MethodDelete, "/api/graph/"+url.PathEscape(graphID), nil, nil)
}

// ExecuteQuery runs a structured query. POST /api/graph/query
func (c *Client) ExecuteQuery(ctx context.Context, in graph.ExecuteQueryInput) (graph.QueryResult, error) {
	var out graph.QueryResult
	if err := validation.Validate(in); err != nil {
		return out, err
	}
	err := c.do(ctx, opExecuteQuery, http.MethodPost, "/api/graph/query", in, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op operation, method, path string, body, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "graphapi."+op.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		))
	defer span.End()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = apperrors.Unavailable("CIRCUIT_OPEN", "Graph service temporarily unavailable").
			WithOperation(op.name).
			WithCause(err).
			Build()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.UserMessage(err, op.fallback))
		c.logger.Debug("Graph API call failed",
			zap.String("operation", op.name),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op operation, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal("ENCODE_FAILED", op.fallback).
				WithOperation(op.name).
				WithCause(err).
				Build()
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Internal("BAD_REQUEST_URL", op.fallback).
			WithOperation(op.name).
			WithCause(err).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Network(op.fallback, err).
			WithOperation(op.name).
			WithDetails(err.Error()).
			Build()
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Network(op.fallback, err).
			WithOperation(op.name).
			WithDetails(err.Error()).
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.RequestFailed(resp.StatusCode, errorMessage(raw, op.fallback)).
			WithOperation(op.name).
			Build()
	}

	if out == nil {
		return nil
	}

	var envelope api.RawResponse
	if err := json.Unmarshal(raw, &envelope); err != nil || !envelope.HasData() {
		if err == nil {
			err = errors.New("response envelope has no data")
		}
		return apperrors.RequestFailed(resp.StatusCode, op.fallback).
			WithOperation(op.name).
			WithDetails(fmt.Sprintf("malformed response: %v", err)).
			WithCause(err).
			Build()
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return apperrors.RequestFailed(resp.StatusCode, op.fallback).
			WithOperation(op.name).
			WithDetails(fmt.Sprintf("malformed data: %v", err)).
			WithCause(err).
			Build()
	}
	return nil
}

// errorMessage reads the error field of a failure envelope, falling back when
// the body is not JSON or carries no message.
func errorMessage(body []byte, fallback string) string {
	var envelope api.RawResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(envelope.Error); msg != "" {
		return msg
	}
	return fallback
}
