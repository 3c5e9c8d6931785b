// Package persistence assembles the graph repository from a storage driver
// and its decorators.
package persistence

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/internal/repository"
)

// MetricsRecorder receives one call per repository operation.
type MetricsRecorder interface {
	RecordDB(operation, driver string, duration time.Duration, err error)
}

// InstrumentedGraphRepository logs, times and traces every call to the
// wrapped repository.
type InstrumentedGraphRepository struct {
	inner         repository.GraphRepository
	driver        string
	logger        *zap.Logger
	metrics       MetricsRecorder
	tracer        trace.Tracer
	slowThreshold time.Duration
}

// NewInstrumentedGraphRepository wraps inner. metrics may be nil.
func NewInstrumentedGraphRepository(inner repository.GraphRepository, driver string, logger *zap.Logger, metrics MetricsRecorder) *InstrumentedGraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedGraphRepository{
		inner:         inner,
		driver:        driver,
		logger:        logger.Named("graph_repository"),
		metrics:       metrics,
		tracer:        otel.Tracer("brain2-graph/persistence"),
		slowThreshold: time.Second,
	}
}

func (r *InstrumentedGraphRepository) observe(ctx context.Context, operation, graphID string, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "repository."+operation, trace.WithAttributes(
		attribute.String("db.system", r.driver),
		attribute.String("graph.id", graphID),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if r.metrics != nil {
		r.metrics.RecordDB(operation, r.driver, duration, err)
	}

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("driver", r.driver),
		zap.Duration("duration", duration),
	}
	if graphID != "" {
		fields = append(fields, zap.String("graphID", graphID))
	}

	switch {
	case err != nil && apperrors.IsNotFound(err):
		r.logger.Debug("graph not found", fields...)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("repository operation failed", append(fields, zap.Error(err))...)
	case duration > r.slowThreshold:
		r.logger.Warn("slow repository operation", fields...)
	default:
		r.logger.Debug("repository operation completed", fields...)
	}
	return err
}

func (r *InstrumentedGraphRepository) Save(ctx context.Context, g graph.KnowledgeGraph) error {
	return r.observe(ctx, "save", g.ID, func(ctx context.Context) error {
		return r.inner.Save(ctx, g)
	})
}

func (r *InstrumentedGraphRepository) FindByID(ctx context.Context, id string) (graph.KnowledgeGraph, error) {
	var g graph.KnowledgeGraph
	err := r.observe(ctx, "find", id, func(ctx context.Context) error {
		var err error
		g, err = r.inner.FindByID(ctx, id)
		return err
	})
	return g, err
}

func (r *InstrumentedGraphRepository) List(ctx context.Context) ([]graph.GraphSummary, error) {
	var summaries []graph.GraphSummary
	err := r.observe(ctx, "list", "", func(ctx context.Context) error {
		var err error
		summaries, err = r.inner.List(ctx)
		return err
	})
	return summaries, err
}

func (r *InstrumentedGraphRepository) Delete(ctx context.Context, id string) error {
	return r.observe(ctx, "delete", id, func(ctx context.Context) error {
		return r.inner.Delete(ctx, id)
	})
}
