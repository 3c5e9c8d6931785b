// Package messaging publishes graph domain events.
package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
)

// Publisher hands domain events to an event bus.
type Publisher interface {
	Publish(ctx context.Context, events ...graph.Event) error
}

// LogPublisher writes events to the log. It is the development default.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, events ...graph.Event) error {
	for _, e := range events {
		p.logger.Info("domain event",
			zap.String("eventType", e.Type),
			zap.String("eventID", e.ID),
			zap.String("graphID", e.GraphID),
			zap.Any("details", e.Details),
		)
	}
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...graph.Event) error { return nil }

// EventRecorder counts published events.
type EventRecorder interface {
	RecordEvent(eventType string, err error)
}

// MeteredPublisher records one metric per event handed to the inner publisher.
type MeteredPublisher struct {
	inner    Publisher
	recorder EventRecorder
}

func NewMeteredPublisher(inner Publisher, recorder EventRecorder) *MeteredPublisher {
	return &MeteredPublisher{inner: inner, recorder: recorder}
}

func (p *MeteredPublisher) Publish(ctx context.Context, events ...graph.Event) error {
	err := p.inner.Publish(ctx, events...)
	for _, e := range events {
		p.recorder.RecordEvent(e.Type, err)
	}
	if err != nil {
		return fmt.Errorf("publishing %d events: %w", len(events), err)
	}
	return nil
}
