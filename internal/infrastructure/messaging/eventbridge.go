package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
)

// EventBridge accepts at most 10 entries per PutEvents call.
const maxBatchSize = 10

// EventBridgeAPI is the subset of the EventBridge client the publisher calls.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgePublisher publishes events to an EventBridge bus.
type EventBridgePublisher struct {
	client    EventBridgeAPI
	eventBus  string
	source    string
	batchSize int
	logger    *zap.Logger
}

// NewEventBridgePublisher creates a publisher for eventBus.
func NewEventBridgePublisher(client EventBridgeAPI, eventBus, source string, logger *zap.Logger) *EventBridgePublisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if source == "" {
		source = "brain2.graph"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventBridgePublisher{
		client:    client,
		eventBus:  eventBus,
		source:    source,
		batchSize: maxBatchSize,
		logger:    logger,
	}
}

// Publish sends events in batches and stops at the first failed batch.
func (p *EventBridgePublisher) Publish(ctx context.Context, events ...graph.Event) error {
	for i := 0; i < len(events); i += p.batchSize {
		end := min(i+p.batchSize, len(events))
		if err := p.publishBatch(ctx, events[i:end]); err != nil {
			return fmt.Errorf("failed to publish event batch: %w", err)
		}
	}

	if len(events) > 0 {
		p.logger.Debug("published events",
			zap.Int("count", len(events)),
			zap.String("eventBus", p.eventBus),
		)
	}
	return nil
}

func (p *EventBridgePublisher) publishBatch(ctx context.Context, events []graph.Event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	for _, event := range events {
		detail, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBus),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.Type),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.OccurredAt),
			Resources:    []string{event.GraphID},
		})
	}

	output, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to put events: %w", err)
	}

	if output.FailedEntryCount > 0 {
		for i, entry := range output.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("event rejected",
					zap.String("eventType", events[i].Type),
					zap.String("code", aws.ToString(entry.ErrorCode)),
					zap.String("message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", output.FailedEntryCount)
	}
	return nil
}
