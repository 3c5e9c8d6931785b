package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"brain2-graph/internal/config"
	"brain2-graph/internal/domain/graph"
)

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func events(n int) []graph.Event {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]graph.Event, n)
	for i := range out {
		out[i] = graph.NewEvent(graph.EventGraphCreated, "g1", at, map[string]any{"entities": i})
	}
	return out
}

func TestEventBridgePublisher_Batches(t *testing.T) {
	client := &mockEventBridge{}
	var sizes []int
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*eventbridge.PutEventsInput).Entries))
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewEventBridgePublisher(client, "bus", "", nil)
	require.NoError(t, p.Publish(context.Background(), events(23)...))

	assert.Equal(t, []int{10, 10, 3}, sizes)
	client.AssertNumberOfCalls(t, "PutEvents", 3)
}

func TestEventBridgePublisher_EntryShape(t *testing.T) {
	client := &mockEventBridge{}
	var entry types.PutEventsRequestEntry
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			entry = args.Get(1).(*eventbridge.PutEventsInput).Entries[0]
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	e := events(1)[0]
	require.NoError(t, NewEventBridgePublisher(client, "bus", "", nil).Publish(context.Background(), e))

	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, "brain2.graph", aws.ToString(entry.Source))
	assert.Equal(t, graph.EventGraphCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"g1"}, entry.Resources)

	var detail graph.Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, e.ID, detail.ID)
	assert.Equal(t, "g1", detail.GraphID)
}

func TestEventBridgePublisher_Failures(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		client := &mockEventBridge{}
		client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		err := NewEventBridgePublisher(client, "bus", "", nil).Publish(context.Background(), events(12)...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
		client.AssertNumberOfCalls(t, "PutEvents", 1)
	})

	t.Run("rejected entries", func(t *testing.T) {
		client := &mockEventBridge{}
		client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("ok")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try again")},
			},
		}, nil)

		err := NewEventBridgePublisher(client, "bus", "", nil).Publish(context.Background(), events(2)...)
		require.EqualError(t, err, "failed to publish event batch: 1 events failed to publish")
	})

	t.Run("no events", func(t *testing.T) {
		client := &mockEventBridge{}
		require.NoError(t, NewEventBridgePublisher(client, "bus", "", nil).Publish(context.Background()))
		client.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
	})
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), events(2)...))
	entries := logs.FilterMessage("domain event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, graph.EventGraphCreated, entries[0].ContextMap()["eventType"])
}

type recordedEvent struct {
	eventType string
	failed    bool
}

type fakeRecorder struct{ got []recordedEvent }

func (r *fakeRecorder) RecordEvent(eventType string, err error) {
	r.got = append(r.got, recordedEvent{eventType, err != nil})
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...graph.Event) error { return errors.New("bus down") }

func TestMeteredPublisher(t *testing.T) {
	rec := &fakeRecorder{}
	require.NoError(t, NewMeteredPublisher(NopPublisher{}, rec).Publish(context.Background(), events(2)...))
	err := NewMeteredPublisher(failingPublisher{}, rec).Publish(context.Background(), events(1)...)
	require.Error(t, err)

	assert.Equal(t, []recordedEvent{
		{graph.EventGraphCreated, false},
		{graph.EventGraphCreated, false},
		{graph.EventGraphCreated, true},
	}, rec.got)
}

func TestNewPublisher(t *testing.T) {
	ctx := context.Background()

	p, err := NewPublisher(ctx, config.Events{Provider: config.EventsNone}, "us-east-1", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)

	p, err = NewPublisher(ctx, config.Events{Provider: config.EventsLog}, "us-east-1", nil, &fakeRecorder{})
	require.NoError(t, err)
	assert.IsType(t, &MeteredPublisher{}, p)

	_, err = NewPublisher(ctx, config.Events{Provider: "kafka"}, "us-east-1", nil, nil)
	assert.Error(t, err)
}
