package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(TracingConfig{Environment: "development"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	assert.Equal(t, "brain2-graph", tp.config.ServiceName)
	assert.Equal(t, 1.0, tp.config.SampleRate)

	_, span := tp.Tracer().Start(context.Background(), "test")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 0.01, sampleRate("production"))
	assert.Equal(t, 0.1, sampleRate("staging"))
	assert.Equal(t, 1.0, sampleRate("development"))
}
