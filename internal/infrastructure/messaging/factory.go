package messaging

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"brain2-graph/internal/config"
)

// NewPublisher builds the publisher named by cfg.Provider. recorder may be
// nil.
func NewPublisher(ctx context.Context, cfg config.Events, region string, logger *zap.Logger, recorder EventRecorder) (Publisher, error) {
	var p Publisher
	switch cfg.Provider {
	case config.EventsNone:
		p = NopPublisher{}
	case config.EventsLog, "":
		p = NewLogPublisher(logger)
	case config.EventsEventBridge:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		p = NewEventBridgePublisher(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName, cfg.Source, logger)
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Provider)
	}

	if recorder != nil {
		p = NewMeteredPublisher(p, recorder)
	}
	return p, nil
}
