package persistence

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"brain2-graph/internal/config"
	"brain2-graph/internal/infrastructure/persistence/cache"
	"brain2-graph/internal/infrastructure/persistence/dynamodb"
	"brain2-graph/internal/infrastructure/persistence/memory"
	"brain2-graph/internal/infrastructure/persistence/sqlite"
	"brain2-graph/internal/repository"
)

// Options carries what the factory needs besides configuration.
type Options struct {
	Logger  *zap.Logger
	Metrics MetricsRecorder

	// DynamoDB overrides the client built from the AWS default config.
	DynamoDB dynamodb.API
}

// NewGraphRepository builds the configured driver wrapped in the read cache
// (when enabled) and instrumentation. The returned cleanup releases driver
// resources and is never nil.
func NewGraphRepository(ctx context.Context, storage config.Storage, cacheCfg config.Cache, opts Options) (repository.GraphRepository, func() error, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cleanup := func() error { return nil }

	var base repository.GraphRepository
	switch storage.Driver {
	case config.DriverMemory, "":
		base = memory.NewGraphRepository()

	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, storage.SQLitePath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		base = repo
		cleanup = repo.Close

	case config.DriverDynamoDB:
		client := opts.DynamoDB
		if client == nil {
			c, err := newDynamoDBClient(ctx, storage)
			if err != nil {
				return nil, cleanup, err
			}
			client = c
		}
		base = dynamodb.NewGraphRepository(client, storage.TableName, logger)

	default:
		return nil, cleanup, fmt.Errorf("unsupported storage driver: %s", storage.Driver)
	}

	repo := base
	if cacheCfg.Enabled {
		memCache := cache.NewMemoryCache(cacheCfg.MaxItems, 0, logger)
		if cacheCfg.TTL > 0 {
			sweepCtx, stopSweep := context.WithCancel(context.Background())
			memCache.StartCleanup(sweepCtx, cacheCfg.TTL)
			closeDriver := cleanup
			cleanup = func() error {
				stopSweep()
				return closeDriver()
			}
		}
		repo = cache.NewCachingGraphRepository(repo, memCache, cacheCfg.TTL, logger)
	}

	logger.Info("graph repository ready",
		zap.String("driver", storage.Driver),
		zap.Bool("cache", cacheCfg.Enabled),
	)
	return NewInstrumentedGraphRepository(repo, storage.Driver, logger, opts.Metrics), cleanup, nil
}

func newDynamoDBClient(ctx context.Context, storage config.Storage) (*awsDynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(storage.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsDynamodb.NewFromConfig(awsCfg, func(o *awsDynamodb.Options) {
		if storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(storage.Endpoint)
		}
	}), nil
}
