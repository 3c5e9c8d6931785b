package di

import (
	"context"
	"time"

	"go.uber.org/zap"

	"brain2-graph/internal/application/graphservice"
	"brain2-graph/internal/config"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/internal/infrastructure/messaging"
	"brain2-graph/internal/infrastructure/persistence"
	"brain2-graph/internal/observability"
	"brain2-graph/internal/repository"
)

// ProvideLogLevel creates the level shared by the logger and the config
// watcher.
func ProvideLogLevel(cfg *config.Config) zap.AtomicLevel {
	return zap.NewAtomicLevelAt(cfg.Logging.ZapLevel())
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Logging.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build(zap.Fields(zap.String("environment", string(cfg.Environment))))
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideTracing installs the global tracer provider.
func ProvideTracing(cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideMetrics creates the Prometheus collector. It is always created;
// cfg.Metrics.Enabled only decides whether it is served.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideGraphRepository creates the configured graph repository
func ProvideGraphRepository(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
) (repository.GraphRepository, func(), error) {
	repo, closeRepo, err := persistence.NewGraphRepository(ctx, cfg.Storage, cfg.Cache, persistence.Options{
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := closeRepo(); err != nil {
			logger.Warn("Failed to close graph repository", zap.Error(err))
		}
	}
	return repo, cleanup, nil
}

// ProvideEventPublisher creates the configured event publisher
func ProvideEventPublisher(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
) (messaging.Publisher, error) {
	return messaging.NewPublisher(ctx, cfg.Events, cfg.Storage.Region, logger, metrics)
}

// ProvideGraphService creates the graph service
func ProvideGraphService(
	repo repository.GraphRepository,
	publisher messaging.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	tp *observability.TracerProvider,
) *graphservice.Service {
	limits := graphservice.Limits{
		MaxEntities:       cfg.Extraction.MaxEntities,
		ExpandMaxEntities: cfg.Extraction.ExpandMaxEntities,
		MinKeywordLength:  cfg.Extraction.MinKeywordLength,
	}
	return graphservice.New(repo, publisher, limits, logger,
		graphservice.WithMetrics(metrics),
		graphservice.WithTracer(tp.Tracer()),
	)
}

// ProvideErrorHandler creates the HTTP error handler. Outside production
// unclassified error details reach the caller.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *apperrors.ErrorHandler {
	return apperrors.NewErrorHandler(logger, !cfg.IsProduction())
}
