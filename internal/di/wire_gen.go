//go:build !wireinject
// +build !wireinject

// This file is the injector for wire.go written in the shape wire emits.
// Running go generate replaces it with wire's own output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

package di

import (
	"context"

	"brain2-graph/internal/config"
	"brain2-graph/internal/interfaces/http/rest"
	"brain2-graph/internal/interfaces/http/rest/handlers"
)

// Injectors from wire.go:

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	atomicLevel := ProvideLogLevel(cfg)
	logger, cleanup, err := ProvideLogger(cfg, atomicLevel)
	if err != nil {
		return nil, nil, err
	}
	tracerProvider, cleanup2, err := ProvideTracing(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	collector := ProvideMetrics(cfg)
	graphRepository, cleanup3, err := ProvideGraphRepository(ctx, cfg, logger, collector)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	publisher, err := ProvideEventPublisher(ctx, cfg, logger, collector)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	service := ProvideGraphService(graphRepository, publisher, cfg, logger, collector, tracerProvider)
	errorHandler := ProvideErrorHandler(cfg, logger)
	graphHandler := handlers.NewGraphHandler(service, errorHandler, logger)
	router := rest.NewRouter(graphHandler, cfg, collector, logger)
	container := &Container{
		Config:     cfg,
		Logger:     logger,
		LogLevel:   atomicLevel,
		Tracing:    tracerProvider,
		Metrics:    collector,
		Repository: graphRepository,
		Publisher:  publisher,
		Service:    service,
		Router:     router,
	}
	return container, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
