//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"brain2-graph/internal/application/graphservice"
	"brain2-graph/internal/config"
	"brain2-graph/internal/interfaces/http/rest"
	"brain2-graph/internal/interfaces/http/rest/handlers"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideTracing,
	ProvideMetrics,
	ProvideGraphRepository,
	ProvideEventPublisher,
	ProvideGraphService,
	ProvideErrorHandler,
	handlers.NewGraphHandler,
	wire.Bind(new(handlers.GraphService), new(*graphservice.Service)),
	rest.NewRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
