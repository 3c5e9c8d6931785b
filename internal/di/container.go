// Package di wires the graph server's dependencies.
package di

import (
	"net/http"

	"go.uber.org/zap"

	"brain2-graph/internal/application/graphservice"
	"brain2-graph/internal/config"
	"brain2-graph/internal/infrastructure/messaging"
	"brain2-graph/internal/interfaces/http/rest"
	"brain2-graph/internal/observability"
	"brain2-graph/internal/repository"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	LogLevel   zap.AtomicLevel
	Tracing    *observability.TracerProvider
	Metrics    *observability.Collector
	Repository repository.GraphRepository
	Publisher  messaging.Publisher
	Service    *graphservice.Service
	Router     *rest.Router
}

// Handler builds the HTTP handler serving the graph API.
func (c *Container) Handler() http.Handler {
	return c.Router.Setup()
}

// WatchConfig reloads configuration files in development. Only the log level
// applies live; other changes are logged and take effect on restart.
func (c *Container) WatchConfig(loader *config.Loader) (*config.Watcher, error) {
	watcher, err := config.NewWatcher(loader, c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(cfg *config.Config) {
		level := cfg.Logging.ZapLevel()
		if level == c.LogLevel.Level() {
			c.Logger.Info("Configuration changed; restart to apply")
			return
		}
		c.LogLevel.SetLevel(level)
		c.Logger.Info("Log level changed", zap.Stringer("level", level))
	})
	return watcher, nil
}
