package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Event providers.
const (
	EventsLog         = "log"
	EventsEventBridge = "eventbridge"
	EventsNone        = "none"
)

// Config is the full service configuration.
type Config struct {
	Environment Environment `yaml:"environment"`
	Server      Server      `yaml:"server"`
	Storage     Storage     `yaml:"storage"`
	Cache       Cache       `yaml:"cache"`
	Events      Events      `yaml:"events"`
	Breaker     Breaker     `yaml:"breaker"`
	Extraction  Extraction  `yaml:"extraction"`
	Metrics     Metrics     `yaml:"metrics"`
	Tracing     Tracing     `yaml:"tracing"`
	Logging     Logging     `yaml:"logging"`
	CORS        CORS        `yaml:"cors"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestSize  int64         `yaml:"max_request_size"`
}

// Addr is the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Storage selects and configures the graph repository.
type Storage struct {
	Driver     string        `yaml:"driver"`
	SQLitePath string        `yaml:"sqlite_path"`
	TableName  string        `yaml:"table_name"`
	Region     string        `yaml:"region"`
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Cache configures the repository read cache.
type Cache struct {
	Enabled  bool          `yaml:"enabled"`
	MaxItems int           `yaml:"max_items"`
	TTL      time.Duration `yaml:"ttl"`
}

type Events struct {
	Provider     string `yaml:"provider"`
	EventBusName string `yaml:"event_bus_name"`
	Source       string `yaml:"source"`
}

// Breaker configures the circuit breaker in front of the graph service.
type Breaker struct {
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	FailureRatio float64       `yaml:"failure_ratio"`
	MinRequests  uint32        `yaml:"min_requests"`
}

// Extraction bounds text processing and expansion.
type Extraction struct {
	MaxEntities       int `yaml:"max_entities"`
	ExpandMaxEntities int `yaml:"expand_max_entities"`
	MinKeywordLength  int `yaml:"min_keyword_length"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Path      string `yaml:"path"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ZapLevel parses Level, falling back to info.
func (l Logging) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IsProduction reports whether the config targets production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	if c.Server.MaxRequestSize <= 0 {
		errs = append(errs, errors.New("server.max_request_size must be positive"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case DriverDynamoDB:
		if c.Storage.TableName == "" {
			errs = append(errs, errors.New("storage.table_name is required for the dynamodb driver"))
		}
		if c.Storage.Region == "" {
			errs = append(errs, errors.New("storage.region is required for the dynamodb driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver: %q", c.Storage.Driver))
	}

	if c.Cache.Enabled && (c.Cache.MaxItems <= 0 || c.Cache.TTL <= 0) {
		errs = append(errs, errors.New("cache.max_items and cache.ttl must be positive when caching is enabled"))
	}

	switch c.Events.Provider {
	case EventsLog, EventsNone:
	case EventsEventBridge:
		if c.Events.EventBusName == "" {
			errs = append(errs, errors.New("events.event_bus_name is required for eventbridge"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events provider: %q", c.Events.Provider))
	}

	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		errs = append(errs, fmt.Errorf("breaker.failure_ratio must be in (0, 1], got %v", c.Breaker.FailureRatio))
	}

	if c.Extraction.MaxEntities < 1 || c.Extraction.ExpandMaxEntities < 1 {
		errs = append(errs, errors.New("extraction limits must be at least 1"))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be in [0, 1], got %v", c.Tracing.SampleRate))
	}

	if c.IsProduction() {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, errors.New("wildcard CORS origin is not allowed in production"))
				break
			}
		}
	}

	return errors.Join(errs...)
}

// applyEnvironmentDefaults tightens settings that differ per environment and
// were not set explicitly.
func (c *Config) applyEnvironmentDefaults() {
	switch c.Environment {
	case Production:
		if c.Logging.Format == "" {
			c.Logging.Format = "json"
		}
		if c.Tracing.SampleRate == 0 {
			c.Tracing.SampleRate = 0.01
		}
	case Staging:
		if c.Tracing.SampleRate == 0 {
			c.Tracing.SampleRate = 0.1
		}
	default:
		if c.Logging.Format == "" {
			c.Logging.Format = "console"
		}
		if c.Tracing.SampleRate == 0 {
			c.Tracing.SampleRate = 1.0
		}
	}
}

func getEnvironment() Environment {
	switch env := Environment(strings.ToLower(os.Getenv("ENVIRONMENT"))); env {
	case Staging, Production:
		return env
	default:
		return Development
	}
}
