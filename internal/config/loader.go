package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles loading configuration from multiple sources.
type Loader struct {
	// basePath is the root directory for configuration files
	basePath string

	// environment is the current deployment environment
	environment Environment

	// sources tracks where configuration was loaded from
	sources []string

	// fileLoaders are tried in order for each file name
	fileLoaders []FileLoader

	// getenv is os.Getenv outside tests
	getenv func(string) string
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target any) error
	Extension() string
}

// NewLoader creates a configuration loader reading from basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}

	return &Loader{
		basePath:    basePath,
		environment: env,
		fileLoaders: []FileLoader{YAMLLoader{ext: "yaml"}, YAMLLoader{ext: "yml"}},
		getenv:      os.Getenv,
	}
}

// Load applies, from lowest to highest priority: defaults, base file,
// environment file, local overrides (development only) and environment
// variables. The result is validated.
func (l *Loader) Load() (*Config, error) {
	l.sources = l.sources[:0]

	cfg := l.defaultConfig()
	l.sources = append(l.sources, "defaults")

	if err := l.loadFile("base", cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	l.sources = append(l.sources, "environment")

	// Files cannot move a config into another environment.
	cfg.Environment = l.environment
	cfg.LoadedFrom = append([]string(nil), l.sources...)
	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// BasePath is the directory the loader reads.
func (l *Loader) BasePath() string {
	return l.basePath
}

// loadFile decodes the first existing file named name with a known extension.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, loader := range l.fileLoaders {
		path := filepath.Join(l.basePath, name+"."+loader.Extension())

		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}

		err = loader.Load(file, cfg)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		l.sources = append(l.sources, path)
		return nil
	}

	return fs.ErrNotExist
}

// loadEnvironmentVariables overlays environment variables on the configuration.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	var errs []error
	setString := func(key string, dst *string) {
		if val := l.getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val := l.getenv(key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if val := l.getenv(key); val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := l.getenv(key); val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	// Server configuration
	setString("SERVER_HOST", &cfg.Server.Host)
	setInt("SERVER_PORT", &cfg.Server.Port)
	setDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Storage configuration
	setString("STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("SQLITE_PATH", &cfg.Storage.SQLitePath)
	setString("TABLE_NAME", &cfg.Storage.TableName)
	setString("DYNAMODB_ENDPOINT", &cfg.Storage.Endpoint)
	setString("AWS_REGION", &cfg.Storage.Region)

	// Cache
	setBool("ENABLE_CACHING", &cfg.Cache.Enabled)
	setDuration("CACHE_TTL", &cfg.Cache.TTL)

	// Events
	setString("EVENTS_PROVIDER", &cfg.Events.Provider)
	setString("EVENT_BUS_NAME", &cfg.Events.EventBusName)

	// Observability
	setBool("ENABLE_METRICS", &cfg.Metrics.Enabled)
	setBool("ENABLE_TRACING", &cfg.Tracing.Enabled)
	setString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)

	if val := l.getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		cfg.CORS.AllowedOrigins = splitList(val)
	}

	return errors.Join(errs...)
}

func (l *Loader) defaultConfig() *Config {
	return Default(l.environment)
}

// Default returns a configuration that runs without any files.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRequestSize:  1 << 20,
		},
		Storage: Storage{
			Driver:     DriverMemory,
			SQLitePath: "brain2-graph.db",
			TableName:  "brain2-graph-" + strings.ToLower(string(env)),
			Region:     "us-east-1",
			Timeout:    10 * time.Second,
		},
		Cache: Cache{
			Enabled:  true,
			MaxItems: 1000,
			TTL:      5 * time.Minute,
		},
		Events: Events{
			Provider:     EventsLog,
			EventBusName: "default",
			Source:       "brain2.graph",
		},
		Breaker: Breaker{
			MaxRequests:  5,
			Interval:     60 * time.Second,
			Timeout:      30 * time.Second,
			FailureRatio: 0.6,
			MinRequests:  5,
		},
		Extraction: Extraction{
			MaxEntities:       50,
			ExpandMaxEntities: 10,
			MinKeywordLength:  3,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "brain2_graph",
			Path:      "/metrics",
		},
		Tracing: Tracing{
			ServiceName: "brain2-graph",
			Endpoint:    "localhost:4317",
		},
		Logging: Logging{
			Level: "info",
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "traceparent"},
			MaxAge:         300,
		},
	}
}

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct {
	ext string
}

func (y YAMLLoader) Load(reader io.Reader, target any) error {
	err := yaml.NewDecoder(reader).Decode(target)
	if errors.Is(err, io.EOF) {
		// empty file
		return nil
	}
	return err
}

func (y YAMLLoader) Extension() string {
	return y.ext
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DefaultLoader reads the ENVIRONMENT files from CONFIG_DIR (default
// "config").
func DefaultLoader() *Loader {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	return NewLoader(dir, getEnvironment())
}

// Load loads configuration with the DefaultLoader.
func Load() (*Config, error) {
	return DefaultLoader().Load()
}
