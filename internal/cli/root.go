// Package cli implements graphctl, a command line client for the graph API.
// Commands go through the cached graph data layer, either against a running
// server or against a local repository.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"brain2-graph/internal/application/graphservice"
	"brain2-graph/internal/config"
	"brain2-graph/internal/graphapi"
	"brain2-graph/internal/graphcache"
	"brain2-graph/internal/infrastructure/messaging"
	"brain2-graph/internal/infrastructure/persistence"
	"brain2-graph/internal/querycache"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// LocalMemory as the --local value keeps graphs in memory for one command.
const LocalMemory = "memory"

// Settings are the resolved global options. Flags win over GRAPHCTL_*
// environment variables, which win over the config file.
type Settings struct {
	Server  string
	Timeout time.Duration
	Output  string
	Local   string
	Verbose bool
	Stats   bool
}

// Connector opens the graph API a command talks to. The returned close
// function is never nil.
type Connector func(ctx context.Context, s Settings, logger *zap.Logger) (graphapi.API, func(), error)

type rootCommand struct {
	cmd     *cobra.Command
	v       *viper.Viper
	connect Connector
}

// NewRootCommand builds the graphctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(Connect)
}

func newRootCommand(connect Connector) *cobra.Command {
	r := &rootCommand{v: viper.New(), connect: connect}

	r.cmd = &cobra.Command{
		Use:   "graphctl",
		Short: "Knowledge graph command line client",
		Long: `graphctl extracts knowledge graphs from text and explores them.

It talks to a brain2-graph server (--server) or, with --local, runs the graph
service in-process against a SQLite file or an in-memory store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.loadConfig(cmd)
		},
	}

	flags := r.cmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.config/graphctl/graphctl.yaml)")
	flags.String("server", "http://localhost:8080", "graph API base URL")
	flags.Duration("timeout", graphapi.DefaultTimeout, "per-request timeout")
	flags.StringP("output", "o", OutputText, "output format: text or json")
	flags.String("local", "", "run against a local SQLite file, or \"memory\"")
	flags.BoolP("verbose", "v", false, "log debug output to stderr")
	flags.Bool("stats", false, "print query cache statistics after the command")

	r.cmd.AddCommand(
		newVersionCommand(),
		r.newProcessCommand(),
		r.newListCommand(),
		r.newGetCommand(),
		r.newExpandCommand(),
		r.newDeleteCommand(),
		r.newQueryCommand(),
	)
	return r.cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graphctl %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
		},
	}
}

func (r *rootCommand) loadConfig(cmd *cobra.Command) error {
	v := r.v
	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	v.SetEnvPrefix("GRAPHCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName("graphctl")
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "graphctl"))
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func (r *rootCommand) settings() (Settings, error) {
	s := Settings{
		Server:  r.v.GetString("server"),
		Timeout: r.v.GetDuration("timeout"),
		Output:  strings.ToLower(r.v.GetString("output")),
		Local:   r.v.GetString("local"),
		Verbose: r.v.GetBool("verbose"),
		Stats:   r.v.GetBool("stats"),
	}
	switch s.Output {
	case OutputText, OutputJSON:
	default:
		return s, fmt.Errorf("unsupported output format %q (want text or json)", s.Output)
	}
	if s.Local == "" && s.Server == "" {
		return s, errors.New("either --server or --local is required")
	}
	return s, nil
}

// session is one command's view of the data layer.
type session struct {
	client   *graphcache.Client
	settings Settings
	out      io.Writer
	errOut   io.Writer
	logger   *zap.Logger
}

// run opens a session around fn and tears it down afterwards.
func (r *rootCommand) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	settings, err := r.settings()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), settings.Verbose)
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	api, closeAPI, err := r.connect(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer closeAPI()

	cacheCfg := graphcache.DefaultConfig()
	store := newStore(logger, cacheCfg)
	defer store.Close()

	errOut := cmd.ErrOrStderr()
	client := graphcache.New(api, store,
		graphcache.WithConfig(cacheCfg),
		graphcache.WithLogger(logger),
		graphcache.WithNotifier(writerNotifier{w: errOut, quiet: settings.Output == OutputJSON}),
		graphcache.WithNavigator(graphcache.NavigatorFunc(func(target string) {
			logger.Debug("Navigate", zap.String("target", target))
		})),
	)

	s := &session{
		client:   client,
		settings: settings,
		out:      cmd.OutOrStdout(),
		errOut:   errOut,
		logger:   logger,
	}
	if err := fn(ctx, s); err != nil {
		return err
	}
	if settings.Stats {
		printStats(errOut, store.Stats())
	}
	return nil
}

// newStore creates the session cache retaining entries as long as cfg says,
// including graphs seeded by mutations rather than fetched.
func newStore(logger *zap.Logger, cfg graphcache.Config) *querycache.Store {
	return querycache.New(
		querycache.WithLogger(logger.Named("cache")),
		querycache.WithGCTime(cfg.GCTime),
	)
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// Connect opens the remote API client, or an in-process graph service when
// s.Local is set.
func Connect(ctx context.Context, s Settings, logger *zap.Logger) (graphapi.API, func(), error) {
	if s.Local == "" {
		client := graphapi.New(s.Server,
			graphapi.WithTimeout(s.Timeout),
			graphapi.WithLogger(logger),
			graphapi.WithBreaker(graphapi.DefaultBreakerConfig("graphctl")),
		)
		return client, func() {}, nil
	}

	storage := config.Default(config.Development).Storage
	if s.Local == LocalMemory {
		storage.Driver = config.DriverMemory
	} else {
		storage.Driver = config.DriverSQLite
		storage.SQLitePath = s.Local
	}

	repo, closeRepo, err := persistence.NewGraphRepository(ctx, storage, config.Cache{}, persistence.Options{Logger: logger})
	if err != nil {
		return nil, func() {}, fmt.Errorf("opening local store: %w", err)
	}
	service := graphservice.New(repo, messaging.NewLogPublisher(logger), graphservice.DefaultLimits(), logger)
	closeFn := func() {
		if err := closeRepo(); err != nil {
			logger.Warn("Failed to close local store", zap.Error(err))
		}
	}
	return service, closeFn, nil
}

// writerNotifier prints user notifications to the terminal.
type writerNotifier struct {
	w io.Writer
	// quiet drops success messages so JSON output stays clean to parse
	quiet bool
}

func (n writerNotifier) Success(message string) {
	if !n.quiet {
		fmt.Fprintf(n.w, "✓ %s\n", message)
	}
}

func (n writerNotifier) Error(message string) {
	fmt.Fprintf(n.w, "✗ %s\n", message)
}
