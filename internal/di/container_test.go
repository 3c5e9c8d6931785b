package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"brain2-graph/internal/config"
	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/observability"
)

func newContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	observability.ResetForTesting()
	t.Cleanup(observability.ResetForTesting)

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return c
}

func TestInitializeContainer_Memory(t *testing.T) {
	c := newContainer(t, config.Default(config.Development))

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	g, err := c.Service.ProcessText(context.Background(), graph.ProcessTextInput{Text: "Alice met Bob. Bob met Alice."})
	require.NoError(t, err)

	stored, err := c.Repository.FindByID(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Name, stored.Name)
}

func TestInitializeContainer_SQLite(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "graphs.db")
	cfg.Cache.Enabled = false
	c := newContainer(t, cfg)

	g, err := c.Service.ProcessText(context.Background(), graph.ProcessTextInput{Text: "Alice met Bob."})
	require.NoError(t, err)

	summaries, err := c.Service.ListGraphs(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, g.ID, summaries[0].ID)
}

func TestInitializeContainer_UnknownDriver(t *testing.T) {
	observability.ResetForTesting()
	t.Cleanup(observability.ResetForTesting)

	cfg := config.Default(config.Development)
	cfg.Storage.Driver = "cassandra"

	_, _, err := InitializeContainer(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestWatchConfig_UpdatesLogLevel(t *testing.T) {
	dir := t.TempDir()
	loader := config.NewLoader(dir, config.Development)
	cfg, err := loader.Load()
	require.NoError(t, err)

	c := newContainer(t, cfg)
	require.Equal(t, zapcore.InfoLevel, c.LogLevel.Level())

	watcher, err := c.WatchConfig(loader)
	require.NoError(t, err)
	t.Cleanup(watcher.Stop)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("logging:\n  level: debug\n"), 0o644))

	require.Eventually(t, func() bool {
		return c.LogLevel.Level() == zapcore.DebugLevel
	}, 5*time.Second, 20*time.Millisecond)
}
