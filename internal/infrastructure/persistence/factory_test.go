package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-graph/internal/config"
	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/infrastructure/persistence/cache"
	"brain2-graph/internal/infrastructure/persistence/memory"
	"brain2-graph/internal/repository"
	"brain2-graph/internal/repository/repotest"
)

type recordedOp struct {
	operation, driver string
	failed            bool
}

type fakeMetrics struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (m *fakeMetrics) RecordDB(operation, driver string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, recordedOp{operation: operation, driver: driver, failed: err != nil})
}

func TestNewGraphRepository_Drivers(t *testing.T) {
	ctx := context.Background()

	t.Run("memory with cache", func(t *testing.T) {
		repo, cleanup, err := NewGraphRepository(ctx,
			config.Storage{Driver: config.DriverMemory},
			config.Cache{Enabled: true, MaxItems: 10, TTL: time.Minute},
			Options{})
		require.NoError(t, err)
		defer cleanup()

		instrumented := repo.(*InstrumentedGraphRepository)
		assert.IsType(t, &cache.CachingGraphRepository{}, instrumented.inner)
	})

	t.Run("memory without cache", func(t *testing.T) {
		repo, cleanup, err := NewGraphRepository(ctx, config.Storage{Driver: config.DriverMemory}, config.Cache{}, Options{})
		require.NoError(t, err)
		defer cleanup()
		assert.IsType(t, &memory.GraphRepository{}, repo.(*InstrumentedGraphRepository).inner)
	})

	t.Run("sqlite", func(t *testing.T) {
		repo, cleanup, err := NewGraphRepository(ctx,
			config.Storage{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "g.db")},
			config.Cache{}, Options{})
		require.NoError(t, err)
		defer cleanup()

		require.NoError(t, repo.Save(ctx, repotest.Graph("g1", time.Now().UTC())))
		_, err = repo.FindByID(ctx, "g1")
		assert.NoError(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, cleanup, err := NewGraphRepository(ctx, config.Storage{Driver: "cassandra"}, config.Cache{}, Options{})
		require.Error(t, err)
		assert.NotNil(t, cleanup)
	})
}

func TestInstrumentedGraphRepository_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &fakeMetrics{}
	repo := NewInstrumentedGraphRepository(memory.NewGraphRepository(), "memory", nil, metrics)

	require.NoError(t, repo.Save(ctx, repotest.Graph("g1", time.Now().UTC())))
	_, err := repo.FindByID(ctx, "missing")
	require.Error(t, err)
	_, err = repo.List(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "g1"))

	assert.Equal(t, []recordedOp{
		{operation: "save", driver: "memory"},
		{operation: "find", driver: "memory", failed: true},
		{operation: "list", driver: "memory"},
		{operation: "delete", driver: "memory"},
	}, metrics.ops)
}

type failingRepo struct{ repository.GraphRepository }

func (failingRepo) Save(context.Context, graph.KnowledgeGraph) error { return errors.New("disk full") }

func TestInstrumentedGraphRepository_PassesErrorsThrough(t *testing.T) {
	repo := NewInstrumentedGraphRepository(failingRepo{}, "memory", nil, nil)
	err := repo.Save(context.Background(), graph.KnowledgeGraph{ID: "g1"})
	require.EqualError(t, err, "disk full")
}

func TestInstrumentedGraphRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.GraphRepository {
		return NewInstrumentedGraphRepository(memory.NewGraphRepository(), "memory", nil, nil)
	})
}
