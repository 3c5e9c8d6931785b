package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/internal/graphapi"
	"brain2-graph/internal/graphcache"
)

const sampleText = "Alice founded Acme. Acme builds robots. Bob joined Acme and builds robots."

type fakeAPI struct {
	graph     graph.KnowledgeGraph
	deleteErr error
	deleted   []string
	gets      int
}

func (f *fakeAPI) ProcessText(ctx context.Context, in graph.ProcessTextInput) (graph.KnowledgeGraph, error) {
	return f.graph, nil
}

func (f *fakeAPI) GetGraph(ctx context.Context, graphID string) (graph.KnowledgeGraph, error) {
	f.gets++
	if graphID != f.graph.ID {
		return graph.KnowledgeGraph{}, apperrors.NotFound("GRAPH_NOT_FOUND", "Graph not found").Build()
	}
	return f.graph, nil
}

func (f *fakeAPI) ListGraphs(ctx context.Context) ([]graph.GraphSummary, error) {
	return []graph.GraphSummary{f.graph.Summary()}, nil
}

func (f *fakeAPI) ExpandEntity(ctx context.Context, in graph.ExpandEntityInput) (graph.Subgraph, error) {
	return graph.Subgraph{Entities: f.graph.Entities[:1], Relationships: []graph.Relationship{}}, nil
}

func (f *fakeAPI) DeleteGraph(ctx context.Context, graphID string) error {
	f.deleted = append(f.deleted, graphID)
	return f.deleteErr
}

func (f *fakeAPI) ExecuteQuery(ctx context.Context, in graph.ExecuteQueryInput) (graph.QueryResult, error) {
	return graph.QueryResult{
		GraphID:       in.GraphID,
		QueryType:     in.QueryType,
		Params:        in.Params,
		Entities:      []graph.Entity{},
		Relationships: []graph.Relationship{},
		Stats:         &graph.Stats{EntityCount: 2, RelationshipCount: 1, AverageDegree: 1, MostConnected: []string{"e1", "e2"}},
	}, nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{graph: graph.KnowledgeGraph{
		ID:   "g1",
		Name: "People",
		Entities: []graph.Entity{
			{ID: "e1", Name: "Alice", Type: "person"},
			{ID: "e2", Name: "Acme"},
		},
		Relationships: []graph.Relationship{
			{ID: "r1", From: "e1", To: "e2", Type: "related_to", Weight: 1},
		},
	}}
}

// connectTo returns a connector handing out api and recording the settings
// it was called with.
func connectTo(api graphapi.API, got *Settings) Connector {
	return func(ctx context.Context, s Settings, logger *zap.Logger) (graphapi.API, func(), error) {
		if got != nil {
			*got = s
		}
		return api, func() {}, nil
	}
}

func execute(t *testing.T, connect Connector, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand(connect)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	out, _, err := execute(t, connectTo(newFakeAPI(), nil), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "graphctl 1.2.3")
	assert.Contains(t, out, "commit: abc")
}

func TestGet_TextOutput(t *testing.T) {
	out, _, err := execute(t, connectTo(newFakeAPI(), nil), "get", "g1")
	require.NoError(t, err)

	assert.Contains(t, out, "Graph g1")
	assert.Contains(t, out, "People")
	assert.Contains(t, out, "Entities (2):")
	assert.Contains(t, out, "Alice [person]")
	assert.Contains(t, out, "Alice -> Acme [related_to] weight=1")
}

func TestGet_NotFoundIsRetriedOnce(t *testing.T) {
	api := newFakeAPI()
	_, _, err := execute(t, connectTo(api, nil), "get", "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 2, api.gets)
}

func TestNewStore_UsesGraphRetention(t *testing.T) {
	store := newStore(zap.NewNop(), graphcache.DefaultConfig())
	defer store.Close()
	assert.Equal(t, graphcache.DefaultGCTime, store.GCTime())
}

func TestList_TextOutput(t *testing.T) {
	out, _, err := execute(t, connectTo(newFakeAPI(), nil), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "g1")
	assert.Contains(t, out, "People")
}

func TestQuery_StatsAndCacheStats(t *testing.T) {
	out, errOut, err := execute(t, connectTo(newFakeAPI(), nil), "query", "g1", "stats", "--stats")
	require.NoError(t, err)

	assert.Contains(t, out, "Query stats on graph g1")
	assert.Contains(t, out, "Average degree:  1.00")
	assert.Contains(t, out, "Most connected:  e1, e2")
	assert.Contains(t, errOut, "Cache: 1 entries")
}

func TestQuery_ParamsAreForwarded(t *testing.T) {
	out, _, err := execute(t, connectTo(newFakeAPI(), nil),
		"query", "g1", "neighbors", "-p", "entityId=e1", "-p", "depth=2", "-o", "json")
	require.NoError(t, err)

	var result graph.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, graph.QueryParams{"entityId": "e1", "depth": "2"}, result.Params)
}

func TestDelete_Failure(t *testing.T) {
	api := newFakeAPI()
	api.deleteErr = apperrors.RequestFailed(500, "storage offline").Build()

	_, errOut, err := execute(t, connectTo(api, nil), "delete", "g1")
	require.Error(t, err)
	assert.Contains(t, errOut, "✗ storage offline")
	assert.Equal(t, []string{"g1"}, api.deleted)
}

func TestDelete_Success(t *testing.T) {
	api := newFakeAPI()
	out, errOut, err := execute(t, connectTo(api, nil), "rm", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted graph g1")
	assert.Contains(t, errOut, "✓ Graph deleted")
}

func TestExpand_Merged(t *testing.T) {
	out, _, err := execute(t, connectTo(newFakeAPI(), nil), "expand", "g1", "e1", "--merged", "-o", "json")
	require.NoError(t, err)

	var g graph.KnowledgeGraph
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, "g1", g.ID)
	assert.Len(t, g.Entities, 2)
}

func TestSettings(t *testing.T) {
	t.Run("unsupported output", func(t *testing.T) {
		_, _, err := execute(t, connectTo(newFakeAPI(), nil), "list", "--output", "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format")
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("GRAPHCTL_OUTPUT", "json")
		t.Setenv("GRAPHCTL_SERVER", "http://graphs.internal:9000")

		var got Settings
		out, _, err := execute(t, connectTo(newFakeAPI(), &got), "get", "g1")
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(out)))
		assert.Equal(t, "http://graphs.internal:9000", got.Server)
	})

	t.Run("flag beats environment", func(t *testing.T) {
		t.Setenv("GRAPHCTL_SERVER", "http://from-env")

		var got Settings
		_, _, err := execute(t, connectTo(newFakeAPI(), &got), "list", "--server", "http://from-flag")
		require.NoError(t, err)
		assert.Equal(t, "http://from-flag", got.Server)
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graphctl.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: http://from-file\ntimeout: 5s\nstats: true\n"), 0o600))

		var got Settings
		_, errOut, err := execute(t, connectTo(newFakeAPI(), &got), "list", "--config", path)
		require.NoError(t, err)
		assert.Equal(t, "http://from-file", got.Server)
		assert.Equal(t, "5s", got.Timeout.String())
		assert.Contains(t, errOut, "Cache:")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, _, err := execute(t, connectTo(newFakeAPI(), nil), "list", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file"), 0o600))

	tests := []struct {
		name    string
		stdin   string
		args    []string
		file    string
		want    string
		wantErr string
	}{
		{name: "args joined", args: []string{"Alice", "met", "Bob."}, want: "Alice met Bob."},
		{name: "file", file: file, want: "from file"},
		{name: "stdin", file: "-", stdin: "from stdin", want: "from stdin"},
		{name: "nothing", wantErr: "text is required"},
		{name: "both", args: []string{"x"}, file: file, wantErr: "not both"},
		{name: "missing file", file: filepath.Join(dir, "missing.txt"), wantErr: "reading text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readText(strings.NewReader(tt.stdin), tt.args, tt.file)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocal_SQLiteLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "graphs.db")
	local := func(args ...string) string {
		t.Helper()
		out, _, err := execute(t, Connect, append(args, "--local", db)...)
		require.NoError(t, err)
		return out
	}

	var created graph.KnowledgeGraph
	require.NoError(t, json.Unmarshal([]byte(local("process", sampleText, "-o", "json")), &created))
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.Entities)

	var summaries []graph.GraphSummary
	require.NoError(t, json.Unmarshal([]byte(local("list", "-o", "json")), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, created.ID, summaries[0].ID)

	assert.Contains(t, local("get", created.ID), "Graph "+created.ID)

	var stats graph.QueryResult
	require.NoError(t, json.Unmarshal([]byte(local("query", created.ID, "stats", "-o", "json")), &stats))
	require.NotNil(t, stats.Stats)
	assert.Equal(t, len(created.Entities), stats.Stats.EntityCount)

	var alice string
	for _, e := range created.Entities {
		if e.Name == "Alice" {
			alice = e.ID
		}
	}
	require.NotEmpty(t, alice)

	var merged graph.KnowledgeGraph
	require.NoError(t, json.Unmarshal([]byte(local("expand", created.ID, alice, "--merged", "-o", "json")), &merged))
	assert.Greater(t, len(merged.Entities), len(created.Entities))

	assert.Contains(t, local("delete", created.ID), "Deleted graph "+created.ID)
	assert.Contains(t, local("list"), "No graphs found.")
}

func TestLocal_MemoryRejectsBlankText(t *testing.T) {
	_, errOut, err := execute(t, Connect, "process", "--file", "-", "--local", LocalMemory)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, errOut, "✗")
}
