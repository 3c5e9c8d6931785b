// Package graphcache is the graph data layer used by interactive callers. It
// combines the graph API client with a query cache: graph reads are cached
// under hierarchical keys, and the four graph mutations keep the cache
// consistent with the server, optimistically where the outcome is known in
// advance and with rollback when the server disagrees.
package graphcache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/internal/graphapi"
	"brain2-graph/internal/querycache"
)

const (
	// DefaultStaleTime is how long fetched graphs count as fresh.
	DefaultStaleTime = 5 * time.Minute
	// DefaultGCTime is how long an unobserved graph stays cached.
	DefaultGCTime = 10 * time.Minute
	// DefaultProcessRetryDelay is the pause before text processing is retried.
	DefaultProcessRetryDelay = time.Second
)

// Notification texts for successful mutations.
const (
	MsgGraphCreated   = "Knowledge graph created"
	MsgEntityExpanded = "Entity expanded"
	MsgGraphDeleted   = "Graph deleted"
)

// Config tunes cache policy.
type Config struct {
	StaleTime time.Duration
	GCTime    time.Duration
	// QueryRetry applies to graph reads.
	QueryRetry querycache.RetryPolicy
	// ProcessRetry applies to text processing.
	ProcessRetry querycache.RetryPolicy
}

// DefaultConfig returns the standard cache policy: five minutes fresh, ten
// minutes retained, reads retried once, text processing retried once after
// one second.
func DefaultConfig() Config {
	return Config{
		StaleTime:    DefaultStaleTime,
		GCTime:       DefaultGCTime,
		QueryRetry:   querycache.BackoffRetry(1),
		ProcessRetry: querycache.FixedRetry(1, DefaultProcessRetryDelay),
	}
}

// Client is the cached graph data layer.
type Client struct {
	api      graphapi.API
	store    *querycache.Store
	nav      Navigator
	notifier Notifier
	logger   *zap.Logger
	cfg      Config

	process *querycache.Mutation[graph.ProcessTextInput, graph.KnowledgeGraph]
	expand  *querycache.Mutation[graph.ExpandEntityInput, graph.Subgraph]
	remove  *querycache.Mutation[string, struct{}]
	query   *querycache.Mutation[graph.ExecuteQueryInput, graph.QueryResult]
}

// Option configures a Client.
type Option func(*Client)

// WithNavigator sets the navigation target of successful mutations.
func WithNavigator(nav Navigator) Option {
	return func(c *Client) {
		if nav != nil {
			c.nav = nav
		}
	}
}

// WithNotifier sets where user notifications go.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConfig replaces the cache policy.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// New creates a client caching into store. The store should outlive the
// client and is shared with anything else reading graph data.
func New(api graphapi.API, store *querycache.Store, opts ...Option) *Client {
	c := &Client{
		api:    api,
		store:  store,
		nav:    nopNavigator{},
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = LogNotifier{Logger: c.logger}
	}
	c.process = c.newProcessTextMutation()
	c.expand = c.newExpandEntityMutation()
	c.remove = c.newDeleteGraphMutation()
	c.query = c.newExecuteQueryMutation()
	return c
}

// Store exposes the underlying cache.
func (c *Client) Store() *querycache.Store { return c.store }

// ============================================================================
// QUERIES
// ============================================================================

// QueryOption tunes a single query.
type QueryOption func(*queryConfig)

type queryConfig struct {
	disabled bool
}

// Disabled prevents the query from fetching.
func Disabled() QueryOption {
	return func(q *queryConfig) { q.disabled = true }
}

// EnabledIf disables the query unless enabled is true.
func EnabledIf(enabled bool) QueryOption {
	return func(q *queryConfig) { q.disabled = q.disabled || !enabled }
}

func (c *Client) queryOptions() querycache.QueryOptions {
	return querycache.QueryOptions{
		StaleTime: c.cfg.StaleTime,
		GCTime:    c.cfg.GCTime,
		Retry:     c.cfg.QueryRetry,
	}
}

// Graph observes the graph with the given id. The query is disabled when the
// id is empty or a Disabled option is passed. Close it when done.
func (c *Client) Graph(graphID string, opts ...QueryOption) *querycache.Query[graph.KnowledgeGraph] {
	qc := queryConfig{}
	for _, opt := range opts {
		opt(&qc)
	}
	enabled := graphID != "" && !qc.disabled

	return querycache.NewQuery(c.store, Detail(graphID), func(ctx context.Context) (graph.KnowledgeGraph, error) {
		return c.api.GetGraph(ctx, graphID)
	}, c.queryOptions(), enabled)
}

// Graphs observes the graph list.
func (c *Client) Graphs(opts ...QueryOption) *querycache.Query[[]graph.GraphSummary] {
	qc := queryConfig{}
	for _, opt := range opts {
		opt(&qc)
	}

	return querycache.NewQuery(c.store, Lists(), func(ctx context.Context) ([]graph.GraphSummary, error) {
		return c.api.ListGraphs(ctx)
	}, c.queryOptions(), !qc.disabled)
}

// GetGraph reads a graph through the cache without keeping an observer.
func (c *Client) GetGraph(ctx context.Context, graphID string) (graph.KnowledgeGraph, error) {
	q := c.Graph(graphID)
	defer q.Close()
	return q.Get(ctx)
}

// CachedGraph returns the cached graph without fetching.
func (c *Client) CachedGraph(graphID string) (graph.KnowledgeGraph, bool) {
	return querycache.GetData[graph.KnowledgeGraph](c.store, Detail(graphID))
}

// CachedQueryResult returns the result cached for in, if any.
func (c *Client) CachedQueryResult(in graph.ExecuteQueryInput) (graph.QueryResult, bool) {
	return querycache.GetData[graph.QueryResult](c.store, Query(in.GraphID, in.QueryType, in.Params))
}

// ============================================================================
// MUTATIONS
// ============================================================================

// ProcessText extracts a graph from text. On success the new graph is cached,
// the user is sent to its editing view and notified; on failure the graph
// scope is rolled back and the error is both notified and returned.
func (c *Client) ProcessText(ctx context.Context, in graph.ProcessTextInput) (graph.KnowledgeGraph, error) {
	return c.process.Execute(ctx, in)
}

// ExpandEntity merges the neighbourhood of an entity into the cached parent
// graph.
func (c *Client) ExpandEntity(ctx context.Context, in graph.ExpandEntityInput) (graph.Subgraph, error) {
	return c.expand.Execute(ctx, in)
}

// DeleteGraph removes a graph, dropping it from the cache before the server
// confirms and restoring it if the server refuses.
func (c *Client) DeleteGraph(ctx context.Context, graphID string) error {
	_, err := c.remove.Execute(ctx, graphID)
	return err
}

// ExecuteQuery runs a structured query and caches its result.
func (c *Client) ExecuteQuery(ctx context.Context, in graph.ExecuteQueryInput) (graph.QueryResult, error) {
	return c.query.Execute(ctx, in)
}

// ProcessTextState reports the latest ProcessText outcome.
func (c *Client) ProcessTextState() querycache.MutationState[graph.KnowledgeGraph] {
	return c.process.State()
}

// ExpandEntityState reports the latest ExpandEntity outcome.
func (c *Client) ExpandEntityState() querycache.MutationState[graph.Subgraph] {
	return c.expand.State()
}

// DeleteGraphState reports the latest DeleteGraph outcome.
func (c *Client) DeleteGraphState() querycache.MutationState[struct{}] {
	return c.remove.State()
}

// ExecuteQueryState reports the latest ExecuteQuery outcome.
func (c *Client) ExecuteQueryState() querycache.MutationState[graph.QueryResult] {
	return c.query.State()
}

func (c *Client) newProcessTextMutation() *querycache.Mutation[graph.ProcessTextInput, graph.KnowledgeGraph] {
	retry := c.cfg.ProcessRetry
	if retry.ShouldRetry == nil {
		// invalid input never reached the server
		retry.ShouldRetry = func(err error) bool { return !apperrors.IsValidation(err) }
	}

	return querycache.NewMutation(c.store, querycache.MutationOptions[graph.ProcessTextInput, graph.KnowledgeGraph]{
		Name: "processText",
		Fn:   c.api.ProcessText,
		Optimistic: &querycache.Optimistic[graph.ProcessTextInput]{
			Scope: func(graph.ProcessTextInput) querycache.Filter { return querycache.Scope(All()) },
		},
		Retry: retry,
		OnSuccess: func(ctx context.Context, g graph.KnowledgeGraph, _ graph.ProcessTextInput) {
			c.store.Update(func(tx *querycache.Txn) {
				tx.Invalidate(querycache.Scope(All()))
				tx.Set(Detail(g.ID), g)
			})
			c.logger.Info("Knowledge graph created",
				zap.String("graphID", g.ID),
				zap.Int("entities", len(g.Entities)),
				zap.Int("relationships", len(g.Relationships)))
			c.nav.Navigate(GraphBuilderPath(g.ID))
			c.notifier.Success(MsgGraphCreated)
		},
		OnError: func(ctx context.Context, err error, _ graph.ProcessTextInput) {
			c.notifier.Error(apperrors.UserMessage(err, graphapi.FallbackProcessText))
		},
	})
}

func (c *Client) newExpandEntityMutation() *querycache.Mutation[graph.ExpandEntityInput, graph.Subgraph] {
	return querycache.NewMutation(c.store, querycache.MutationOptions[graph.ExpandEntityInput, graph.Subgraph]{
		Name: "expandEntity",
		Fn:   c.api.ExpandEntity,
		OnSuccess: func(ctx context.Context, sub graph.Subgraph, in graph.ExpandEntityInput) {
			added := 0
			c.store.Update(func(tx *querycache.Txn) {
				tx.Invalidate(querycache.Exact(Expansion(in.GraphID, in.EntityID)))

				parent, ok := querycache.TxGet[graph.KnowledgeGraph](tx, Detail(in.GraphID))
				if !ok {
					return
				}
				var merged graph.KnowledgeGraph
				merged, added = parent.Merge(sub)
				if added > 0 {
					tx.Set(Detail(in.GraphID), merged)
				}
			})
			c.logger.Debug("Merged entity expansion",
				zap.String("graphID", in.GraphID),
				zap.String("entityID", in.EntityID),
				zap.Int("added", added))
			c.notifier.Success(fmt.Sprintf("%s: %d new items", MsgEntityExpanded, added))
		},
		OnError: func(ctx context.Context, err error, _ graph.ExpandEntityInput) {
			c.notifier.Error(apperrors.UserMessage(err, graphapi.FallbackExpandEntity))
		},
	})
}

func (c *Client) newDeleteGraphMutation() *querycache.Mutation[string, struct{}] {
	return querycache.NewMutation(c.store, querycache.MutationOptions[string, struct{}]{
		Name: "deleteGraph",
		Fn: func(ctx context.Context, graphID string) (struct{}, error) {
			return struct{}{}, c.api.DeleteGraph(ctx, graphID)
		},
		Optimistic: &querycache.Optimistic[string]{
			Cancel: func(graphID string) querycache.Filter { return querycache.Scope(Detail(graphID)) },
			Scope:  func(graphID string) querycache.Filter { return querycache.Exact(Detail(graphID)) },
			Apply: func(tx *querycache.Txn, graphID string) {
				tx.Remove(querycache.Exact(Detail(graphID)))
			},
		},
		OnSuccess: func(ctx context.Context, _ struct{}, graphID string) {
			c.store.Invalidate(querycache.Scope(Lists()))
			c.logger.Info("Graph deleted", zap.String("graphID", graphID))
			c.nav.Navigate(DashboardPath)
			c.notifier.Success(MsgGraphDeleted)
		},
		OnError: func(ctx context.Context, err error, _ string) {
			c.notifier.Error(apperrors.UserMessage(err, graphapi.FallbackDeleteGraph))
		},
	})
}

func (c *Client) newExecuteQueryMutation() *querycache.Mutation[graph.ExecuteQueryInput, graph.QueryResult] {
	return querycache.NewMutation(c.store, querycache.MutationOptions[graph.ExecuteQueryInput, graph.QueryResult]{
		Name: "executeQuery",
		Fn:   c.api.ExecuteQuery,
		OnSuccess: func(ctx context.Context, result graph.QueryResult, in graph.ExecuteQueryInput) {
			c.store.Set(Query(in.GraphID, in.QueryType, in.Params), result)
		},
		OnError: func(ctx context.Context, err error, _ graph.ExecuteQueryInput) {
			c.notifier.Error(apperrors.UserMessage(err, graphapi.FallbackExecuteQuery))
		},
	})
}
