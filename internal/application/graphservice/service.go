// Package graphservice implements the graph endpoints: extracting graphs from
// text, expanding entities, structured queries and graph lifecycle.
package graphservice

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/domain/services"
	apperrors "brain2-graph/internal/errors"
	"brain2-graph/internal/infrastructure/messaging"
	"brain2-graph/internal/repository"
	"brain2-graph/internal/validation"
)

// RelationshipRelatedTo is the type of every extracted relationship.
const RelationshipRelatedTo = "related_to"

const (
	// processMinConceptCount drops concepts mentioned only once in the text.
	processMinConceptCount = 2
	expandMinConceptCount  = 1
	maxNameLength          = 60
	untitledGraphName      = "Untitled graph"
)

// Limits bound extraction.
type Limits struct {
	MaxEntities       int
	ExpandMaxEntities int
	MinKeywordLength  int
}

// DefaultLimits match the defaults of the extraction config section.
func DefaultLimits() Limits {
	return Limits{MaxEntities: 50, ExpandMaxEntities: 10, MinKeywordLength: 3}
}

// Metrics receives business counters.
type Metrics interface {
	GraphCreated()
	GraphDeleted()
	EntityExpanded()
	QueryExecuted(queryType string)
}

type nopMetrics struct{}

func (nopMetrics) GraphCreated()        {}
func (nopMetrics) GraphDeleted()        {}
func (nopMetrics) EntityExpanded()      {}
func (nopMetrics) QueryExecuted(string) {}

// Option configures a Service.
type Option func(*Service)

// WithMetrics reports business counters to m.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the random id source for entities, relationships
// and graphs.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// Service implements the graph operations on top of a GraphRepository.
type Service struct {
	repo      repository.GraphRepository
	publisher messaging.Publisher
	text      *services.TextAnalyzer
	analyzer  *services.GraphAnalyzer
	limits    Limits
	metrics   Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// New creates the service. A nil publisher drops events.
func New(repo repository.GraphRepository, publisher messaging.Publisher, limits Limits, logger *zap.Logger, opts ...Option) *Service {
	defaults := DefaultLimits()
	if limits.MaxEntities <= 0 {
		limits.MaxEntities = defaults.MaxEntities
	}
	if limits.ExpandMaxEntities <= 0 {
		limits.ExpandMaxEntities = defaults.ExpandMaxEntities
	}
	if limits.MinKeywordLength <= 0 {
		limits.MinKeywordLength = defaults.MinKeywordLength
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:      repo,
		publisher: publisher,
		text:      services.NewTextAnalyzer(limits.MinKeywordLength),
		analyzer:  services.NewGraphAnalyzer(),
		limits:    limits,
		metrics:   nopMetrics{},
		logger:    logger.Named("graphservice"),
		tracer:    otel.Tracer("brain2-graph/graphservice"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessText extracts a new graph from in.Text and stores it.
func (s *Service) ProcessText(ctx context.Context, in graph.ProcessTextInput) (graph.KnowledgeGraph, error) {
	ctx, span := s.tracer.Start(ctx, "GraphService.ProcessText")
	defer span.End()

	if err := validation.Validate(in); err != nil {
		return graph.KnowledgeGraph{}, fail(span, err)
	}

	limit := in.MaxEntities
	if limit == 0 {
		limit = s.limits.MaxEntities
	}

	sentences := s.text.SplitSentences(in.Text)
	mentions := s.text.ExtractMentions(sentences, processMinConceptCount)
	if len(mentions) > limit {
		mentions = mentions[:limit]
	}

	now := s.now().UTC()
	g := graph.KnowledgeGraph{
		ID:            s.newID(),
		Name:          graphName(in.Name, sentences),
		SourceText:    in.Text,
		Entities:      make([]graph.Entity, 0, len(mentions)),
		Relationships: []graph.Relationship{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ids := make([]string, len(mentions))
	for i, m := range mentions {
		ids[i] = s.newID()
		g.Entities = append(g.Entities, graph.Entity{
			ID:         ids[i],
			Name:       m.Name,
			Type:       m.Type,
			Properties: map[string]string{"mentions": strconv.Itoa(m.Count)},
		})
	}

	// Mentions are in order of first appearance, so edges point from the
	// earlier mention to the later one.
	for i := range mentions {
		for j := i + 1; j < len(mentions); j++ {
			shared := sharedSentences(mentions[i].Sentences, mentions[j].Sentences)
			if shared == 0 {
				continue
			}
			g.Relationships = append(g.Relationships, graph.Relationship{
				ID:     s.newID(),
				From:   ids[i],
				To:     ids[j],
				Type:   RelationshipRelatedTo,
				Weight: float64(shared),
			})
		}
	}

	span.SetAttributes(
		attribute.String("graph.id", g.ID),
		attribute.Int("graph.entities", len(g.Entities)),
		attribute.Int("graph.relationships", len(g.Relationships)),
	)

	if err := s.repo.Save(ctx, g); err != nil {
		return graph.KnowledgeGraph{}, fail(span, apperrors.Wrap(err, "ProcessText", "failed to save graph"))
	}

	s.metrics.GraphCreated()
	s.logger.Info("Graph created",
		zap.String("graphID", g.ID),
		zap.Int("entities", len(g.Entities)),
		zap.Int("relationships", len(g.Relationships)),
	)
	s.publish(ctx, graph.NewEvent(graph.EventGraphCreated, g.ID, now, map[string]any{
		"entityCount":       len(g.Entities),
		"relationshipCount": len(g.Relationships),
	}))

	return g, nil
}

// GetGraph returns one stored graph.
func (s *Service) GetGraph(ctx context.Context, graphID string) (graph.KnowledgeGraph, error) {
	ctx, span := s.tracer.Start(ctx, "GraphService.GetGraph", trace.WithAttributes(attribute.String("graph.id", graphID)))
	defer span.End()

	if err := requireGraphID(graphID); err != nil {
		return graph.KnowledgeGraph{}, fail(span, err)
	}
	g, err := s.repo.FindByID(ctx, graphID)
	if err != nil {
		return graph.KnowledgeGraph{}, fail(span, err)
	}
	return g, nil
}

// ListGraphs returns summaries of every stored graph, most recent first.
func (s *Service) ListGraphs(ctx context.Context) ([]graph.GraphSummary, error) {
	ctx, span := s.tracer.Start(ctx, "GraphService.ListGraphs")
	defer span.End()

	summaries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	if summaries == nil {
		summaries = []graph.GraphSummary{}
	}
	span.SetAttributes(attribute.Int("graph.count", len(summaries)))
	return summaries, nil
}

// ExpandEntity mines the graph's source text around one entity for entities
// the graph does not know yet, links them to the entity they were found next
// to and stores the grown graph. The returned subgraph is the neighbourhood
// of the entity after expansion, so repeating a call returns the same
// entities and leaves the stored graph unchanged.
func (s *Service) ExpandEntity(ctx context.Context, in graph.ExpandEntityInput) (graph.Subgraph, error) {
	ctx, span := s.tracer.Start(ctx, "GraphService.ExpandEntity", trace.WithAttributes(
		attribute.String("graph.id", in.GraphID),
		attribute.String("entity.id", in.EntityID),
	))
	defer span.End()

	if err := validation.Validate(in); err != nil {
		return graph.Subgraph{}, fail(span, err)
	}

	g, err := s.repo.FindByID(ctx, in.GraphID)
	if err != nil {
		return graph.Subgraph{}, fail(span, err)
	}
	root, ok := g.Entity(in.EntityID)
	if !ok {
		return graph.Subgraph{}, fail(span, entityNotFound(in.EntityID))
	}

	depth := in.Depth
	if depth == 0 {
		depth = 1
	}
	limit := in.MaxEntities
	if limit == 0 {
		limit = s.limits.ExpandMaxEntities
	}

	found := s.discover(g, root, depth, limit)
	added := len(found.Entities)

	if added > 0 {
		now := s.now().UTC()
		merged, _ := g.Merge(found)
		merged.UpdatedAt = now
		if err := s.repo.Save(ctx, merged); err != nil {
			return graph.Subgraph{}, fail(span, apperrors.Wrap(err, "ExpandEntity", "failed to save graph"))
		}
		g = merged

		s.metrics.EntityExpanded()
		s.logger.Info("Entity expanded",
			zap.String("graphID", g.ID),
			zap.String("entityID", root.ID),
			zap.Int("added", added),
		)
		s.publish(ctx, graph.NewEvent(graph.EventGraphExpanded, g.ID, now, map[string]any{
			"entityId":      root.ID,
			"entitiesAdded": added,
		}))
	}
	span.SetAttributes(attribute.Int("entities.added", added))

	sub, _ := s.analyzer.Neighbors(g, root.ID, depth)
	return sub, nil
}

// discover walks outwards from root level by level, collecting up to limit
// mentions from the sentences of each frontier entity that g has no entity
// for.
func (s *Service) discover(g graph.KnowledgeGraph, root graph.Entity, depth, limit int) graph.Subgraph {
	found := graph.Subgraph{Entities: []graph.Entity{}, Relationships: []graph.Relationship{}}

	known := make(map[string]bool, len(g.Entities))
	for _, e := range g.Entities {
		known[services.NormalizeName(e.Name)] = true
	}

	sentences := s.text.SplitSentences(g.SourceText)
	frontier := []graph.Entity{root}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []graph.Entity
		for _, from := range frontier {
			nearby := s.text.SentencesMentioning(sentences, from.Name)
			for _, m := range s.text.ExtractMentions(nearby, expandMinConceptCount) {
				if len(found.Entities) >= limit {
					return found
				}
				if known[m.Key()] {
					continue
				}
				known[m.Key()] = true

				e := graph.Entity{
					ID:   s.newID(),
					Name: m.Name,
					Type: m.Type,
					Properties: map[string]string{
						"mentions":     strconv.Itoa(m.Count),
						"expandedFrom": from.ID,
					},
				}
				found.Entities = append(found.Entities, e)
				found.Relationships = append(found.Relationships, graph.Relationship{
					ID:     s.newID(),
					From:   from.ID,
					To:     e.ID,
					Type:   RelationshipRelatedTo,
					Weight: float64(m.Count),
				})
				next = append(next, e)
			}
		}
		frontier = next
	}
	return found
}

// DeleteGraph removes a stored graph.
func (s *Service) DeleteGraph(ctx context.Context, graphID string) error {
	ctx, span := s.tracer.Start(ctx, "GraphService.DeleteGraph", trace.WithAttributes(attribute.String("graph.id", graphID)))
	defer span.End()

	if err := requireGraphID(graphID); err != nil {
		return fail(span, err)
	}
	if err := s.repo.Delete(ctx, graphID); err != nil {
		return fail(span, err)
	}

	s.metrics.GraphDeleted()
	s.logger.Info("Graph deleted", zap.String("graphID", graphID))
	s.publish(ctx, graph.NewEvent(graph.EventGraphDeleted, graphID, s.now(), nil))
	return nil
}

// ExecuteQuery answers a structured query against a stored graph.
func (s *Service) ExecuteQuery(ctx context.Context, in graph.ExecuteQueryInput) (graph.QueryResult, error) {
	ctx, span := s.tracer.Start(ctx, "GraphService.ExecuteQuery", trace.WithAttributes(
		attribute.String("graph.id", in.GraphID),
		attribute.String("query.type", string(in.QueryType)),
	))
	defer span.End()

	if err := validation.Validate(in); err != nil {
		return graph.QueryResult{}, fail(span, err)
	}

	g, err := s.repo.FindByID(ctx, in.GraphID)
	if err != nil {
		return graph.QueryResult{}, fail(span, err)
	}

	result := graph.QueryResult{
		GraphID:   g.ID,
		QueryType: in.QueryType,
		Params:    in.Params,
	}

	var sub graph.Subgraph
	switch in.QueryType {
	case graph.QueryNeighbors:
		entityID, err := requireParam(in.Params, "entityId")
		if err != nil {
			return graph.QueryResult{}, fail(span, err)
		}
		depth, err := depthParam(in.Params)
		if err != nil {
			return graph.QueryResult{}, fail(span, err)
		}
		var ok bool
		if sub, ok = s.analyzer.Neighbors(g, entityID, depth); !ok {
			return graph.QueryResult{}, fail(span, entityNotFound(entityID))
		}

	case graph.QueryPath:
		from, err := requireParam(in.Params, "from")
		if err != nil {
			return graph.QueryResult{}, fail(span, err)
		}
		to, err := requireParam(in.Params, "to")
		if err != nil {
			return graph.QueryResult{}, fail(span, err)
		}
		for _, id := range []string{from, to} {
			if _, ok := g.Entity(id); !ok {
				return graph.QueryResult{}, fail(span, entityNotFound(id))
			}
		}
		path := s.analyzer.ShortestPath(g, from, to)
		sub = s.analyzer.PathSubgraph(g, path)
		result.Paths = [][]string{}
		if path != nil {
			result.Paths = append(result.Paths, path)
		}

	case graph.QuerySearch:
		term, err := requireParam(in.Params, "term")
		if err != nil {
			return graph.QueryResult{}, fail(span, err)
		}
		sub = s.analyzer.Search(g, term)

	case graph.QueryStats:
		stats := s.analyzer.Stats(g)
		result.Stats = &stats
	}

	result.Entities = sub.Entities
	result.Relationships = sub.Relationships
	if result.Entities == nil {
		result.Entities = []graph.Entity{}
	}
	if result.Relationships == nil {
		result.Relationships = []graph.Relationship{}
	}

	s.metrics.QueryExecuted(string(in.QueryType))
	s.logger.Debug("Query executed",
		zap.String("graphID", g.ID),
		zap.String("queryType", string(in.QueryType)),
		zap.Int("entities", len(result.Entities)),
	)
	return result, nil
}

// publish hands events to the bus. The graph is already stored, so a failed
// publish is logged and not returned.
func (s *Service) publish(ctx context.Context, events ...graph.Event) {
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func graphName(name string, sentences []string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if len(sentences) == 0 {
		return untitledGraphName
	}
	runes := []rune(sentences[0])
	if len(runes) <= maxNameLength {
		return sentences[0]
	}
	return strings.TrimSpace(string(runes[:maxNameLength])) + "..."
}

// sharedSentences counts the common values of two ascending index lists.
func sharedSentences(a, b []int) int {
	n := 0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

func requireGraphID(graphID string) error {
	if strings.TrimSpace(graphID) == "" {
		return apperrors.Validation("INVALID_INPUT", "Invalid input: graphId is required").Build()
	}
	return nil
}

func requireParam(params graph.QueryParams, name string) (string, error) {
	v := strings.TrimSpace(params[name])
	if v == "" {
		return "", apperrors.Validation("INVALID_PARAMS", "Invalid input: params."+name+" is required").Build()
	}
	return v, nil
}

func depthParam(params graph.QueryParams) (int, error) {
	raw := strings.TrimSpace(params["depth"])
	if raw == "" {
		return 1, nil
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth < 1 || depth > 3 {
		return 0, apperrors.Validation("INVALID_PARAMS", "Invalid input: params.depth must be between 1 and 3").Build()
	}
	return depth, nil
}

func entityNotFound(entityID string) error {
	return apperrors.NotFound("ENTITY_NOT_FOUND", "Entity not found").
		WithResource("entity").
		WithDetails(entityID).
		Build()
}
