// Package sqlite stores graphs in an embedded SQLite database through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS graphs (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL DEFAULT '',
	source_text        TEXT NOT NULL DEFAULT '',
	entities           TEXT NOT NULL,
	relationships      TEXT NOT NULL,
	entity_count       INTEGER NOT NULL,
	relationship_count INTEGER NOT NULL,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_graphs_updated ON graphs (updated_at DESC, id);
`

// GraphRepository is a GraphRepository backed by one SQLite table. Entities
// and relationships are stored as JSON columns.
type GraphRepository struct {
	db   *sql.DB
	Path string
}

// Open opens (or creates) the database at path with WAL mode enabled and
// applies the schema.
func Open(ctx context.Context, path string) (*GraphRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &GraphRepository{db: db, Path: path}, nil
}

// Close closes the database connection.
func (r *GraphRepository) Close() error {
	return r.db.Close()
}

func (r *GraphRepository) Save(ctx context.Context, g graph.KnowledgeGraph) error {
	g = g.Clone()
	entities, err := json.Marshal(g.Entities)
	if err != nil {
		return fmt.Errorf("encoding entities: %w", err)
	}
	relationships, err := json.Marshal(g.Relationships)
	if err != nil {
		return fmt.Errorf("encoding relationships: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO graphs (id, name, source_text, entities, relationships,
			entity_count, relationship_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source_text = excluded.source_text,
			entities = excluded.entities,
			relationships = excluded.relationships,
			entity_count = excluded.entity_count,
			relationship_count = excluded.relationship_count,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		g.ID, g.Name, g.SourceText, string(entities), string(relationships),
		len(g.Entities), len(g.Relationships),
		g.CreatedAt.UnixNano(), g.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving graph %s: %w", g.ID, err)
	}
	return nil
}

func (r *GraphRepository) FindByID(ctx context.Context, id string) (graph.KnowledgeGraph, error) {
	var (
		g                       graph.KnowledgeGraph
		entities, relationships string
		created, updated        int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, source_text, entities, relationships, created_at, updated_at
		FROM graphs WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.SourceText, &entities, &relationships, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.KnowledgeGraph{}, repository.NewNotFound(id)
	}
	if err != nil {
		return graph.KnowledgeGraph{}, fmt.Errorf("loading graph %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(entities), &g.Entities); err != nil {
		return graph.KnowledgeGraph{}, fmt.Errorf("decoding entities of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(relationships), &g.Relationships); err != nil {
		return graph.KnowledgeGraph{}, fmt.Errorf("decoding relationships of %s: %w", id, err)
	}
	g.CreatedAt = fromUnixNano(created)
	g.UpdatedAt = fromUnixNano(updated)

	return g.Clone(), nil
}

func (r *GraphRepository) List(ctx context.Context) ([]graph.GraphSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, entity_count, relationship_count, updated_at
		FROM graphs ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	defer rows.Close()

	summaries := make([]graph.GraphSummary, 0)
	for rows.Next() {
		var (
			s       graph.GraphSummary
			updated int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.EntityCount, &s.RelationshipCount, &updated); err != nil {
			return nil, fmt.Errorf("scanning graph summary: %w", err)
		}
		s.UpdatedAt = fromUnixNano(updated)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	return summaries, nil
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting graph %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting graph %s: %w", id, err)
	}
	if n == 0 {
		return repository.NewNotFound(id)
	}
	return nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
