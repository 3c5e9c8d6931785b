// Package dynamodb stores graphs in a single DynamoDB table, one item per
// graph.
//
// Item layout:
//
//	PK          GRAPH#<id>
//	SK          METADATA
//	EntityType  graph
//	Entities    list of maps
//	...
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"brain2-graph/internal/domain/graph"
	"brain2-graph/internal/repository"
)

const (
	entityType = "graph"
	metadataSK = "METADATA"
)

// API is the subset of the DynamoDB client the repository calls.
type API interface {
	GetItem(ctx context.Context, params *awsDynamodb.GetItemInput, optFns ...func(*awsDynamodb.Options)) (*awsDynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *awsDynamodb.PutItemInput, optFns ...func(*awsDynamodb.Options)) (*awsDynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *awsDynamodb.DeleteItemInput, optFns ...func(*awsDynamodb.Options)) (*awsDynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *awsDynamodb.ScanInput, optFns ...func(*awsDynamodb.Options)) (*awsDynamodb.ScanOutput, error)
}

type graphItem struct {
	PK                string               `dynamodbav:"PK"`
	SK                string               `dynamodbav:"SK"`
	EntityType        string               `dynamodbav:"EntityType"`
	ID                string               `dynamodbav:"ID"`
	Name              string               `dynamodbav:"Name"`
	SourceText        string               `dynamodbav:"SourceText"`
	Entities          []graph.Entity       `dynamodbav:"Entities"`
	Relationships     []graph.Relationship `dynamodbav:"Relationships"`
	EntityCount       int                  `dynamodbav:"EntityCount"`
	RelationshipCount int                  `dynamodbav:"RelationshipCount"`
	CreatedAt         time.Time            `dynamodbav:"CreatedAt"`
	UpdatedAt         time.Time            `dynamodbav:"UpdatedAt"`
}

type summaryItem struct {
	ID                string    `dynamodbav:"ID"`
	Name              string    `dynamodbav:"Name"`
	EntityCount       int       `dynamodbav:"EntityCount"`
	RelationshipCount int       `dynamodbav:"RelationshipCount"`
	UpdatedAt         time.Time `dynamodbav:"UpdatedAt"`
}

// GraphRepository implements repository.GraphRepository on DynamoDB.
type GraphRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewGraphRepository creates a repository over tableName.
func NewGraphRepository(client API, tableName string, logger *zap.Logger) *GraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func partitionKey(id string) string {
	return "GRAPH#" + id
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: partitionKey(id)},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

func (r *GraphRepository) Save(ctx context.Context, g graph.KnowledgeGraph) error {
	g = g.Clone()
	item, err := attributevalue.MarshalMap(graphItem{
		PK:                partitionKey(g.ID),
		SK:                metadataSK,
		EntityType:        entityType,
		ID:                g.ID,
		Name:              g.Name,
		SourceText:        g.SourceText,
		Entities:          g.Entities,
		Relationships:     g.Relationships,
		EntityCount:       len(g.Entities),
		RelationshipCount: len(g.Relationships),
		CreatedAt:         g.CreatedAt.UTC(),
		UpdatedAt:         g.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal graph %s: %w", g.ID, err)
	}

	_, err = r.client.PutItem(ctx, &awsDynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("DynamoDB PutItem failed: %w", err)
	}

	r.logger.Debug("stored graph",
		zap.String("graphID", g.ID),
		zap.Int("entities", len(g.Entities)),
	)
	return nil
}

func (r *GraphRepository) FindByID(ctx context.Context, id string) (graph.KnowledgeGraph, error) {
	out, err := r.client.GetItem(ctx, &awsDynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return graph.KnowledgeGraph{}, fmt.Errorf("DynamoDB GetItem failed: %w", err)
	}
	if out.Item == nil {
		return graph.KnowledgeGraph{}, repository.NewNotFound(id)
	}

	var item graphItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return graph.KnowledgeGraph{}, fmt.Errorf("failed to unmarshal graph %s: %w", id, err)
	}

	g := graph.KnowledgeGraph{
		ID:            item.ID,
		Name:          item.Name,
		SourceText:    item.SourceText,
		Entities:      item.Entities,
		Relationships: item.Relationships,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
	return g.Clone(), nil
}

func (r *GraphRepository) List(ctx context.Context) ([]graph.GraphSummary, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityType))).
		WithProjection(expression.NamesList(
			expression.Name("ID"),
			expression.Name("Name"),
			expression.Name("EntityCount"),
			expression.Name("RelationshipCount"),
			expression.Name("UpdatedAt"),
		)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	paginator := awsDynamodb.NewScanPaginator(r.client, &awsDynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	summaries := make([]graph.GraphSummary, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DynamoDB Scan failed: %w", err)
		}

		var items []summaryItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal graph summaries: %w", err)
		}
		for _, item := range items {
			summaries = append(summaries, graph.GraphSummary{
				ID:                item.ID,
				Name:              item.Name,
				EntityCount:       item.EntityCount,
				RelationshipCount: item.RelationshipCount,
				UpdatedAt:         item.UpdatedAt,
			})
		}
	}

	repository.SortSummaries(summaries)
	return summaries, nil
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build delete condition: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &awsDynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       itemKey(id),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return repository.NewNotFound(id)
		}
		return fmt.Errorf("DynamoDB DeleteItem failed: %w", err)
	}

	r.logger.Debug("deleted graph", zap.String("graphID", id))
	return nil
}
