package dynamodb

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-graph/internal/repository"
	"brain2-graph/internal/repository/repotest"
)

var _ repository.GraphRepository = (*GraphRepository)(nil)

// fakeTable is a single-table DynamoDB stand-in keyed by PK.
type fakeTable struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	scans    int
	lastScan *awsDynamodb.ScanInput
	failPuts error
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]types.AttributeValue), pageSize: 2}
}

func pk(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeTable) GetItem(_ context.Context, in *awsDynamodb.GetItemInput, _ ...func(*awsDynamodb.Options)) (*awsDynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &awsDynamodb.GetItemOutput{Item: f.items[pk(in.Key)]}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *awsDynamodb.PutItemInput, _ ...func(*awsDynamodb.Options)) (*awsDynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPuts != nil {
		return nil, f.failPuts
	}
	f.items[pk(in.Item)] = in.Item
	return &awsDynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) DeleteItem(_ context.Context, in *awsDynamodb.DeleteItemInput, _ ...func(*awsDynamodb.Options)) (*awsDynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pk(in.Key)
	if _, ok := f.items[key]; !ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(f.items, key)
	return &awsDynamodb.DeleteItemOutput{}, nil
}

// Scan pages through items in PK order so pagination is exercised.
func (f *fakeTable) Scan(_ context.Context, in *awsDynamodb.ScanInput, _ ...func(*awsDynamodb.Options)) (*awsDynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	f.lastScan = in

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := pk(in.ExclusiveStartKey)
		for start < len(keys) && keys[start] <= after {
			start++
		}
	}
	end := min(start+f.pageSize, len(keys))

	out := &awsDynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[k])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: keys[end-1]},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		}
	}
	return out, nil
}

func TestGraphRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.GraphRepository {
		return NewGraphRepository(newFakeTable(), "graphs", nil)
	})
}

func TestGraphRepository_ItemLayout(t *testing.T) {
	table := newFakeTable()
	repo := NewGraphRepository(table, "graphs", nil)
	g := repotest.Graph("g1", repotestTime())

	require.NoError(t, repo.Save(context.Background(), g))

	item := table.items["GRAPH#g1"]
	require.NotNil(t, item)
	assert.Equal(t, &types.AttributeValueMemberS{Value: metadataSK}, item["SK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "graph"}, item["EntityType"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "2"}, item["EntityCount"])
}

func TestGraphRepository_ListPaginatesWithProjection(t *testing.T) {
	table := newFakeTable()
	repo := NewGraphRepository(table, "graphs", nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, repo.Save(ctx, repotest.Graph(id, repotestTime())))
	}

	summaries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 5)
	assert.Equal(t, 3, table.scans)
	require.NotNil(t, table.lastScan.ProjectionExpression)
	require.NotNil(t, table.lastScan.FilterExpression)
	assert.Equal(t, "graphs", aws.ToString(table.lastScan.TableName))
}

func TestGraphRepository_SaveError(t *testing.T) {
	table := newFakeTable()
	table.failPuts = errors.New("throttled")
	repo := NewGraphRepository(table, "graphs", nil)

	err := repo.Save(context.Background(), repotest.Graph("g1", repotestTime()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func repotestTime() time.Time {
	return time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
}
