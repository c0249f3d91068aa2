// Package dynamodb implements the repositories on a single DynamoDB table. Every entity has a
// canonical item plus index items projected onto GSI1 or GSI2; multi-item writes go through
// TransactWriteItems so an index never disagrees with its canonical item.
package dynamodb

import (
	"context"
	"fmt"

	"collective-rides/application/ports"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client used by the repositories
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Table names the table and its two secondary indexes
type Table struct {
	Name      string
	GSI1Index string
	GSI2Index string
}

type indexName int

const (
	indexTable indexName = iota
	indexGSI1
	indexGSI2
)

func (i indexName) keyAttributes() (pk, sk string) {
	switch i {
	case indexGSI1:
		return attrGSI1PK, attrGSI1SK
	case indexGSI2:
		return attrGSI2PK, attrGSI2SK
	default:
		return attrPK, attrSK
	}
}

// store holds what the three repositories share
type store struct {
	client API
	table  Table
	tracer *observability.Tracer
	logger *zap.Logger
}

func newStore(client API, table Table, tracer *observability.Tracer, logger *zap.Logger) store {
	if table.GSI1Index == "" {
		table.GSI1Index = "GSI1"
	}
	if table.GSI2Index == "" {
		table.GSI2Index = "GSI2"
	}
	return store{client: client, table: table, tracer: tracer, logger: logger}
}

func (s store) indexName(index indexName) *string {
	switch index {
	case indexGSI1:
		return aws.String(s.table.GSI1Index)
	case indexGSI2:
		return aws.String(s.table.GSI2Index)
	default:
		return nil
	}
}

func (s store) keyOf(key itemKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: key.PK},
		attrSK: &types.AttributeValueMemberS{Value: key.SK},
	}
}

// getItem reads one item with strong consistency. A missing item returns nil, nil.
func (s store) getItem(ctx context.Context, op string, key itemKey) (map[string]types.AttributeValue, error) {
	var out *dynamodb.GetItemOutput
	err := s.tracer.TraceFunction(ctx, "DynamoDB.GetItem", func(ctx context.Context) error {
		var err error
		out, err = s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(s.table.Name),
			Key:            s.keyOf(key),
			ConsistentRead: aws.Bool(true),
		})
		return err
	})
	if err != nil {
		s.logger.Error("DynamoDB GetItem failed",
			zap.String("operation", op),
			zap.String("PK", key.PK),
			zap.String("SK", key.SK),
			zap.Error(err),
		)
		return nil, pkgerrors.NewDatabaseError(op, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// put builds a transactional Put, with an optional condition
func (s store) put(item interface{}, cond *expression.ConditionBuilder) (types.TransactWriteItem, error) {
	av, err := marshalItem(item)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	put := &types.Put{
		TableName: aws.String(s.table.Name),
		Item:      av,
	}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to build condition: %w", err)
		}
		put.ConditionExpression = expr.Condition()
		put.ExpressionAttributeNames = expr.Names()
		put.ExpressionAttributeValues = expr.Values()
	}
	return types.TransactWriteItem{Put: put}, nil
}

// del builds a transactional Delete
func (s store) del(key itemKey) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName: aws.String(s.table.Name),
		Key:       s.keyOf(key),
	}}
}

// transact runs the items as one all-or-nothing write. Condition failures and lost races are
// returned unwrapped so callers can inspect the cancellation reasons.
func (s store) transact(ctx context.Context, op string, items []types.TransactWriteItem) error {
	err := s.tracer.TraceFunction(ctx, "DynamoDB.TransactWriteItems", func(ctx context.Context) error {
		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		return err
	})
	if err == nil {
		return nil
	}
	if _, cancelled := failedConditions(err); cancelled {
		s.logger.Debug("DynamoDB transaction cancelled",
			zap.String("operation", op),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return err
	}
	s.logger.Error("DynamoDB transaction failed",
		zap.String("operation", op),
		zap.Int("items", len(items)),
		zap.Error(err),
	)
	return pkgerrors.NewDatabaseError(op, err)
}

// pageQuery describes one page of a listing over a single partition
type pageQuery struct {
	op        string
	index     indexName
	partition string
	// sortPrefix narrows the partition with begins_with; empty means the whole partition
	sortPrefix string
	filter     *expression.ConditionBuilder
	limit      int
	cursor     string
}

// queryPage reads limit+1 items to decide hasMore without a second round trip. When a filter
// discards items DynamoDB may stop on its Limit with fewer survivors; hasMore then follows the
// returned LastEvaluatedKey, so it reports unscanned key range, not surviving items.
func (s store) queryPage(ctx context.Context, q pageQuery) ([]map[string]types.AttributeValue, string, bool, error) {
	if q.limit <= 0 {
		q.limit = ports.DefaultListLimit
	}
	start, err := DecodeCursor(q.cursor)
	if err != nil {
		return nil, "", false, err
	}
	if start != nil && start.partition(q.index) != q.partition {
		return nil, "", false, ports.ErrInvalidCursor{Reason: "cursor belongs to a different listing"}
	}

	pkAttr, skAttr := q.index.keyAttributes()
	keyCond := expression.Key(pkAttr).Equal(expression.Value(q.partition))
	if q.sortPrefix != "" {
		keyCond = keyCond.And(expression.Key(skAttr).BeginsWith(q.sortPrefix))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if q.filter != nil {
		builder = builder.WithFilter(*q.filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table.Name),
		IndexName:                 s.indexName(q.index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(q.limit + 1)),
	}
	if start != nil {
		input.ExclusiveStartKey = start.ToDynamoDBKey()
	}

	var out *dynamodb.QueryOutput
	err = s.tracer.TraceFunction(ctx, "DynamoDB.Query", func(ctx context.Context) error {
		var err error
		out, err = s.client.Query(ctx, input)
		return err
	})
	if err != nil {
		s.logger.Error("DynamoDB query failed",
			zap.String("operation", q.op),
			zap.String("partition", q.partition),
			zap.Error(err),
		)
		return nil, "", false, pkgerrors.NewDatabaseError(q.op, err)
	}

	items := out.Items
	if len(items) > q.limit {
		items = items[:q.limit]
		return items, EncodeCursor(FromDynamoDBKey(items[len(items)-1], q.index)), true, nil
	}
	if len(out.LastEvaluatedKey) > 0 {
		return items, EncodeCursor(FromDynamoDBKey(out.LastEvaluatedKey, q.index)), true, nil
	}
	return items, "", false, nil
}

// queryAll reads every matching item of a partition, following LastEvaluatedKey
func (s store) queryAll(ctx context.Context, op string, index indexName, keyCond expression.KeyConditionBuilder, filter *expression.ConditionBuilder) ([]map[string]types.AttributeValue, error) {
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table.Name),
		IndexName:                 s.indexName(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var items []map[string]types.AttributeValue
	for {
		var out *dynamodb.QueryOutput
		err := s.tracer.TraceFunction(ctx, "DynamoDB.Query", func(ctx context.Context) error {
			var err error
			out, err = s.client.Query(ctx, input)
			return err
		})
		if err != nil {
			s.logger.Error("DynamoDB query failed", zap.String("operation", op), zap.Error(err))
			return nil, pkgerrors.NewDatabaseError(op, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
