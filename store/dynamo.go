package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/grove/internal/shard"
	"github.com/jacentio/grove/uid"
)

// attrScope is the scope index partition key. It is never returned to callers.
const attrScope = "scope"

// DynamoAPI is the subset of the DynamoDB client used by Dynamo.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Dynamo is a Collection stored in a DynamoDB table keyed by uid.
type Dynamo struct {
	client DynamoAPI
	config DynamoConfig
}

// NewDynamo creates a new Dynamo collection.
func NewDynamo(client DynamoAPI, config DynamoConfig) *Dynamo {
	config.validate()
	return &Dynamo{
		client: client,
		config: config,
	}
}

// Config returns the effective configuration.
func (d *Dynamo) Config() DynamoConfig {
	return d.config
}

// EnsureTable creates the documents table and its scope index unless the
// table already exists, and waits for it to become active.
func (d *Dynamo) EnsureTable(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.config.Table),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", d.config.Table, err)
	}

	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.config.Table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(FieldUID), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(FieldUID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrScope), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(d.config.ScopeIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(attrScope), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(FieldUID), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", d.config.Table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.config.Table),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", d.config.Table, err)
	}
	return nil
}

// Insert stores doc, failing with ErrAlreadyExists if the uid is taken.
func (d *Dynamo) Insert(ctx context.Context, doc Document) error {
	id := doc.UID()
	if id == "" {
		return ErrMissingUID
	}

	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if scope := documentScope(doc); scope != "" {
		item[attrScope] = &types.AttributeValueMemberS{
			Value: shard.ScopePK(scope, id, d.config.NumShards),
		}
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.config.Table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#uid)"),
		ExpressionAttributeNames: uidNames(),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrAlreadyExists
	}
	return err
}

// Find returns the documents matching c. Patterns that pin class and realm
// query the scope index; all others scan the table.
func (d *Dynamo) Find(ctx context.Context, c Criteria) ([]Document, error) {
	if c.UID == nil {
		return nil, ErrUnboundCriteria
	}

	filter, err := equalsExpression(c.Equals)
	if err != nil {
		return nil, err
	}

	var raw []map[string]types.AttributeValue
	if scope, ok := patternScope(c.UID); ok {
		raw, err = d.queryScope(ctx, scope, c.UID.LiteralPrefix(), filter)
	} else {
		raw, err = d.scan(ctx, c.UID.LiteralPrefix(), filter)
	}
	if err != nil {
		return nil, err
	}

	docs := []Document{}
	for _, item := range raw {
		doc, err := DecodeItem(item)
		if err != nil {
			return nil, err
		}
		// The store narrows by prefix only; the pattern decides.
		if c.Matches(doc) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// UpdateMany sets the patch paths on every matching document. Documents that
// disappear between read and write are not counted.
func (d *Dynamo) UpdateMany(ctx context.Context, c Criteria, p Patch) (int, error) {
	docs, err := d.Find(ctx, c)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, doc := range docs {
		set, err := setExpression(planSet(doc, p))
		if err != nil {
			return n, err
		}
		if len(set.clauses) == 0 {
			continue
		}

		_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(d.config.Table),
			Key:                       uidKey(doc.UID()),
			UpdateExpression:          aws.String("SET " + joinStrings(set.clauses, ", ")),
			ConditionExpression:       aws.String("attribute_exists(#uid)"),
			ExpressionAttributeNames:  mergeExprNames(set.names, uidNames()),
			ExpressionAttributeValues: nonEmptyValues(set.values),
		})
		if err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// RemoveMany deletes every matching document.
func (d *Dynamo) RemoveMany(ctx context.Context, c Criteria) (int, error) {
	docs, err := d.Find(ctx, c)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, doc := range docs {
		_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                aws.String(d.config.Table),
			Key:                      uidKey(doc.UID()),
			ConditionExpression:      aws.String("attribute_exists(#uid)"),
			ExpressionAttributeNames: uidNames(),
		})
		if err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// queryScope queries every shard of a scope for uids starting with prefix.
func (d *Dynamo) queryScope(ctx context.Context, scope, prefix string, filter *expression) ([]map[string]types.AttributeValue, error) {
	keys := shard.ScopePKs(scope, d.config.NumShards)

	// Fast path for single shard (default)
	if len(keys) == 1 {
		return d.queryShard(ctx, keys[0], prefix, filter)
	}

	// Multi-shard fan-out
	var mu sync.Mutex
	var all []map[string]types.AttributeValue
	var wg sync.WaitGroup
	errs := make(chan error, len(keys))

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()

			items, err := d.queryShard(ctx, key, prefix, filter)
			if err != nil {
				errs <- fmt.Errorf("shard %s: %w", key, err)
				return
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
		}(key)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return all, nil
}

func (d *Dynamo) queryShard(ctx context.Context, key, prefix string, filter *expression) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.config.Table),
		IndexName:              aws.String(d.config.ScopeIndex),
		KeyConditionExpression: aws.String("#scope = :scope AND begins_with(#uid, :prefix)"),
		ExpressionAttributeNames: mergeExprNames(
			map[string]string{"#scope": attrScope},
			uidNames(),
			filter.names,
		),
		ExpressionAttributeValues: mergeExprValues(
			map[string]types.AttributeValue{
				":scope":  &types.AttributeValueMemberS{Value: key},
				":prefix": &types.AttributeValueMemberS{Value: prefix},
			},
			filter.values,
		),
	}
	if len(filter.clauses) > 0 {
		input.FilterExpression = aws.String(joinStrings(filter.clauses, " AND "))
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// scan reads the whole table, narrowed by uid prefix and equality filter.
func (d *Dynamo) scan(ctx context.Context, prefix string, filter *expression) ([]map[string]types.AttributeValue, error) {
	clauses := filter.clauses
	names := filter.names
	values := filter.values
	if prefix != "" {
		clauses = append([]string{"begins_with(#uid, :prefix)"}, clauses...)
		names = mergeExprNames(names, uidNames())
		values = mergeExprValues(values, map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		})
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(d.config.Table),
	}
	if len(clauses) > 0 {
		input.FilterExpression = aws.String(joinStrings(clauses, " AND "))
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = nonEmptyValues(values)
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// documentScope returns "klass:realm" for a record.
func documentScope(doc Document) string {
	klass, _ := doc[FieldKlass].(string)
	realm, _ := doc[FieldRealm].(string)
	if klass == "" || realm == "" {
		return ""
	}
	return klass + ":" + realm
}

// patternScope returns the scope every match of p lies in, if the pattern's
// literal prefix fixes both class and realm.
func patternScope(p *uid.Pattern) (string, bool) {
	lit := p.LiteralPrefix()
	colon := strings.IndexByte(lit, ':')
	if colon <= 0 {
		return "", false
	}

	rest := lit[colon+1:]
	end := strings.IndexAny(rest, ".$")
	switch {
	case end > 0:
		rest = rest[:end]
	case end == 0:
		return "", false
	case p.HasWildcard():
		// The realm itself may continue past the wildcard.
		return "", false
	}
	if rest == "" {
		return "", false
	}
	return lit[:colon] + ":" + rest, true
}

func uidKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		FieldUID: &types.AttributeValueMemberS{Value: id},
	}
}

// DecodeItem converts a DynamoDB item to a Document, dropping the scope index
// attribute.
func DecodeItem(item map[string]types.AttributeValue) (Document, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	delete(doc, attrScope)
	return Document(doc), nil
}

var _ Collection = (*Dynamo)(nil)
