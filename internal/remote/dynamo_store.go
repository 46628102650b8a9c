package remote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/mbellis/driftq/internal/events"
)

// DynamoStore backs the remote document store with a single DynamoDB table,
// partition key "collection" (S) and sort key "id" (S). Field values map to
// native DynamoDB attribute types, so Update is a genuine partial merge via
// UpdateItem rather than a read-modify-write.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *events.Logger
}

// NewDynamoStore creates a DynamoDB-backed remote store using the default
// AWS credential chain.
func NewDynamoStore(ctx context.Context, tableName string, logger *events.Logger) (*DynamoStore, error) {
	if tableName == "" {
		return nil, fmt.Errorf("dynamodb table name required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
		logger:    logger.WithField("component", "dynamo_remote"),
	}, nil
}

// Create writes a document. DynamoDB does not assign ids, so an empty
// documentID gets a client-generated one.
func (s *DynamoStore) Create(ctx context.Context, collection, documentID string, fields map[string]any) (string, error) {
	if documentID == "" {
		documentID = uuid.NewString()
	}

	item := map[string]types.AttributeValue{
		"collection": &types.AttributeValueMemberS{Value: collection},
		"id":         &types.AttributeValueMemberS{Value: documentID},
	}
	for name, value := range fields {
		item[name] = toAttribute(value)
	}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("dynamodb put: %w", err)
	}

	s.logger.WithFields(map[string]any{
		"collection":  collection,
		"document_id": documentID,
	}).Debug("Created document")
	return documentID, nil
}

// Update merges fields into an existing document.
func (s *DynamoStore) Update(ctx context.Context, collection, documentID string, fields map[string]any) error {
	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	expr := ""

	i := 0
	for name, value := range fields {
		placeholder := strconv.Itoa(i)
		if i > 0 {
			expr += ", "
		}
		expr += "#f" + placeholder + " = :v" + placeholder
		names["#f"+placeholder] = name
		values[":v"+placeholder] = toAttribute(value)
		i++
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"collection": &types.AttributeValueMemberS{Value: collection},
			"id":         &types.AttributeValueMemberS{Value: documentID},
		},
		UpdateExpression:          aws.String("SET " + expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("dynamodb update: %w", err)
	}

	s.logger.WithFields(map[string]any{
		"collection":  collection,
		"document_id": documentID,
		"fields":      len(fields),
	}).Debug("Updated document")
	return nil
}

// Delete removes a document.
func (s *DynamoStore) Delete(ctx context.Context, collection, documentID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"collection": &types.AttributeValueMemberS{Value: collection},
			"id":         &types.AttributeValueMemberS{Value: documentID},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete: %w", err)
	}

	s.logger.WithFields(map[string]any{
		"collection":  collection,
		"document_id": documentID,
	}).Debug("Deleted document")
	return nil
}

// Close releases resources.
func (s *DynamoStore) Close() error {
	return nil
}

// toAttribute maps a native field value to a DynamoDB attribute.
func toAttribute(value any) types.AttributeValue {
	switch v := value.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: v}
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'g', -1, 64)}
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}
	case time.Time:
		return &types.AttributeValueMemberS{Value: v.UTC().Format(time.RFC3339Nano)}
	case []any:
		list := make([]types.AttributeValue, len(v))
		for i, item := range v {
			list[i] = toAttribute(item)
		}
		return &types.AttributeValueMemberL{Value: list}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}
