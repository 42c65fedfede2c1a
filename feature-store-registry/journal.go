package feature_store_registry

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func checkTableExists(ctx context.Context, svc JournalClient, name string) (bool, error) {
	tables, err := svc.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return false, fmt.Errorf("ListTables failed: %w", err)
	}
	for _, n := range tables.TableNames {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func createEventsTable(ctx context.Context, svc JournalClient) error {
	tableExists, err := checkTableExists(ctx, svc, EventsTable)
	if err != nil {
		return err
	}
	if tableExists {
		log.Println(EventsTable, "table already exists")
		return nil
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(EventsTable),
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("feature_group"),
				KeyType:       types.KeyTypeHash, // Partition key
			},
			{
				AttributeName: aws.String("event_uuid"),
				KeyType:       types.KeyTypeRange, // Sort key
			},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("feature_group"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("event_uuid"),
				AttributeType: types.ScalarAttributeTypeS, // UUIDv7, so sorts by time
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}

	_, err = svc.CreateTable(ctx, input)
	if err == nil {
		log.Println(EventsTable, "table created")
	}
	return err
}

func migrate(ctx context.Context, svc JournalClient) error {
	if err := createEventsTable(ctx, svc); err != nil {
		return fmt.Errorf("failed to create %q table: %w", EventsTable, err)
	}
	return nil
}

// RecordLifecycleEvent appends an event to the feature group's audit
// journal.
func (registry *FeatureStoreRegistry) RecordLifecycleEvent(ctx context.Context, event LifecycleEvent) error {
	av, err := attributevalue.MarshalMap(event)
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(EventsTable),
		Item:      av,
	}

	_, err = registry.dynamodbClient.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to record lifecycle event for %q: %w", event.FeatureGroup, err)
	}
	return nil
}

// GetLifecycleEvents returns all journaled events of a feature group in
// insertion order.
func (registry *FeatureStoreRegistry) GetLifecycleEvents(ctx context.Context, featureGroupName string) ([]LifecycleEvent, error) {
	result, err := registry.dynamodbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(EventsTable),
		KeyConditionExpression: aws.String("feature_group = :feature_group"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":feature_group": &types.AttributeValueMemberS{Value: featureGroupName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query lifecycle events: %w", err)
	}

	var events []LifecycleEvent
	err = attributevalue.UnmarshalListOfMaps(result.Items, &events)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal lifecycle events: %w", err)
	}

	return events, nil
}
