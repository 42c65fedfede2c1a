package feature_store_registry

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	fsruntime "github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime"
	fsrtypes "github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// EventTimeFeatureName is the feature stamped onto every ingested record
// when the source data carries no event time of its own.
const EventTimeFeatureName = "event_time"

// PutRecord writes a single record into the online store of the feature
// group. Values are passed as strings, the way the runtime API takes them.
func (registry *FeatureStoreRegistry) PutRecord(ctx context.Context, featureGroupName string, features map[string]string) error {
	record := make([]fsrtypes.FeatureValue, 0, len(features))
	for name, value := range features {
		record = append(record, fsrtypes.FeatureValue{
			FeatureName:   aws.String(name),
			ValueAsString: aws.String(value),
		})
	}

	_, err := registry.runtimeClient.PutRecord(ctx, &fsruntime.PutRecordInput{
		FeatureGroupName: aws.String(featureGroupName),
		Record:           record,
	})
	if err != nil {
		return fmt.Errorf("failed to put record into feature group %q, %w", featureGroupName, err)
	}
	return nil
}

// IngestCSVFile ingests every row of a headered CSV file into the feature
// group and returns the number of records written. Rows without an
// event_time column get one stamped with the current time.
func (registry *FeatureStoreRegistry) IngestCSVFile(ctx context.Context, featureGroupName, csvPath string) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open records file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read records file header: %w", err)
	}

	hasEventTime := false
	for _, header := range headers {
		if header == EventTimeFeatureName {
			hasEventTime = true
		}
	}

	log.Printf("Ingesting data into feature group: %s...", featureGroupName)
	count := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read records file row: %w", err)
		}

		features := make(map[string]string, len(headers)+1)
		for i, header := range headers {
			features[header] = row[i]
		}
		if !hasEventTime {
			features[EventTimeFeatureName] = strconv.FormatInt(time.Now().Unix(), 10)
		}

		if err := registry.PutRecord(ctx, featureGroupName, features); err != nil {
			return count, err
		}
		count++
	}

	log.Printf("%d records ingested into feature group: %s", count, featureGroupName)
	return count, nil
}

// ServeRecordQueue long-polls the given queue for JSON-encoded records and
// ingests each one into the feature group, deleting messages only after a
// successful write so failed records are redelivered. It runs until ctx is
// cancelled.
func (registry *FeatureStoreRegistry) ServeRecordQueue(ctx context.Context, queueName, featureGroupName string) error {
	urlOutput, err := registry.sqsClient.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return fmt.Errorf("error getting SQS queue URL for name %q, %w", queueName, err)
	}
	queueURL := aws.ToString(urlOutput.QueueUrl)

	log.Println("Waiting for records on queue", queueName)
	for {
		// Receive messages with long polling
		output, err := registry.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20, // Long polling timeout (maximum 20 seconds)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to receive messages, %w", err)
		}

		for _, message := range output.Messages {
			features, err := decodeRecordMessage(aws.ToString(message.Body))
			if err != nil {
				log.Printf("Dropping malformed record message: %v", err)
			} else if err := registry.PutRecord(ctx, featureGroupName, features); err != nil {
				log.Printf("Failed to ingest record, it will be redelivered: %v", err)
				continue
			}

			_, err = registry.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(queueURL),
				ReceiptHandle: message.ReceiptHandle,
			})
			if err != nil {
				log.Printf("failed to remove message from the queue (non-critical error): %v", err)
			}
		}
	}
}

// decodeRecordMessage turns a JSON object of scalar feature values into
// the string map PutRecord takes, stamping event_time when absent.
func decodeRecordMessage(body string) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("record message is not a JSON object: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("record message has no features")
	}

	features := make(map[string]string, len(raw)+1)
	for name, value := range raw {
		switch v := value.(type) {
		case string:
			features[name] = v
		case float64:
			features[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			features[name] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("feature %q has non-scalar value %v", name, value)
		}
	}
	if _, ok := features[EventTimeFeatureName]; !ok {
		features[EventTimeFeatureName] = strconv.FormatInt(time.Now().Unix(), 10)
	}
	return features, nil
}
