package feature_store_registry

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	fsruntime "github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const s3ArtifactsPrefix = "feature-store-runs"

// ControlPlaneClient is the subset of the SageMaker API driving feature
// group lifecycle.
type ControlPlaneClient interface {
	DescribeFeatureGroup(ctx context.Context, params *sagemaker.DescribeFeatureGroupInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeFeatureGroupOutput, error)
	CreateFeatureGroup(ctx context.Context, params *sagemaker.CreateFeatureGroupInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateFeatureGroupOutput, error)
	DeleteFeatureGroup(ctx context.Context, params *sagemaker.DeleteFeatureGroupInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DeleteFeatureGroupOutput, error)
}

// QueryEngineClient is the subset of the Athena API used to run queries
// against the offline store.
type QueryEngineClient interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

// ObjectStoreClient is the subset of the S3 API used for query results and
// offline store teardown.
type ObjectStoreClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// IngestionClient writes records into the online store.
type IngestionClient interface {
	PutRecord(ctx context.Context, params *fsruntime.PutRecordInput, optFns ...func(*fsruntime.Options)) (*fsruntime.PutRecordOutput, error)
}

// IdentityClient resolves the caller account, needed to derive offline
// store object prefixes.
type IdentityClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// JournalClient is the subset of the DynamoDB API backing the lifecycle
// event journal.
type JournalClient interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// MessageQueueClient is the subset of the SQS API used by the streamed
// record ingestion loop.
type MessageQueueClient interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type FeatureStoreRegistry struct {
	sagemakerClient ControlPlaneClient
	athenaClient    QueryEngineClient
	s3Client        ObjectStoreClient
	runtimeClient   IngestionClient
	stsClient       IdentityClient
	dynamodbClient  JournalClient
	sqsClient       MessageQueueClient

	region string

	queryPollInterval       time.Duration
	replicationPollInterval time.Duration
}

func New(ctx context.Context) (*FeatureStoreRegistry, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %w", err)
	}

	svc := dynamodb.NewFromConfig(cfg)
	if err = migrate(ctx, svc); err != nil {
		return nil, err
	}

	return &FeatureStoreRegistry{
		sagemakerClient:         sagemaker.NewFromConfig(cfg),
		athenaClient:            athena.NewFromConfig(cfg),
		s3Client:                s3.NewFromConfig(cfg),
		runtimeClient:           fsruntime.NewFromConfig(cfg),
		stsClient:               sts.NewFromConfig(cfg),
		dynamodbClient:          svc,
		sqsClient:               sqs.NewFromConfig(cfg),
		region:                  cfg.Region,
		queryPollInterval:       QueryPollInterval,
		replicationPollInterval: ReplicationPollInterval,
	}, nil
}

func (registry *FeatureStoreRegistry) callerAccount(ctx context.Context) (string, error) {
	identity, err := registry.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("couldn't get caller identity, %w", err)
	}
	return aws.ToString(identity.Account), nil
}
