package feature_store_registry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	fsruntime "github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// describeStep scripts one answer of the fake control plane's describe
// endpoint. The last step repeats once the script runs out.
type describeStep struct {
	status        Status
	failureReason string
	offline       bool
	err           error
}

func notFoundStep() describeStep {
	return describeStep{err: &smtypes.ResourceNotFound{Message: aws.String("no such feature group")}}
}

type scriptedControlPlane struct {
	describeSteps []describeStep
	describeCalls int
	createCalls   int
	createErr     error
	deleteCalls   int
	deleteErr     error
}

func (f *scriptedControlPlane) DescribeFeatureGroup(
	_ context.Context, params *sagemaker.DescribeFeatureGroupInput, _ ...func(*sagemaker.Options),
) (*sagemaker.DescribeFeatureGroupOutput, error) {
	step := f.describeSteps[min(f.describeCalls, len(f.describeSteps)-1)]
	f.describeCalls++

	if step.err != nil {
		return nil, step.err
	}
	out := &sagemaker.DescribeFeatureGroupOutput{
		FeatureGroupName:   params.FeatureGroupName,
		FeatureGroupStatus: smtypes.FeatureGroupStatus(step.status),
	}
	if step.failureReason != "" {
		out.FailureReason = aws.String(step.failureReason)
	}
	if step.offline {
		out.OfflineStoreConfig = &smtypes.OfflineStoreConfig{
			DataCatalogConfig: &smtypes.DataCatalogConfig{
				TableName: aws.String("orders_replica"),
				Database:  aws.String("sagemaker_featurestore"),
			},
			S3StorageConfig: &smtypes.S3StorageConfig{
				S3Uri: aws.String("s3://offline-bucket/feature-store"),
			},
		}
	}
	return out, nil
}

func (f *scriptedControlPlane) CreateFeatureGroup(
	_ context.Context, _ *sagemaker.CreateFeatureGroupInput, _ ...func(*sagemaker.Options),
) (*sagemaker.CreateFeatureGroupOutput, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &sagemaker.CreateFeatureGroupOutput{}, nil
}

func (f *scriptedControlPlane) DeleteFeatureGroup(
	_ context.Context, _ *sagemaker.DeleteFeatureGroupInput, _ ...func(*sagemaker.Options),
) (*sagemaker.DeleteFeatureGroupOutput, error) {
	f.deleteCalls++
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &sagemaker.DeleteFeatureGroupOutput{}, nil
}

// scriptedQueryEngine hands out sequential execution ids and walks through
// the scripted states, repeating the last one.
type scriptedQueryEngine struct {
	states     []athenatypes.QueryExecutionState
	reason     string
	startCalls int
	getCalls   int
}

func (f *scriptedQueryEngine) StartQueryExecution(
	_ context.Context, _ *athena.StartQueryExecutionInput, _ ...func(*athena.Options),
) (*athena.StartQueryExecutionOutput, error) {
	f.startCalls++
	return &athena.StartQueryExecutionOutput{
		QueryExecutionId: aws.String(fmt.Sprintf("exec-%d", f.startCalls)),
	}, nil
}

func (f *scriptedQueryEngine) GetQueryExecution(
	_ context.Context, params *athena.GetQueryExecutionInput, _ ...func(*athena.Options),
) (*athena.GetQueryExecutionOutput, error) {
	state := f.states[min(f.getCalls, len(f.states)-1)]
	f.getCalls++

	status := &athenatypes.QueryExecutionStatus{State: state}
	if state == athenatypes.QueryExecutionStateFailed && f.reason != "" {
		status.StateChangeReason = aws.String(f.reason)
	}
	return &athena.GetQueryExecutionOutput{
		QueryExecution: &athenatypes.QueryExecution{
			QueryExecutionId: params.QueryExecutionId,
			Status:           status,
		},
	}, nil
}

// recordingObjectStore serves scripted bodies on download and records every
// storage interaction.
type recordingObjectStore struct {
	bodies        []string // successive GetObject payloads
	existingKeys  []string // what a ListObjectsV2 call reports
	getKeys       []string
	putKeys       []string
	deletedKeys   []string
	deleteBatches [][]string
	listCalls     int
}

func (f *recordingObjectStore) GetObject(
	_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	body := f.bodies[min(len(f.getKeys), len(f.bodies)-1)]
	f.getKeys = append(f.getKeys, aws.ToString(params.Key))
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *recordingObjectStore) PutObject(
	_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	f.putKeys = append(f.putKeys, aws.ToString(params.Key))
	return &s3.PutObjectOutput{}, nil
}

func (f *recordingObjectStore) ListObjectsV2(
	_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if f.listCalls == 1 {
		for _, key := range f.existingKeys {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *recordingObjectStore) DeleteObject(
	_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	f.deletedKeys = append(f.deletedKeys, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *recordingObjectStore) DeleteObjects(
	_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options),
) (*s3.DeleteObjectsOutput, error) {
	batch := make([]string, len(params.Delete.Objects))
	for i, object := range params.Delete.Objects {
		batch[i] = aws.ToString(object.Key)
	}
	f.deleteBatches = append(f.deleteBatches, batch)
	return &s3.DeleteObjectsOutput{}, nil
}

type recordingIngestion struct {
	putCalls    int
	lastRecord  map[string]string
	firstRecord map[string]string
}

func (f *recordingIngestion) PutRecord(
	_ context.Context, params *fsruntime.PutRecordInput, _ ...func(*fsruntime.Options),
) (*fsruntime.PutRecordOutput, error) {
	record := make(map[string]string, len(params.Record))
	for _, value := range params.Record {
		record[aws.ToString(value.FeatureName)] = aws.ToString(value.ValueAsString)
	}
	if f.putCalls == 0 {
		f.firstRecord = record
	}
	f.putCalls++
	f.lastRecord = record
	return &fsruntime.PutRecordOutput{}, nil
}

type staticIdentity struct {
	account string
}

func (f *staticIdentity) GetCallerIdentity(
	_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options),
) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func newTestRegistry(controlPlane ControlPlaneClient, queryEngine QueryEngineClient, objectStore ObjectStoreClient) *FeatureStoreRegistry {
	return &FeatureStoreRegistry{
		sagemakerClient:         controlPlane,
		athenaClient:            queryEngine,
		s3Client:                objectStore,
		stsClient:               &staticIdentity{account: "123456789012"},
		region:                  "eu-west-1",
		queryPollInterval:       time.Millisecond,
		replicationPollInterval: time.Millisecond,
	}
}

func countResultCSV(count int) string {
	return fmt.Sprintf("\"_col0\"\n\"%d\"\n", count)
}
