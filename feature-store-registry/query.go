package feature_store_registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// QueryFailedError reports a query execution that reached a failure state.
// Callers get it together with an empty result table, so a failed query is
// a branchable outcome rather than a workflow abort.
type QueryFailedError struct {
	ExecutionID string
	Reason      string
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("query execution %s failed: %s", e.ExecutionID, e.Reason)
}

// ResultTable is a parsed query result: a header row plus data rows, all as
// strings the way Athena materializes them.
type ResultTable struct {
	Headers []string
	Rows    [][]string
}

func (t *ResultTable) Empty() bool {
	return len(t.Rows) == 0
}

// Count interprets the table as the result of a COUNT(*) query.
func (t *ResultTable) Count() (int, error) {
	if t.Empty() || len(t.Rows[0]) == 0 {
		return 0, fmt.Errorf("result table has no rows")
	}
	count, err := strconv.Atoi(t.Rows[0][0])
	if err != nil {
		return 0, fmt.Errorf("result cell %q is not a count: %w", t.Rows[0][0], err)
	}
	return count, nil
}

// RunQuery submits queryString to the query engine and polls the execution
// every 2 seconds until it finishes. On success the materialized result is
// downloaded from outputLocation, parsed, and its local copy, remote
// artifact and metadata sidecar are all removed before returning. On
// failure an empty table and a *QueryFailedError are returned.
//
// No deadline is enforced; bound the wait through ctx.
func (registry *FeatureStoreRegistry) RunQuery(
	ctx context.Context,
	queryString string,
	outputLocation string,
	database string,
) (*ResultTable, error) {
	started, err := registry.athenaClient.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString:           aws.String(queryString),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{Database: aws.String(database)},
		ResultConfiguration:   &athenatypes.ResultConfiguration{OutputLocation: aws.String(outputLocation)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start query execution, %w", err)
	}
	executionID := aws.ToString(started.QueryExecutionId)

	for {
		out, err := registry.athenaClient.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(executionID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get query execution %s, %w", executionID, err)
		}

		status := out.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return registry.fetchQueryResult(ctx, executionID, outputLocation)
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(status.StateChangeReason)
			log.Printf("Query execution %s failed: %s", executionID, reason)
			return &ResultTable{}, &QueryFailedError{ExecutionID: executionID, Reason: reason}
		}

		if SleepInterruptibly(ctx, registry.queryPollInterval) {
			return nil, ctx.Err()
		}
	}
}

// fetchQueryResult downloads and parses the CSV artifact the query engine
// wrote for executionID, then deletes it locally and remotely along with
// its metadata sidecar. Cleanup is mandatory so temporary result objects
// never accumulate in the bucket.
func (registry *FeatureStoreRegistry) fetchQueryResult(ctx context.Context, executionID, outputLocation string) (*ResultTable, error) {
	bucket, prefix, err := splitS3URI(outputLocation)
	if err != nil {
		return nil, fmt.Errorf("bad query output location: %w", err)
	}
	resultKey := path.Join(prefix, executionID+".csv")

	localPath := filepath.Join(os.TempDir(), executionID+".csv")
	if err := registry.downloadObject(ctx, bucket, resultKey, localPath); err != nil {
		return nil, err
	}

	table, err := readResultCSV(localPath)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(localPath); err != nil {
		log.Printf("failed to remove local query result %q (non-critical error): %v", localPath, err)
	}

	for _, key := range []string{resultKey, resultKey + ".metadata"} {
		_, err := registry.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to delete query artifact %q from S3 bucket %q, %w", key, bucket, err)
		}
	}

	return table, nil
}

func readResultCSV(filePath string) (*ResultTable, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open query result file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse query result CSV: %w", err)
	}
	if len(records) == 0 {
		return &ResultTable{}, nil
	}

	return &ResultTable{Headers: records[0], Rows: records[1:]}, nil
}
