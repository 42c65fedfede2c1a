package feature_store_registry

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
)

// OfflineStoreDetails locates the analytical replica of a feature group:
// the Glue table and database to query and where to put temporary query
// results.
type OfflineStoreDetails struct {
	Table      string
	Database   string
	ResultsURI string
}

func (registry *FeatureStoreRegistry) OfflineStoreDetails(ctx context.Context, featureGroupName string) (*OfflineStoreDetails, error) {
	out, err := registry.sagemakerClient.DescribeFeatureGroup(ctx, &sagemaker.DescribeFeatureGroupInput{
		FeatureGroupName: aws.String(featureGroupName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe feature group %q, %w", featureGroupName, err)
	}

	cfg := out.OfflineStoreConfig
	if cfg == nil || cfg.DataCatalogConfig == nil || cfg.S3StorageConfig == nil {
		return nil, fmt.Errorf("feature group %q has no offline store", featureGroupName)
	}

	return &OfflineStoreDetails{
		Table:      aws.ToString(cfg.DataCatalogConfig.TableName),
		Database:   aws.ToString(cfg.DataCatalogConfig.Database),
		ResultsURI: aws.ToString(cfg.S3StorageConfig.S3Uri) + "/query_results",
	}, nil
}

// HistoricalRecordCount counts the records currently visible in the
// feature group's offline store.
func (registry *FeatureStoreRegistry) HistoricalRecordCount(ctx context.Context, featureGroupName string) (int, error) {
	details, err := registry.OfflineStoreDetails(ctx, featureGroupName)
	if err != nil {
		return 0, err
	}

	table, err := registry.RunQuery(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %q", details.Table),
		details.ResultsURI,
		details.Database)
	if err != nil {
		return 0, err
	}
	return table.Count()
}

// WaitForReplication blocks until the offline store of the feature group
// holds at least expectedCount records. Replication from the online store
// is asynchronous and can lag by minutes, so the count is re-checked every
// 60 seconds, forever. There is no built-in retry limit or deadline: the
// wait ends when the count catches up, a count query genuinely fails, or
// ctx is cancelled.
func (registry *FeatureStoreRegistry) WaitForReplication(ctx context.Context, featureGroupName string, expectedCount int) error {
	for {
		count, err := registry.HistoricalRecordCount(ctx, featureGroupName)
		if err != nil {
			return fmt.Errorf("failed to count offline store records for %q, %w", featureGroupName, err)
		}

		if count >= expectedCount {
			log.Printf("Features are available in the offline store for %s (%d of %d records)",
				featureGroupName, count, expectedCount)
			return nil
		}

		log.Printf("Waiting for data in offline store... (%d of %d records)", count, expectedCount)
		if SleepInterruptibly(ctx, registry.replicationPollInterval) {
			return ctx.Err()
		}
	}
}
