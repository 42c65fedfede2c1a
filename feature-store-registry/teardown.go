package feature_store_registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

// DeleteFeatureGroup tears down a feature group and blocks until the
// control plane no longer finds it. When alsoDeleteOfflineObjects is set
// and the group has an offline store, every object under the group's
// offline prefix is deleted first; failures there are logged and do not
// abort the teardown. Deleting a group that is already gone is a no-op, so
// the whole operation can be re-invoked after a partial failure.
func (registry *FeatureStoreRegistry) DeleteFeatureGroup(ctx context.Context, featureGroupName string, alsoDeleteOfflineObjects bool) error {
	described, err := registry.sagemakerClient.DescribeFeatureGroup(ctx, &sagemaker.DescribeFeatureGroupInput{
		FeatureGroupName: aws.String(featureGroupName),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFound
		if errors.As(err, &notFound) {
			log.Printf("Feature group %q is already gone", featureGroupName)
			return nil
		}
		return fmt.Errorf("failed to describe feature group %q, %w", featureGroupName, err)
	}

	if alsoDeleteOfflineObjects && described.OfflineStoreConfig != nil {
		if err := registry.deleteOfflineObjects(ctx, featureGroupName, described.OfflineStoreConfig); err != nil {
			log.Printf("failed to delete offline store objects for %q (non-critical error): %v", featureGroupName, err)
		}
	}

	_, err = registry.sagemakerClient.DeleteFeatureGroup(ctx, &sagemaker.DeleteFeatureGroupInput{
		FeatureGroupName: aws.String(featureGroupName),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to delete feature group %q, %w", featureGroupName, err)
		}
		log.Printf("Feature group %q was already being deleted", featureGroupName)
	}

	return registry.AwaitDeleted(ctx, featureGroupName)
}

// deleteOfflineObjects removes everything the offline store wrote for the
// feature group. The prefix layout (account id, fixed sagemaker segment,
// region, group name) is how the control plane materializes offline data
// under the configured base URI.
func (registry *FeatureStoreRegistry) deleteOfflineObjects(ctx context.Context, featureGroupName string, cfg *smtypes.OfflineStoreConfig) error {
	if cfg.S3StorageConfig == nil {
		return fmt.Errorf("offline store of %q has no S3 storage config", featureGroupName)
	}

	account, err := registry.callerAccount(ctx)
	if err != nil {
		return err
	}

	bucket, basePrefix, err := splitS3URI(aws.ToString(cfg.S3StorageConfig.S3Uri))
	if err != nil {
		return fmt.Errorf("bad offline store URI: %w", err)
	}
	prefix := path.Join(basePrefix, account, "sagemaker", registry.region, "offline-store", featureGroupName) + "/"

	var continuationToken *string
	deleted := 0
	for {
		page, err := registry.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("failed to list offline store objects under %q, %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			break
		}

		identifiers := make([]s3types.ObjectIdentifier, len(page.Contents))
		for i, object := range page.Contents {
			identifiers[i] = s3types.ObjectIdentifier{Key: object.Key}
		}
		_, err = registry.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{Objects: identifiers, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete offline store objects under %q, %w", prefix, err)
		}
		deleted += len(identifiers)

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		continuationToken = page.NextContinuationToken
	}

	log.Printf("Deleted %d offline store object(s) under s3://%s/%s", deleted, bucket, prefix)
	return nil
}
