package feature_store_registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

// ResourceLifecycleError reports a feature group that reached a failure
// status while being created or deleted. It is fatal to the calling
// workflow and is not retried here.
type ResourceLifecycleError struct {
	FeatureGroup string
	Status       Status
	Reason       string
}

func (e *ResourceLifecycleError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("feature group %q reached status %s: %s", e.FeatureGroup, e.Status, e.Reason)
	}
	return fmt.Sprintf("feature group %q reached status %s", e.FeatureGroup, e.Status)
}

// AwaitStatus polls the describe endpoint at a fixed interval until the
// feature group reaches one of the terminal statuses, which is returned.
// Landing in a failure status yields a *ResourceLifecycleError. A describe
// call answered with ResourceNotFound returns StatusAbsent when absence is
// listed as terminal (the deletion case); otherwise it is an error.
//
// There is no built-in deadline: bound the wait through ctx.
func (registry *FeatureStoreRegistry) AwaitStatus(
	ctx context.Context,
	featureGroupName string,
	pollInterval time.Duration,
	terminalStatuses []Status,
	failureStatuses []Status,
) (Status, error) {
	for {
		out, err := registry.sagemakerClient.DescribeFeatureGroup(ctx, &sagemaker.DescribeFeatureGroupInput{
			FeatureGroupName: aws.String(featureGroupName),
		})
		if err != nil {
			var notFound *smtypes.ResourceNotFound
			if errors.As(err, &notFound) && statusIn(StatusAbsent, terminalStatuses) {
				return StatusAbsent, nil
			}
			return "", fmt.Errorf("failed to describe feature group %q, %w", featureGroupName, err)
		}

		status := Status(out.FeatureGroupStatus)
		if statusIn(status, terminalStatuses) {
			return status, nil
		}
		if statusIn(status, failureStatuses) {
			return status, &ResourceLifecycleError{
				FeatureGroup: featureGroupName,
				Status:       status,
				Reason:       aws.ToString(out.FailureReason),
			}
		}

		log.Println("Waiting for feature group", featureGroupName, "- current status:", status)
		if SleepInterruptibly(ctx, pollInterval) {
			return status, ctx.Err()
		}
	}
}

// AwaitCreated blocks until the feature group finishes creating.
func (registry *FeatureStoreRegistry) AwaitCreated(ctx context.Context, featureGroupName string) error {
	status, err := registry.AwaitStatus(ctx, featureGroupName, LifecyclePollInterval,
		[]Status{StatusCreated}, []Status{StatusCreateFailed})
	if err != nil {
		return err
	}
	log.Printf("Feature group %q was successfully created (status %s)", featureGroupName, status)
	return nil
}

// AwaitDeleted blocks until the describe endpoint stops finding the feature
// group.
func (registry *FeatureStoreRegistry) AwaitDeleted(ctx context.Context, featureGroupName string) error {
	_, err := registry.AwaitStatus(ctx, featureGroupName, LifecyclePollInterval,
		[]Status{StatusAbsent}, []Status{StatusDeleteFailed})
	if err != nil {
		return err
	}
	log.Printf("Feature group %q is gone", featureGroupName)
	return nil
}

// CreateFeatureGroup creates the feature group described by spec and waits
// for the creation to complete. A group that already exists is reused.
func (registry *FeatureStoreRegistry) CreateFeatureGroup(ctx context.Context, spec FeatureGroupSpec) error {
	definitions := make([]smtypes.FeatureDefinition, len(spec.Features))
	for i, feature := range spec.Features {
		definitions[i] = smtypes.FeatureDefinition{
			FeatureName: aws.String(feature.Name),
			FeatureType: smtypes.FeatureType(feature.Type),
		}
	}

	input := &sagemaker.CreateFeatureGroupInput{
		FeatureGroupName:            aws.String(spec.Name),
		RecordIdentifierFeatureName: aws.String(spec.RecordIdentifier),
		EventTimeFeatureName:        aws.String(spec.EventTimeFeature),
		FeatureDefinitions:          definitions,
		RoleArn:                     aws.String(spec.RoleARN),
		OnlineStoreConfig:           &smtypes.OnlineStoreConfig{EnableOnlineStore: aws.Bool(true)},
	}
	if spec.Description != "" {
		input.Description = aws.String(spec.Description)
	}
	if spec.OfflineStoreS3URI != "" {
		input.OfflineStoreConfig = &smtypes.OfflineStoreConfig{
			S3StorageConfig: &smtypes.S3StorageConfig{S3Uri: aws.String(spec.OfflineStoreS3URI)},
		}
	}

	_, err := registry.sagemakerClient.CreateFeatureGroup(ctx, input)
	if err != nil {
		var inUse *smtypes.ResourceInUse
		if errors.As(err, &inUse) {
			log.Printf("Using existing feature group %q", spec.Name)
			return nil
		}
		return fmt.Errorf("failed to create feature group %q, %w", spec.Name, err)
	}

	return registry.AwaitCreated(ctx, spec.Name)
}
