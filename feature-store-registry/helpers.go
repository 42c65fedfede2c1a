package feature_store_registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SleepInterruptibly sleeps for d or until ctx is cancelled, whichever comes
// first. Returns true if the sleep was interrupted.
func SleepInterruptibly(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	select {
	case <-ctx.Done():
		t.Stop()
		return true
	case <-t.C:
	}
	return false
}

func splitS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%q is not an s3:// URI", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket", uri)
	}
	return bucket, strings.TrimSuffix(key, "/"), nil
}

func statusIn(status Status, statuses []Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (registry *FeatureStoreRegistry) downloadObject(ctx context.Context, s3Bucket, s3Path, destination string) error {
	object, err := registry.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3Bucket),
		Key:    aws.String(s3Path),
	})
	if err != nil {
		return fmt.Errorf("couldn't download file %q from S3 bucket %q, %w", s3Path, s3Bucket, err)
	}
	defer object.Body.Close()

	destFile, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create/overwrite destination file %q, %w", destination, err)
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, object.Body)
	if err != nil {
		return fmt.Errorf("failed to copy file content from S3 to local file, %w", err)
	}

	return nil
}

// UploadRunArtifact stores a local file under the run's provenance prefix in
// S3 and returns the resulting object key.
func (registry *FeatureStoreRegistry) UploadRunArtifact(ctx context.Context, filePath, s3Bucket, featureGroupName, runUUID string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	s3Path := strings.Join([]string{s3ArtifactsPrefix, featureGroupName, runUUID, filepath.Base(filePath)}, "/")
	_, err = registry.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s3Bucket),
		Key:    aws.String(s3Path),
		Body:   file,
	})
	if err != nil {
		return "", err
	}

	return s3Path, nil
}
