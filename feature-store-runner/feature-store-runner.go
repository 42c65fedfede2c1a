package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	feature_store_registry "github.com/aws-samples/sagemaker-feature-store-real-time-recommendations/feature-store-registry"
	parameter_store "github.com/aws-samples/sagemaker-feature-store-real-time-recommendations/parameter-store"
)

func main() {
	featuresConfigPath :=
		flag.String("features-config-file", "features.yaml", "YAML file describing the feature group to create")
	recordsFilePath :=
		flag.String("records-file", "records.csv", "CSV file (optionally packed as a .7z archive) with records to ingest")
	s3Bucket :=
		flag.String("s3-bucket", "", "S3 bucket for the offline store and run artifacts")
	roleARN :=
		flag.String("role-arn", "", "IAM role ARN the feature store assumes for offline storage")
	parametersFilePath :=
		flag.String("parameters-file", "parameters.json", "Local JSON file where run checkpoints are stored")
	outputFilePath :=
		flag.String("output-file", "", "File where to write the confirmed offline record count")
	deleteAfter :=
		flag.Bool("delete-after", false, "Tear down the feature group and its offline data once the run completes")

	flag.Parse()

	checkRequiredFlags(featuresConfigPath, recordsFilePath, s3Bucket, roleARN, outputFilePath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newRunUUID, err := uuid.NewV7()
	if err != nil {
		log.Fatalf("Error creating UUID: %v", err)
	}

	spec, err := parseFeatureGroupConfig(*featuresConfigPath, *s3Bucket, *roleARN)
	if err != nil {
		log.Fatalf("Error reading features config file: %v", err)
	}

	registry, err := feature_store_registry.New(ctx)
	if err != nil {
		log.Fatalf("Error connecting to the Feature Store Registry, %v", err)
	}

	checkpoints, err := parameter_store.New(*parametersFilePath, nil)
	if err != nil {
		log.Fatalf("Error opening parameter store: %v", err)
	}
	checkpoints.SetNamespace(spec.Name)

	configS3Path, err := registry.UploadRunArtifact(ctx, *featuresConfigPath, *s3Bucket, spec.Name, newRunUUID.String())
	if err != nil {
		log.Fatalf("Error uploading features config file to S3, %v", err)
	}
	log.Println("Uploaded features config to S3:", configS3Path)

	if err := registry.CreateFeatureGroup(ctx, spec); err != nil {
		log.Fatalf("failed to create feature group: %v", err)
	}
	journal(ctx, registry, spec.Name, feature_store_registry.EventKind_Created, configS3Path, 0)

	recordsCSV, cleanup, err := resolveRecordsFile(*recordsFilePath)
	if err != nil {
		log.Fatalf("Cannot use records file: %v", err)
	}
	defer cleanup()

	ingested, err := registry.IngestCSVFile(ctx, spec.Name, recordsCSV)
	if err != nil {
		log.Fatalf("failed to ingest records (%d written): %v", ingested, err)
	}
	journal(ctx, registry, spec.Name, feature_store_registry.EventKind_Ingested, recordsCSV, ingested)

	checkpoints.Create(parameter_store.Parameters{
		"run_uuid":       newRunUUID.String(),
		"config_s3_path": configS3Path,
		"records_file":   *recordsFilePath,
		"ingested_count": ingested,
	})
	if err := checkpoints.Store(); err != nil {
		log.Fatalf("failed to checkpoint run parameters: %v", err)
	}

	if err := registry.WaitForReplication(ctx, spec.Name, ingested); err != nil {
		log.Fatalf("failed while waiting for the offline store to catch up: %v", err)
	}

	confirmed, err := registry.HistoricalRecordCount(ctx, spec.Name)
	if err != nil {
		log.Fatalf("failed to count offline store records: %v", err)
	}
	journal(ctx, registry, spec.Name, feature_store_registry.EventKind_Queried, "SELECT COUNT(*)", confirmed)
	log.Println("Offline store confirmed", confirmed, "records for feature group", spec.Name)

	if err := checkpoints.Add(parameter_store.Parameters{"confirmed_count": confirmed}); err != nil {
		log.Fatalf("failed to update run checkpoint: %v", err)
	}
	if err := checkpoints.Store(); err != nil {
		log.Fatalf("failed to checkpoint run parameters: %v", err)
	}

	if err := printCountToFile(*outputFilePath, spec.Name, confirmed); err != nil {
		log.Fatalf("failed printing results into the output file: %v", err)
	}
	fmt.Println("Written output to", *outputFilePath)

	if *deleteAfter {
		if err := registry.DeleteFeatureGroup(ctx, spec.Name, true); err != nil {
			log.Fatalf("failed to tear down feature group: %v", err)
		}
		journal(ctx, registry, spec.Name, feature_store_registry.EventKind_Deleted, "", 0)
	}

	events, err := registry.GetLifecycleEvents(ctx, spec.Name)
	if err != nil {
		log.Printf("failed to get lifecycle events for the report (non-critical error): %v", err)
	} else {
		printRunReport(spec.Name, newRunUUID.String(), events)
	}
}

func checkRequiredFlags(
	featuresConfigPath *string,
	recordsFilePath *string,
	s3Bucket *string,
	roleARN *string,
	outputFilePath *string,
) {
	if *featuresConfigPath == "" {
		log.Fatal("Please provide --features-config-file")
	}
	if *recordsFilePath == "" {
		log.Fatal("Please provide --records-file")
	}
	if *s3Bucket == "" {
		log.Fatal("Please provide --s3-bucket")
	}
	if *roleARN == "" {
		log.Fatal("Please provide --role-arn")
	}
	if *outputFilePath == "" {
		log.Fatal("Please provide --output-file")
	}
}

func journal(
	ctx context.Context,
	registry *feature_store_registry.FeatureStoreRegistry,
	featureGroupName, kind, detail string,
	recordCount int,
) {
	eventUUID, err := uuid.NewV7()
	if err != nil {
		log.Printf("failed to create event UUID (non-critical error): %v", err)
		return
	}
	now := time.Now().UTC()
	err = registry.RecordLifecycleEvent(ctx, feature_store_registry.LifecycleEvent{
		FeatureGroup: featureGroupName,
		EventUUID:    eventUUID.String(),
		Kind:         kind,
		Detail:       detail,
		RecordCount:  recordCount,
		TimeUTC:      &now,
	})
	if err != nil {
		log.Printf("failed to journal lifecycle event (non-critical error): %v", err)
	}
}

func printCountToFile(filename, featureGroupName string, count int) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file %q: %w", filename, err)
	}
	defer file.Close()

	_, err = fmt.Fprintf(file, "%s %d\n", featureGroupName, count)
	if err != nil {
		return fmt.Errorf("failed to write to file %q: %w", filename, err)
	}
	return nil
}
