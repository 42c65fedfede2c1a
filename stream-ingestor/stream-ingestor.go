package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	feature_store_registry "github.com/aws-samples/sagemaker-feature-store-real-time-recommendations/feature-store-registry"
)

func main() {
	queueName :=
		flag.String("queue", "", "SQS queue name with JSON-encoded records to ingest")
	featureGroupName :=
		flag.String("feature-group", "", "Feature group that receives the streamed records")

	flag.Parse()

	if *queueName == "" {
		log.Fatal("Please provide --queue")
	}
	if *featureGroupName == "" {
		log.Fatal("Please provide --feature-group")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := feature_store_registry.New(ctx)
	if err != nil {
		log.Fatalf("Error connecting to the Feature Store Registry, %v", err)
	}

	log.Println("Streaming records from queue", *queueName, "into feature group", *featureGroupName)
	err = registry.ServeRecordQueue(ctx, *queueName, *featureGroupName)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Record ingestion stopped with error: %v", err)
	}
	log.Println("Record ingestion stopped")
}
