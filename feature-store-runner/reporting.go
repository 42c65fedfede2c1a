package main

import (
	"fmt"
	"time"

	feature_store_registry "github.com/aws-samples/sagemaker-feature-store-real-time-recommendations/feature-store-registry"
)

func printRunReport(featureGroupName, runUUID string, events []feature_store_registry.LifecycleEvent) {
	fmt.Printf("Run report for feature group %q (run %s):\n\n", featureGroupName, runUUID)

	for _, event := range events {
		fmt.Printf("  - Kind: %s\n", event.Kind)
		if event.Detail != "" {
			fmt.Printf("    Detail: %s\n", event.Detail)
		}
		if event.RecordCount > 0 {
			fmt.Printf("    Records: %d\n", event.RecordCount)
		}
		if event.TimeUTC != nil {
			fmt.Printf("    Time: %s\n", event.TimeUTC.Format(time.DateTime))
		}
		fmt.Println()
	}

	printEventsTimeSummary(events)
}

func printEventsTimeSummary(events []feature_store_registry.LifecycleEvent) {
	var first, last *time.Time
	for _, event := range events {
		if event.TimeUTC == nil {
			continue
		}
		if first == nil || event.TimeUTC.Before(*first) {
			first = event.TimeUTC
		}
		if last == nil || event.TimeUTC.After(*last) {
			last = event.TimeUTC
		}
	}

	if first != nil && last != nil {
		fmt.Printf("Wall clock time from first to last event: %s\n", last.Sub(*first))
	} else {
		fmt.Println("Wall clock time from first to last event: N/A")
	}
}
