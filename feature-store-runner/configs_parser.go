package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	feature_store_registry "github.com/aws-samples/sagemaker-feature-store-real-time-recommendations/feature-store-registry"
)

type FeatureGroupYAML struct {
	Name             string        `yaml:"name"`
	RecordIdentifier string        `yaml:"record_identifier"`
	EventTimeFeature string        `yaml:"event_time_feature"`
	Description      string        `yaml:"description"`
	Features         []FeatureYAML `yaml:"features"`
}

type FeatureYAML struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

var validFeatureTypes = map[string]bool{
	"String":     true,
	"Integral":   true,
	"Fractional": true,
}

func parseFeatureGroupConfig(featuresYamlPath, s3Bucket, roleARN string) (feature_store_registry.FeatureGroupSpec, error) {
	var spec feature_store_registry.FeatureGroupSpec

	data, err := os.ReadFile(featuresYamlPath)
	if err != nil {
		return spec, fmt.Errorf("failed to read file: %w", err)
	}

	var groupYAML FeatureGroupYAML
	if err = yaml.Unmarshal(data, &groupYAML); err != nil {
		return spec, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if groupYAML.Name == "" {
		return spec, fmt.Errorf("feature group name is missing")
	}
	if groupYAML.RecordIdentifier == "" {
		return spec, fmt.Errorf("record_identifier is missing")
	}
	if len(groupYAML.Features) == 0 {
		return spec, fmt.Errorf("feature group %q defines no features", groupYAML.Name)
	}
	if groupYAML.EventTimeFeature == "" {
		groupYAML.EventTimeFeature = feature_store_registry.EventTimeFeatureName
	}

	features := make([]feature_store_registry.FeatureDefinition, 0, len(groupYAML.Features)+1)
	seen := make(map[string]bool, len(groupYAML.Features))
	for _, featureYAML := range groupYAML.Features {
		if !validFeatureTypes[featureYAML.Type] {
			return spec, fmt.Errorf("feature %q has unsupported type %q", featureYAML.Name, featureYAML.Type)
		}
		if seen[featureYAML.Name] {
			return spec, fmt.Errorf("feature %q is defined twice", featureYAML.Name)
		}
		seen[featureYAML.Name] = true
		features = append(features, feature_store_registry.FeatureDefinition{
			Name: featureYAML.Name,
			Type: featureYAML.Type,
		})
	}

	if !seen[groupYAML.RecordIdentifier] {
		return spec, fmt.Errorf("record identifier %q is not among the features", groupYAML.RecordIdentifier)
	}
	if !seen[groupYAML.EventTimeFeature] {
		// Records get this stamped at ingestion time, so the definition is implied.
		features = append(features, feature_store_registry.FeatureDefinition{
			Name: groupYAML.EventTimeFeature,
			Type: "Fractional",
		})
	}

	return feature_store_registry.FeatureGroupSpec{
		Name:              groupYAML.Name,
		RecordIdentifier:  groupYAML.RecordIdentifier,
		EventTimeFeature:  groupYAML.EventTimeFeature,
		Features:          features,
		OfflineStoreS3URI: "s3://" + s3Bucket + "/feature-store",
		RoleARN:           roleARN,
		Description:       groupYAML.Description,
	}, nil
}
