package feature_store_registry

import "time"

// Status mirrors the feature group status reported by the control plane.
// StatusAbsent is synthesized when the describe call no longer finds the
// feature group, which is the successful terminal state of a deletion wait.
type Status string

const (
	StatusCreating     Status = "Creating"
	StatusCreated      Status = "Created"
	StatusCreateFailed Status = "CreateFailed"
	StatusDeleting     Status = "Deleting"
	StatusDeleteFailed Status = "DeleteFailed"
	StatusAbsent       Status = "Absent"
)

const (
	QueryPollInterval       = 2 * time.Second
	ReplicationPollInterval = 60 * time.Second
	LifecyclePollInterval   = 5 * time.Second
)

// FeatureDefinition describes one feature of a group. Type is one of the
// control plane's value types: String, Integral or Fractional.
type FeatureDefinition struct {
	Name string
	Type string
}

// FeatureGroupSpec is everything needed to create a feature group with an
// online store and, when OfflineStoreS3URI is set, an offline store.
type FeatureGroupSpec struct {
	Name              string
	RecordIdentifier  string
	EventTimeFeature  string
	Features          []FeatureDefinition
	OfflineStoreS3URI string
	RoleARN           string
	Description       string
}

type LifecycleEvent struct {
	FeatureGroup string     `dynamodbav:"feature_group"` // PK
	EventUUID    string     `dynamodbav:"event_uuid"`    // SK
	Kind         string     `dynamodbav:"kind"`
	Detail       string     `dynamodbav:"detail,omitempty"`
	RecordCount  int        `dynamodbav:"record_count,omitempty"`
	TimeUTC      *time.Time `dynamodbav:"t_utc,omitempty"`
}

const (
	EventKind_Created  = "Created"
	EventKind_Ingested = "Ingested"
	EventKind_Queried  = "Queried"
	EventKind_Deleted  = "Deleted"
)

const EventsTable = "feature_lifecycle_events"
