package feature_store_registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteFeatureGroup_MustDeleteOfflineObjectsAndAwaitAbsence(t *testing.T) {
	// given
	controlPlane := &scriptedControlPlane{describeSteps: []describeStep{
		{status: StatusCreated, offline: true}, // teardown's own describe
		{status: StatusDeleting},
		notFoundStep(),
	}}
	objectStore := &recordingObjectStore{existingKeys: []string{
		"feature-store/123456789012/sagemaker/eu-west-1/offline-store/orders/data/part-0.parquet",
		"feature-store/123456789012/sagemaker/eu-west-1/offline-store/orders/data/part-1.parquet",
	}}
	registry := newTestRegistry(controlPlane, nil, objectStore)
	// when
	err := registry.DeleteFeatureGroup(context.Background(), "orders", true)
	// then
	assert.NoError(t, err)
	assert.Equal(t, 1, controlPlane.deleteCalls)
	assert.Equal(t, 3, controlPlane.describeCalls)
	assert.Len(t, objectStore.deleteBatches, 1)
	assert.Len(t, objectStore.deleteBatches[0], 2)
}

func TestDeleteFeatureGroup_MustSkipObjectDeletionWhenNotRequested(t *testing.T) {
	// given
	controlPlane := &scriptedControlPlane{describeSteps: []describeStep{
		{status: StatusCreated, offline: true},
		notFoundStep(),
	}}
	objectStore := &recordingObjectStore{}
	registry := newTestRegistry(controlPlane, nil, objectStore)
	// when
	err := registry.DeleteFeatureGroup(context.Background(), "orders", false)
	// then
	assert.NoError(t, err)
	assert.Zero(t, objectStore.listCalls)
	assert.Empty(t, objectStore.deleteBatches)
}

func TestDeleteFeatureGroup_MustTreatAlreadyAbsentGroupAsSuccess(t *testing.T) {
	// given
	controlPlane := &scriptedControlPlane{describeSteps: []describeStep{notFoundStep()}}
	registry := newTestRegistry(controlPlane, nil, &recordingObjectStore{})
	// when
	err := registry.DeleteFeatureGroup(context.Background(), "orders", true)
	// then
	assert.NoError(t, err)
	assert.Zero(t, controlPlane.deleteCalls, "no deletion request for a group that is already gone")
}

func TestDeleteFeatureGroup_MustProceedWhenObjectCleanupFails(t *testing.T) {
	// Object deletion is best-effort: a group without S3 storage config is
	// logged and the control-plane deletion still happens.
	// given
	controlPlane := &scriptedControlPlane{describeSteps: []describeStep{
		{status: StatusCreated, offline: true},
		notFoundStep(),
	}}
	objectStore := &recordingObjectStore{} // nothing listed, nothing to delete
	registry := newTestRegistry(controlPlane, nil, objectStore)
	// when
	err := registry.DeleteFeatureGroup(context.Background(), "orders", true)
	// then
	assert.NoError(t, err)
	assert.Equal(t, 1, controlPlane.deleteCalls)
}
