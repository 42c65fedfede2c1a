package parameter_store

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func newMemStore(t *testing.T) *ParameterStore {
	t.Helper()
	store, err := NewWithFs(afero.NewMemMapFs(), "parameters.json", nil)
	assert.NoError(t, err)
	return store
}

func TestStoreThenLoad_MustRoundTripEverythingButTheTimestamp(t *testing.T) {
	// given
	fs := afero.NewMemMapFs()
	store, err := NewWithFs(fs, "parameters.json", nil)
	assert.NoError(t, err)
	store.SetNamespace("experiment_2")
	store.Create(Parameters{"bucket": "my-bucket", "count": "100"})
	err = store.Add(Parameters{"region": "eu-west-1"})
	assert.NoError(t, err)
	// when
	assert.NoError(t, store.Store())
	reloaded, err := NewWithFs(fs, "parameters.json", nil)
	assert.NoError(t, err)
	reloaded.SetNamespace("experiment_2")
	// then
	params, ok := reloaded.Read()
	assert.True(t, ok)
	assert.NotEmpty(t, params[TimestampKey])
	delete(params, TimestampKey)
	assert.Equal(t, Parameters{"bucket": "my-bucket", "count": "100", "region": "eu-west-1"}, params)
}

func TestLoadAfterStore_MustBeIdempotent(t *testing.T) {
	// given
	store := newMemStore(t)
	store.Create(Parameters{"alpha": "1"})
	assert.NoError(t, store.Store())
	// when
	assert.NoError(t, store.Load())
	first, _ := store.Read()
	assert.NoError(t, store.Load())
	second, _ := store.Read()
	// then
	assert.Equal(t, first, second)
}

func TestRead_MustReportAbsenceWhenStoreIsEmpty(t *testing.T) {
	// given
	store := newMemStore(t)
	// when
	params, ok := store.Read()
	// then
	assert.Nil(t, params)
	assert.False(t, ok)
}

func TestClearAll_MustMakeEveryNamespaceAbsent(t *testing.T) {
	// given
	store := newMemStore(t)
	store.SetNamespace("a")
	store.Create(Parameters{"k": "v"})
	store.SetNamespace("b")
	store.Create(Parameters{"k": "v"})
	// when
	store.ClearAll()
	// then
	for _, namespace := range []string{"a", "b", DefaultNamespace} {
		store.SetNamespace(namespace)
		_, ok := store.Read()
		assert.False(t, ok, "namespace %q must be absent after ClearAll", namespace)
	}
}

func TestClear_MustOnlyEmptyTheActiveNamespace(t *testing.T) {
	// given
	store := newMemStore(t)
	store.SetNamespace("a")
	store.Create(Parameters{"k": "v"})
	store.SetNamespace("b")
	store.Create(Parameters{"k": "v"})
	// when
	store.Clear()
	// then
	params, ok := store.Read()
	assert.True(t, ok)
	assert.Empty(t, params)
	store.SetNamespace("a")
	params, _ = store.Read()
	assert.Equal(t, Parameters{"k": "v"}, params)
}

func TestAdd_MustFailWhenNamespaceWasNeverCreated(t *testing.T) {
	// given
	store := newMemStore(t)
	store.SetNamespace("never_created")
	// when
	err := store.Add(Parameters{"k": "v"})
	// then
	assert.ErrorIs(t, err, ErrNamespaceMissing)
}

func TestAdd_MustOverwriteExistingKeys(t *testing.T) {
	// given
	store := newMemStore(t)
	store.Create(Parameters{"k": "old", "other": "kept"})
	// when
	err := store.Add(Parameters{"k": "new"})
	// then
	assert.NoError(t, err)
	params, _ := store.Read()
	assert.Equal(t, Parameters{"k": "new", "other": "kept"}, params)
}

func TestDelete_MustRemoveExactlyTheGivenKey(t *testing.T) {
	// given
	store := newMemStore(t)
	store.Create(Parameters{"a": "1", "b": "2"})
	// when
	err := store.Delete("a")
	// then
	assert.NoError(t, err)
	params, _ := store.Read()
	assert.Equal(t, Parameters{"b": "2"}, params)
}

func TestDelete_MustFailForAbsentKey(t *testing.T) {
	// given
	store := newMemStore(t)
	store.Create(Parameters{"a": "1"})
	// when
	err := store.Delete("nope")
	// then
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLoad_MustFailOnMalformedDocument(t *testing.T) {
	// given
	fs := afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "parameters.json", []byte("{not json"), 0o644))
	// when
	_, err := NewWithFs(fs, "parameters.json", nil)
	// then
	assert.ErrorContains(t, err, "parse")
}

func TestNew_MustMergeDefaultsOnTopOfLoadedDocument(t *testing.T) {
	// given
	fs := afero.NewMemMapFs()
	document := `{"experiment_1": {"bucket": "from-file", "kept": "yes"}}`
	assert.NoError(t, afero.WriteFile(fs, "parameters.json", []byte(document), 0o644))
	// when
	store, err := NewWithFs(fs, "parameters.json", map[string]Parameters{
		DefaultNamespace: {"bucket": "from-defaults"},
	})
	// then
	assert.NoError(t, err)
	params, ok := store.Read()
	assert.True(t, ok)
	assert.Equal(t, "from-defaults", params["bucket"])
	assert.Equal(t, "yes", params["kept"])
}

func TestStore_MustNotLeaveTemporaryFileBehind(t *testing.T) {
	// given
	fs := afero.NewMemMapFs()
	store, err := NewWithFs(fs, "parameters.json", nil)
	assert.NoError(t, err)
	store.Create(Parameters{"k": "v"})
	// when
	assert.NoError(t, store.Store())
	// then
	exists, err := afero.Exists(fs, "parameters.json.tmp")
	assert.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.Exists(fs, "parameters.json")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_MustStampTimestampEvenForFreshNamespace(t *testing.T) {
	// given
	store := newMemStore(t)
	store.SetNamespace("untouched")
	// when
	assert.NoError(t, store.Store())
	// then
	params, ok := store.Read()
	assert.True(t, ok)
	assert.NotEmpty(t, params[TimestampKey])
}
