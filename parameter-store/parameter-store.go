// Package parameter_store persists namespaced key-value configuration in a
// local JSON document, checkpointing state between workflow runs.
package parameter_store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"
)

const DefaultNamespace = "experiment_1"

// TimestampKey is injected into the active namespace on every Store call
// with the human-readable time of the write.
const TimestampKey = "__timestamp"

const timestampLayout = "02/01/2006 15:04:05"

var (
	ErrKeyNotFound      = errors.New("parameter key not found")
	ErrNamespaceMissing = errors.New("parameter namespace has not been created")
)

// Parameters is one namespace's mapping of keys to JSON-serializable
// values.
type Parameters map[string]any

// ParameterStore keeps a single in-memory copy of all namespaces and
// reads/writes the backing file only on explicit Load/Store calls. It is
// not safe for concurrent use and assumes one writer per file path.
type ParameterStore struct {
	fs         afero.Fs
	filename   string
	namespace  string
	parameters map[string]Parameters
}

// New opens a parameter store backed by filename on the OS filesystem.
func New(filename string, defaults map[string]Parameters) (*ParameterStore, error) {
	return NewWithFs(afero.NewOsFs(), filename, defaults)
}

// NewWithFs is New with an explicit filesystem, which tests use to stay in
// memory. If the backing file exists it is loaded and the supplied
// defaults are merged on top; otherwise the store starts from the defaults
// alone. Nothing is written until Store is called.
func NewWithFs(fsys afero.Fs, filename string, defaults map[string]Parameters) (*ParameterStore, error) {
	store := &ParameterStore{
		fs:         fsys,
		filename:   filename,
		namespace:  DefaultNamespace,
		parameters: map[string]Parameters{},
	}

	exists, err := afero.Exists(fsys, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat parameter file %q: %w", filename, err)
	}
	if exists {
		if err := store.Load(); err != nil {
			return nil, err
		}
	}
	for namespace, params := range defaults {
		store.parameters[namespace] = mergedCopy(store.parameters[namespace], params)
	}

	return store, nil
}

// SetNamespace switches the partition all namespace-scoped operations act
// on.
func (store *ParameterStore) SetNamespace(namespace string) {
	store.namespace = namespace
}

func (store *ParameterStore) Namespace() string {
	return store.namespace
}

// Create replaces the active namespace's mapping with params.
func (store *ParameterStore) Create(params Parameters) {
	store.parameters[store.namespace] = mergedCopy(nil, params)
}

// Read returns the active namespace's mapping. The second return value is
// false when nothing is there to read: either the whole store is empty
// (the original system only checked this, top-level, condition) or the
// active namespace was never created.
func (store *ParameterStore) Read() (Parameters, bool) {
	if len(store.parameters) == 0 {
		return nil, false
	}
	params, ok := store.parameters[store.namespace]
	return params, ok
}

// ReadAll returns the full namespace-to-parameters mapping.
func (store *ParameterStore) ReadAll() map[string]Parameters {
	return store.parameters
}

// Add merges params into the active namespace, overwriting existing keys.
// The namespace must have been created first.
func (store *ParameterStore) Add(params Parameters) error {
	existing, ok := store.parameters[store.namespace]
	if !ok {
		return fmt.Errorf("cannot add to namespace %q: %w", store.namespace, ErrNamespaceMissing)
	}
	for key, value := range params {
		existing[key] = value
	}
	return nil
}

// Delete removes key from the active namespace.
func (store *ParameterStore) Delete(key string) error {
	params, ok := store.parameters[store.namespace]
	if !ok {
		return fmt.Errorf("namespace %q: %w", store.namespace, ErrNamespaceMissing)
	}
	if _, ok := params[key]; !ok {
		return fmt.Errorf("key %q in namespace %q: %w", key, store.namespace, ErrKeyNotFound)
	}
	delete(params, key)
	return nil
}

// Clear empties the active namespace.
func (store *ParameterStore) Clear() {
	store.parameters[store.namespace] = Parameters{}
}

// ClearAll empties the entire store, all namespaces included.
func (store *ParameterStore) ClearAll() {
	store.parameters = map[string]Parameters{}
}

// Load replaces the in-memory mapping wholesale with the parsed contents
// of the backing file. A vanished file and a malformed file are both fatal
// load errors, distinguishable via errors.Is(err, fs.ErrNotExist).
func (store *ParameterStore) Load() error {
	document, err := afero.ReadFile(store.fs, store.filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("parameter file %q: %w", store.filename, err)
		}
		return fmt.Errorf("failed to read parameter file %q: %w", store.filename, err)
	}

	var parameters map[string]Parameters
	if err := json.Unmarshal(document, &parameters); err != nil {
		return fmt.Errorf("failed to parse parameter file %q: %w", store.filename, err)
	}

	store.parameters = parameters
	return nil
}

// Store stamps the active namespace with the current time and writes the
// whole document to the backing file. The write goes through a temporary
// file and a rename so a crash mid-write never leaves a partial document.
// Namespaces and keys end up alphabetically sorted, as JSON object keys
// are serialized in sorted order.
func (store *ParameterStore) Store() error {
	if _, ok := store.parameters[store.namespace]; !ok {
		store.parameters[store.namespace] = Parameters{}
	}
	store.parameters[store.namespace][TimestampKey] = time.Now().Format(timestampLayout)

	document, err := json.Marshal(store.parameters)
	if err != nil {
		return fmt.Errorf("failed to serialize parameters: %w", err)
	}

	tmpName := store.filename + ".tmp"
	if err := afero.WriteFile(store.fs, tmpName, document, 0o644); err != nil {
		return fmt.Errorf("failed to write parameter file %q: %w", tmpName, err)
	}
	if err := store.fs.Rename(tmpName, store.filename); err != nil {
		return fmt.Errorf("failed to replace parameter file %q: %w", store.filename, err)
	}
	return nil
}

func mergedCopy(base, overlay Parameters) Parameters {
	merged := Parameters{}
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overlay {
		merged[key] = value
	}
	return merged
}
