package versionedcontent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// FieldStorageRegistry routes field payloads to per-field-type storage
// backends. Legacy field type identifiers can be renamed without breaking
// stored data by registering an alias pointing at the canonical
// identifier.
type FieldStorageRegistry struct {
	mu       sync.RWMutex
	backends map[string]FieldStorage
	aliases  map[string]string
}

// NewFieldStorageRegistry creates an empty registry.
func NewFieldStorageRegistry() *FieldStorageRegistry {
	return &FieldStorageRegistry{
		backends: make(map[string]FieldStorage),
		aliases:  make(map[string]string),
	}
}

// Register binds a storage backend to a field type identifier. A field
// type with a registered backend declares that it needs external storage.
func (r *FieldStorageRegistry) Register(fieldType string, storage FieldStorage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[fieldType] = storage
}

// RegisterAlias maps a legacy field type identifier onto its canonical
// name. Aliases resolve through at most one hop.
func (r *FieldStorageRegistry) RegisterAlias(alias, canonical string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = canonical
}

// Resolve returns the backend for a field type, following the alias
// table. Returns ErrFieldStorageNotFound when none is registered.
func (r *FieldStorageRegistry) Resolve(fieldType string) (FieldStorage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := fieldType
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	backend, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: field type %q", ErrFieldStorageNotFound, fieldType)
	}
	return backend, nil
}

// HasFieldData reports whether the field type declares external storage.
func (r *FieldStorageRegistry) HasFieldData(fieldType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := fieldType
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	_, ok := r.backends[name]
	return ok
}

// canonical returns the canonical field type name for error reporting.
func (r *FieldStorageRegistry) canonical(fieldType string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.aliases[fieldType]; ok {
		return c
	}
	return fieldType
}

// storeFieldData dispatches one field's external payload to its backend.
func (r *FieldStorageRegistry) storeFieldData(ctx context.Context, field Field, data []byte) error {
	backend, err := r.Resolve(field.Type)
	if err != nil {
		return err
	}
	ref := refOf(field)
	if err := backend.StoreFieldData(ctx, ref, data); err != nil {
		return &StorageError{Backend: r.canonical(field.Type), Ref: ref, Op: "store", Err: err}
	}
	return nil
}

// getFieldData fetches one field's external payload.
func (r *FieldStorageRegistry) getFieldData(ctx context.Context, field Field) ([]byte, error) {
	backend, err := r.Resolve(field.Type)
	if err != nil {
		return nil, err
	}
	ref := refOf(field)
	data, err := backend.GetFieldData(ctx, ref)
	if err != nil {
		return nil, &StorageError{Backend: r.canonical(field.Type), Ref: ref, Op: "get", Err: err}
	}
	return data, nil
}

// copyFieldData duplicates one field's external payload onto a new ref.
func (r *FieldStorageRegistry) copyFieldData(ctx context.Context, fieldType string, src, dst FieldRef) error {
	backend, err := r.Resolve(fieldType)
	if err != nil {
		return err
	}
	if err := backend.CopyFieldData(ctx, src, dst); err != nil {
		return &StorageError{Backend: r.canonical(fieldType), Ref: dst, Op: "copy", Err: err}
	}
	return nil
}

// deleteFieldData removes external payloads for the given refs, logging
// and continuing on per-ref failure: external storage is eventually
// consistent relative to the primary rows and a stale payload must not
// block row deletion.
func (r *FieldStorageRegistry) deleteFieldData(ctx context.Context, fieldType string, refs []FieldRef, logger *slog.Logger) {
	backend, err := r.Resolve(fieldType)
	if err != nil {
		return
	}
	for _, ref := range refs {
		if err := backend.DeleteFieldData(ctx, ref); err != nil {
			logger.Warn("external field data delete failed",
				"field_type", fieldType, "field_id", ref.FieldID,
				"content_id", ref.ContentID, "version_no", ref.VersionNo,
				"error", err)
		}
	}
}

func refOf(f Field) FieldRef {
	return FieldRef{
		ContentID:    f.ContentID,
		VersionNo:    f.VersionNo,
		FieldID:      f.ID,
		LanguageCode: f.LanguageCode,
	}
}
