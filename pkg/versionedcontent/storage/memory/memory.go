// Package memory provides an in-memory field storage backend for
// testing and development.
package memory

import (
	"context"
	"sync"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// Backend is an in-memory implementation of the
// versionedcontent.FieldStorage interface.
type Backend struct {
	mu   sync.RWMutex
	data map[vc.FieldRef][]byte
}

// New creates a new in-memory field storage backend.
func New() *Backend {
	return &Backend{data: make(map[vc.FieldRef][]byte)}
}

func (b *Backend) StoreFieldData(ctx context.Context, ref vc.FieldRef, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	b.data[ref] = cp
	return nil
}

func (b *Backend) GetFieldData(ctx context.Context, ref vc.FieldRef) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.data[ref]
	if !ok {
		return nil, vc.ErrFieldNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (b *Backend) CopyFieldData(ctx context.Context, src, dst vc.FieldRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.data[src]
	if !ok {
		return vc.ErrFieldNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.data[dst] = cp
	return nil
}

func (b *Backend) DeleteFieldData(ctx context.Context, ref vc.FieldRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, ref)
	return nil
}

// Len reports the number of stored payloads.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
