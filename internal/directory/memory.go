package directory

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory directory used in tests and local
// development.
type MemoryDirectory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		records: make(map[string]Record),
	}
}

// Put stores a record under the given external subject ID.
func (d *MemoryDirectory) Put(externalID string, rec Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[externalID] = rec
}

// FindByExternalID returns the stored record or ErrNotFound.
func (d *MemoryDirectory) FindByExternalID(_ context.Context, externalID string) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}
