package registry

import (
	"context"
	"sync"

	"github.com/semsearch/gateway/src/types"
)

// Memory is a process-local Registry used in standalone mode and in tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]types.ConnectionRecord
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]types.ConnectionRecord)}
}

// Put creates or overwrites the record for its connection id.
func (m *Memory) Put(_ context.Context, rec types.ConnectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ConnectionID] = rec
	return nil
}

// Get returns the record for an id, or ErrNotFound.
func (m *Memory) Get(_ context.Context, connectionID string) (types.ConnectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[connectionID]
	if !ok {
		return types.ConnectionRecord{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record if present.
func (m *Memory) Delete(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, connectionID)
	return nil
}

// Scan returns all current records.
func (m *Memory) Scan(_ context.Context) ([]types.ConnectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ConnectionRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}
