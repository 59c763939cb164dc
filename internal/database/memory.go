package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-id/internal/identity"
)

// MemoryBackend keeps records in process memory only. Used by tests and
// STORE_DRIVER=memory.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[int64]identity.Record
	lastID  int64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[int64]identity.Record)}
}

func (m *MemoryBackend) Insert(_ context.Context, rec identity.Record) (identity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastID++
	rec = rec.Clone()
	rec.ID = m.lastID
	m.records[rec.ID] = rec
	return rec.Clone(), nil
}

func (m *MemoryBackend) List(_ context.Context) ([]identity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]identity.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryBackend) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("identity %d: %w", id, identity.ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryBackend) Import(_ context.Context, recs []identity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range recs {
		if _, exists := m.records[rec.ID]; exists || rec.ID <= 0 {
			return fmt.Errorf("cannot import identity with id %d", rec.ID)
		}
	}
	for _, rec := range recs {
		m.records[rec.ID] = rec.Clone()
		m.lastID = max(m.lastID, rec.ID)
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
