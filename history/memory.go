package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record // insertion order
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Add(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for i := len(m.records) - 1; i >= 0; i-- {
		if !f.matches(m.records[i]) {
			continue
		}
		out = append(out, m.records[i])
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Stats(_ context.Context, since time.Time) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	f := Filter{Since: since}
	for _, rec := range m.records {
		if !f.matches(rec) {
			continue
		}
		s.Total++
		if rec.Status == StatusFailed {
			s.Failed++
		}
	}
	return s, nil
}

func (m *MemoryStore) Close() error { return nil }
