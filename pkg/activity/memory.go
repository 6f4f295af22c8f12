package activity

import (
	"context"
	"maps"
	"sync"

	"github.com/goliatone/go-cms-admin/pkg/interfaces"
)

// MemorySink keeps activity records in insertion order.
type MemorySink struct {
	mu      sync.RWMutex
	records []interfaces.ActivityRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Log(_ context.Context, record interfaces.ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Data = maps.Clone(record.Data)
	m.records = append(m.records, record)
	return nil
}

// List returns a copy of the stored records.
func (m *MemorySink) List() []interfaces.ActivityRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]interfaces.ActivityRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Count returns the number of records with the given verb, or all records
// when verb is empty.
func (m *MemorySink) Count(verb string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if verb == "" {
		return len(m.records)
	}
	total := 0
	for _, record := range m.records {
		if record.Verb == verb {
			total++
		}
	}
	return total
}
