// Package history houses run-history storage. The in-memory implementation
// is safe for concurrent access and best suited for tests or ephemeral demo
// servers. Add additional backends (Redis, Postgres, etc.) in sub-packages
// without changing any calling code; only the wiring layer needs to decide
// which implementation to instantiate.
package history

import (
	"sync"
	"time"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/orchestrator"
)

// Record is one completed orchestrator run.
type Record struct {
	ID        string               `json:"id"`
	Query     core.Query           `json:"query"`
	Result    *orchestrator.Result `json:"result"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration"`
}

// Store persists completed runs.
type Store interface {
	// Append records a completed run and returns its assigned id.
	Append(record Record) (string, error)

	// Get returns the record with the given id, or false.
	Get(id string) (Record, bool)

	// Recent returns up to n records, newest first.
	Recent(n int) []Record
}

// InMemoryStore is a volatile Store keeping records in a process-local
// slice. Records are value types, so readers cannot mutate internal state
// through the returned copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
}

// NewInMemoryStore constructs an empty in-memory history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

// Append implements Store. Records without an id are assigned one.
func (s *InMemoryStore) Append(record Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = core.NewID()
	}
	s.byID[record.ID] = len(s.records)
	s.records = append(s.records, record)

	return record.ID, nil
}

// Get implements Store.
func (s *InMemoryStore) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return Record{}, false
	}
	return s.records[idx], true
}

// Recent implements Store.
func (s *InMemoryStore) Recent(n int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.records) == 0 {
		return nil
	}
	if n > len(s.records) {
		n = len(s.records)
	}

	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i])
	}
	return out
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
