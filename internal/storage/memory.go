// Package storage keeps recent pipeline results in memory for the
// synchronous front end.
package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/dharsanguruparan/upnqr/internal/model"
)

var (
	ErrNotFound = errors.New("result not found")
)

// MemoryStore holds at most capacity results; saving beyond that evicts the
// oldest entry.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	results  map[string]*model.Result
	order    []string
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStore{
		capacity: capacity,
		results:  make(map[string]*model.Result, capacity),
	}
}

// Save inserts or replaces a result.
func (m *MemoryStore) Save(result *model.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	if _, ok := m.results[result.ID]; !ok {
		m.order = append(m.order, result.ID)
	}
	m.results[result.ID] = result
	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.results, oldest)
	}
}

// Get returns a copy of the result.
func (m *MemoryStore) Get(id string) (*model.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *res
	return &out, nil
}

// Len reports how many results are held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}
