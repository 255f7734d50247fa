package correlation

import "sync"

// Store holds correlation entries keyed by canonical pair.
type Store interface {
	// Get returns the entry for p and whether it was present.
	Get(p Pair) (Entry, bool, error)
	Put(p Pair, e Entry) error
	Len() (int, error)
	Close() error
}

// MemoryStore is a Store backed by a map. It lives as long as the run.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Pair]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Pair]Entry)}
}

// Get implements Store.
func (s *MemoryStore) Get(p Pair) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[p]
	return e, ok, nil
}

// Put implements Store.
func (s *MemoryStore) Put(p Pair, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p] = e
	return nil
}

// Len implements Store.
func (s *MemoryStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
