package debounce

import (
	"sync"
	"time"
)

// Store is the per-resource cooldown ledger gating repeated remediation
type Store interface {
	// Admit records now against key and returns true if the key has no
	// record or its record is at least cooldown old. Otherwise it returns
	// false and leaves the record untouched.
	Admit(key string, now time.Time, cooldown time.Duration) bool

	// Prune drops records older than maxAge and returns how many were removed
	Prune(now time.Time, maxAge time.Duration) (int, error)

	// Len returns the number of records currently held, expired or not
	Len() int

	Close() error
}

// expired reports whether a record taken at last no longer blocks an action at now
func expired(last, now time.Time, cooldown time.Duration) bool {
	return !now.Before(last.Add(cooldown))
}

// MemoryStore keeps the ledger in a map guarded by a mutex
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (s *MemoryStore) Admit(key string, now time.Time, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.entries[key]; ok && !expired(last, now, cooldown) {
		return false
	}
	s.entries[key] = now
	return true
}

func (s *MemoryStore) Prune(now time.Time, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, last := range s.entries {
		if expired(last, now, maxAge) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}
