package stores

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore is a process-local StateStore. Suitable for
// single-instance deployments and tests.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]StateRecord
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStateStore creates an empty store. now defaults to time.Now.
func NewMemoryStateStore(now func() time.Time) *MemoryStateStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStateStore{
		entries: make(map[string]StateRecord),
		now:     now,
		done:    make(chan struct{}),
	}
}

func (s *MemoryStateStore) Save(_ context.Context, state string, record StateRecord, ttl time.Duration) error {
	record.ExpiresAt = s.now().Add(ttl)
	s.mu.Lock()
	s.entries[state] = record
	s.mu.Unlock()
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (StateRecord, error) {
	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok || s.now().After(record.ExpiresAt) {
		return StateRecord{}, ErrStateNotFound
	}
	return record, nil
}

// Sweep removes expired entries and reports how many were removed.
func (s *MemoryStateStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, record := range s.entries {
		if now.After(record.ExpiresAt) {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until Close. Best-effort
// memory bounding only; Consume already rejects expired entries.
func (s *MemoryStateStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Close stops the sweeper, if any. Idempotent.
func (s *MemoryStateStore) Close() {
	s.once.Do(func() { close(s.done) })
}

// Len reports the number of live entries, expired or not.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
