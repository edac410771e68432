package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	count  int64
	expiry time.Time
}

// MemoryStore is an in-process CounterStore used in tests and local
// development. It mirrors the store contract exactly, including window
// expiry, but shares nothing across processes.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// SetClock replaces the store's clock. Test hook for window-expiry behavior.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Increment increments the counter, resetting it when its window elapsed.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiry) {
		c = &memoryCounter{expiry: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.expiry.Sub(now), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
