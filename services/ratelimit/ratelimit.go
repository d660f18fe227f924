package ratelimitsvc

import (
	"context"
	"sync"
	"time"
)

// Store counts requests per key inside a rolling window. Allow reports
// whether the request at hand stays within limit.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type memoryStore struct {
	mutex   sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count     int
	expiresAt time.Time
}

var _ Store = (*memoryStore)(nil)

func NewMemoryStore() *memoryStore {
	return &memoryStore{buckets: make(map[string]*bucket)}
}

func (s *memoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	b, ok := s.buckets[key]
	if !ok || now.After(b.expiresAt) {
		s.buckets[key] = &bucket{count: 1, expiresAt: now.Add(window)}
		return true, nil
	}
	b.count++
	return b.count <= limit, nil
}
