package session

import (
	"context"
	"sync"
	"time"

	"truck-tracker-backend/internal/metrics"
)

type memoryEntry struct {
	session   ImportSession
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. An expired entry is dropped
// when it is read, and every Save sweeps out the rest.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	locks   *localLocks
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		locks:   newLocalLocks(),
	}
}

func (s *MemoryStore) Save(_ context.Context, sess *ImportSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.entries[sess.ID] = memoryEntry{session: *sess, expiresAt: now.Add(s.ttl)}
	metrics.ImportSessionsActive.Set(float64(len(s.entries)))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ImportSession, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[id]; ok && !s.now().Before(cur.expiresAt) {
			delete(s.entries, id)
			metrics.ImportSessionsActive.Set(float64(len(s.entries)))
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	sess := entry.session
	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	metrics.ImportSessionsActive.Set(float64(len(s.entries)))
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, id string) (func(), error) {
	return s.locks.tryLock(id)
}

func (s *MemoryStore) Close() error {
	return nil
}
