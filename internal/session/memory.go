package session

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/returnflow/internal/domain"
)

// memoryStore keeps sessions in a map. Stored values are private copies.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		sessions: make(map[string]*domain.Session),
		now:      now,
	}
}

func (s *memoryStore) Create(_ context.Context, data *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[data.ID]; exists {
		return ErrAlreadyExists
	}
	now := s.now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	s.sessions[data.ID] = data.Clone()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.sessions[id]
	if !exists {
		return nil, nil
	}
	return data.Clone(), nil
}

func (s *memoryStore) Update(_ context.Context, data *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[data.ID]
	if !exists {
		return ErrNotFound
	}
	if stored.Version != data.Version {
		return ErrVersionConflict
	}

	data.Version++
	data.UpdatedAt = s.now()
	s.sessions[data.ID] = data.Clone()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *memoryStore) EvictIdle(_ context.Context, policy IdlePolicy) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, data := range s.sessions {
		if policy.Expired(data) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*domain.Session)
	return nil
}
