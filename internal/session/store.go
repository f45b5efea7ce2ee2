// Package session stores conversation sessions with optimistic versioning.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/returnflow/internal/domain"
)

var (
	ErrNotFound         = errors.New("session: not found")
	ErrAlreadyExists    = errors.New("session: already exists")
	ErrVersionConflict  = errors.New("session: version conflict")
	ErrInvalidConfig    = errors.New("session: invalid store configuration")
	ErrInvalidStoreType = errors.New("session: invalid store type")
)

// Store defines session storage operations.
type Store interface {
	// Create stores a new session with Version 1 and both timestamps set
	// to the store clock.
	Create(ctx context.Context, s *domain.Session) error

	// Get returns a copy of the session, or nil when it does not exist.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Update persists s if its Version matches the stored one, then bumps
	// Version and UpdatedAt. Returns ErrVersionConflict or ErrNotFound.
	Update(ctx context.Context, s *domain.Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// EvictIdle removes every session the policy considers expired and
	// returns their ids.
	EvictIdle(ctx context.Context, policy IdlePolicy) ([]string, error)

	// Close releases store resources.
	Close() error
}

// IdlePolicy decides when a session has been idle long enough to evict.
type IdlePolicy struct {
	Now time.Time
	// IdleTimeout applies to every session.
	IdleTimeout time.Duration
	// TerminalGrace applies to sessions whose state is terminal. Zero means
	// IdleTimeout.
	TerminalGrace time.Duration
}

// Expired reports whether s should be evicted.
func (p IdlePolicy) Expired(s *domain.Session) bool {
	idle := p.Now.Sub(s.UpdatedAt)
	if s.State.Terminal() && p.TerminalGrace > 0 && idle >= p.TerminalGrace {
		return true
	}
	return p.IdleTimeout > 0 && idle >= p.IdleTimeout
}
