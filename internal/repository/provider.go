package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/returnflow/internal/domain"
)

var (
	// ErrNotFound is returned when a user, order, return or tracking record
	// does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when a record would duplicate an existing one.
	ErrConflict = errors.New("repository: conflict")
	// ErrInvalidTransition is returned when a return status update would move
	// the return backwards or out of a terminal status.
	ErrInvalidTransition = errors.New("repository: invalid return status transition")
)

// DuplicateReturnError reports an open return for the same order item.
type DuplicateReturnError struct {
	ReturnID string
}

func (e *DuplicateReturnError) Error() string {
	return fmt.Sprintf("repository: return %s already open for this item", e.ReturnID)
}

// Is makes the error match ErrConflict.
func (e *DuplicateReturnError) Is(target error) bool {
	return target == ErrConflict
}

// Provider is the data access surface used by the conversation handlers.
type Provider interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// GetUserOrders returns the user's orders, most recent first. A
	// non-positive limit returns all of them.
	GetUserOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error)
	// CreateReturn stores req and increments the owner's return count in the
	// same atomic step.
	CreateReturn(ctx context.Context, req *domain.ReturnRequest) error
	GetReturn(ctx context.Context, id string) (*domain.ReturnRequest, error)
	// UpdateReturnStatus moves a return along its lifecycle and returns the
	// updated record.
	UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus) (*domain.ReturnRequest, error)
	// GetUserReturns returns the user's returns oldest first.
	GetUserReturns(ctx context.Context, userID string) ([]domain.ReturnRequest, error)
	CreateTracking(ctx context.Context, info *domain.TrackingInfo) error
	GetTracking(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error)
}

func invalidTransition(id string, from, to domain.ReturnStatus) error {
	return fmt.Errorf("%w: return %s %s -> %s", ErrInvalidTransition, id, from, to)
}

func normalizePhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	return string(digits)
}
