package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/returnflow/internal/domain"
)

// PostgresProvider implements Provider on top of the per-entity
// repositories. Mutations that must be atomic run in one transaction.
type PostgresProvider struct {
	pool    *pgxpool.Pool
	users   UserRepository
	orders  OrderRepository
	returns ReturnRepository
	now     func() time.Time
}

// NewPostgresProvider wires the repositories around pool.
func NewPostgresProvider(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{
		pool:    pool,
		users:   NewUserRepository(pool),
		orders:  NewOrderRepository(pool),
		returns: NewReturnRepository(pool),
		now:     time.Now,
	}
}

func (p *PostgresProvider) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return p.users.GetByID(ctx, id)
}

func (p *PostgresProvider) GetUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return p.users.GetByPhone(ctx, phone)
}

func (p *PostgresProvider) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return p.orders.GetByID(ctx, id)
}

func (p *PostgresProvider) GetUserOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	return p.orders.ListByUser(ctx, userID, limit)
}

func (p *PostgresProvider) CreateReturn(ctx context.Context, req *domain.ReturnRequest) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("return id required: %w", ErrConflict)
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = p.now().UTC()
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		users := &userRepository{db: tx}
		orders := &orderRepository{db: tx}
		returns := &returnRepository{db: tx}

		if err := users.lockForReturn(ctx, req.UserID); err != nil {
			return err
		}
		order, err := orders.GetByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != req.UserID {
			return fmt.Errorf("order %s: %w", req.OrderID, ErrNotFound)
		}
		if _, ok := order.ItemByID(req.ItemID); !ok {
			return fmt.Errorf("item %s in order %s: %w", req.ItemID, req.OrderID, ErrNotFound)
		}
		existing, err := returns.activeForItem(ctx, req.OrderID, req.ItemID)
		if err != nil {
			return err
		}
		if existing != "" {
			return &DuplicateReturnError{ReturnID: existing}
		}
		if err := returns.create(ctx, req); err != nil {
			return err
		}
		return users.incrementReturnCount(ctx, req.UserID)
	})
}

func (p *PostgresProvider) GetReturn(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	return p.returns.GetByID(ctx, id)
}

func (p *PostgresProvider) UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus) (*domain.ReturnRequest, error) {
	var updated *domain.ReturnRequest
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		returns := &returnRepository{db: tx}
		ret, err := returns.getForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransitionReturn(ret.Status, status) {
			return invalidTransition(id, ret.Status, status)
		}
		ret.Status = status
		if err := returns.setStatus(ctx, ret); err != nil {
			return err
		}
		updated = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (p *PostgresProvider) GetUserReturns(ctx context.Context, userID string) ([]domain.ReturnRequest, error) {
	return p.returns.ListByUser(ctx, userID)
}

func (p *PostgresProvider) CreateTracking(ctx context.Context, info *domain.TrackingInfo) error {
	return p.returns.CreateTracking(ctx, info)
}

func (p *PostgresProvider) GetTracking(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error) {
	return p.returns.GetTracking(ctx, trackingNumber)
}
