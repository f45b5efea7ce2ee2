package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/returnflow/internal/domain"
)

// MemoryProvider keeps every record in process memory. Reads return copies
// so callers cannot mutate stored records.
type MemoryProvider struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	orders      map[string]domain.Order
	returns     map[string]domain.ReturnRequest
	returnOrder []string
	tracking    map[string]domain.TrackingInfo
	now         func() time.Time
}

// MemoryOption customizes a MemoryProvider.
type MemoryOption func(*MemoryProvider)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewMemoryProvider returns an empty provider.
func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		users:    make(map[string]domain.User),
		orders:   make(map[string]domain.Order),
		returns:  make(map[string]domain.ReturnRequest),
		tracking: make(map[string]domain.TrackingInfo),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PutUser inserts or replaces a user.
func (p *MemoryProvider) PutUser(user domain.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[user.ID] = user
}

// PutOrder inserts or replaces an order.
func (p *MemoryProvider) PutOrder(order domain.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders[order.ID] = cloneOrder(order)
}

func (p *MemoryProvider) GetUser(_ context.Context, id string) (*domain.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	user, ok := p.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &user, nil
}

func (p *MemoryProvider) GetUserByPhone(_ context.Context, phone string) (*domain.User, error) {
	want := normalizePhone(phone)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if want != "" {
		for _, user := range p.users {
			if normalizePhone(user.Phone) == want {
				return &user, nil
			}
		}
	}
	return nil, fmt.Errorf("user with phone %q: %w", phone, ErrNotFound)
}

func (p *MemoryProvider) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	order, ok := p.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	order = cloneOrder(order)
	return &order, nil
}

func (p *MemoryProvider) GetUserOrders(_ context.Context, userID string, limit int) ([]domain.Order, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	orders := make([]domain.Order, 0)
	for _, order := range p.orders {
		if order.UserID == userID {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (p *MemoryProvider) CreateReturn(_ context.Context, req *domain.ReturnRequest) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("return id required: %w", ErrConflict)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[req.UserID]
	if !ok {
		return fmt.Errorf("user %s: %w", req.UserID, ErrNotFound)
	}
	order, ok := p.orders[req.OrderID]
	if !ok || order.UserID != req.UserID {
		return fmt.Errorf("order %s: %w", req.OrderID, ErrNotFound)
	}
	if _, ok := order.ItemByID(req.ItemID); !ok {
		return fmt.Errorf("item %s in order %s: %w", req.ItemID, req.OrderID, ErrNotFound)
	}
	if _, exists := p.returns[req.ID]; exists {
		return fmt.Errorf("return %s: %w", req.ID, ErrConflict)
	}
	for _, id := range p.returnOrder {
		existing := p.returns[id]
		if existing.OrderID == req.OrderID && existing.ItemID == req.ItemID && existing.Active() {
			return &DuplicateReturnError{ReturnID: existing.ID}
		}
	}

	if req.CreatedAt.IsZero() {
		req.CreatedAt = p.now()
	}
	req.UpdatedAt = req.CreatedAt
	p.returns[req.ID] = *req
	p.returnOrder = append(p.returnOrder, req.ID)

	user.ReturnCount++
	p.users[user.ID] = user
	return nil
}

func (p *MemoryProvider) GetReturn(_ context.Context, id string) (*domain.ReturnRequest, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ret, ok := p.returns[id]
	if !ok {
		return nil, fmt.Errorf("return %s: %w", id, ErrNotFound)
	}
	return &ret, nil
}

func (p *MemoryProvider) UpdateReturnStatus(_ context.Context, id string, status domain.ReturnStatus) (*domain.ReturnRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ret, ok := p.returns[id]
	if !ok {
		return nil, fmt.Errorf("return %s: %w", id, ErrNotFound)
	}
	if !domain.CanTransitionReturn(ret.Status, status) {
		return nil, invalidTransition(id, ret.Status, status)
	}
	ret.Status = status
	ret.UpdatedAt = p.now()
	p.returns[id] = ret
	return &ret, nil
}

func (p *MemoryProvider) GetUserReturns(_ context.Context, userID string) ([]domain.ReturnRequest, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.ReturnRequest, 0)
	for _, id := range p.returnOrder {
		if ret := p.returns[id]; ret.UserID == userID {
			out = append(out, ret)
		}
	}
	return out, nil
}

func (p *MemoryProvider) CreateTracking(_ context.Context, info *domain.TrackingInfo) error {
	if info == nil || info.TrackingNumber == "" {
		return fmt.Errorf("tracking number required: %w", ErrConflict)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tracking[info.TrackingNumber]; exists {
		return fmt.Errorf("tracking %s: %w", info.TrackingNumber, ErrConflict)
	}
	stored := *info
	if info.EstimatedDelivery != nil {
		eta := *info.EstimatedDelivery
		stored.EstimatedDelivery = &eta
	}
	p.tracking[info.TrackingNumber] = stored
	return nil
}

func (p *MemoryProvider) GetTracking(_ context.Context, trackingNumber string) (*domain.TrackingInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info, ok := p.tracking[trackingNumber]
	if !ok {
		return nil, fmt.Errorf("tracking %s: %w", trackingNumber, ErrNotFound)
	}
	if info.EstimatedDelivery != nil {
		eta := *info.EstimatedDelivery
		info.EstimatedDelivery = &eta
	}
	return &info, nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return order
}
