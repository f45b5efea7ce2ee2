package repository

import (
	"time"

	"github.com/spec-kit/returnflow/internal/domain"
)

// DemoUsers are the customers loaded into a fresh in-memory provider.
func DemoUsers() []domain.User {
	return []domain.User{
		{
			ID:             "USER001",
			Name:           "John Doe",
			Email:          "john.doe@example.com",
			Phone:          "+1-555-0001",
			Address:        "123 Main St, Springfield",
			ReturnCount:    2,
			AccountAgeDays: 365,
		},
		{
			ID:             "USER002",
			Name:           "Jane Smith",
			Email:          "jane.smith@example.com",
			Phone:          "+1-555-0002",
			Address:        "456 Oak Ave, Riverside",
			ReturnCount:    0,
			AccountAgeDays: 180,
		},
	}
}

// DemoOrders are the purchases of DemoUsers, dated relative to now.
func DemoOrders(now time.Time) []domain.Order {
	daysAgo := func(n int) time.Time { return now.AddDate(0, 0, -n) }
	orders := []domain.Order{
		{
			ID:        "ORD001",
			UserID:    "USER001",
			OrderDate: daysAgo(7),
			Status:    "delivered",
			Items: []domain.OrderItem{
				{ID: "ITEM001", ProductName: "Wireless Headphones", UnitPrice: 149.99, Quantity: 1, Category: "Electronics"},
				{ID: "ITEM002", ProductName: "Phone Case", UnitPrice: 19.99, Quantity: 2, Category: "Accessories"},
			},
		},
		{
			ID:        "ORD002",
			UserID:    "USER001",
			OrderDate: daysAgo(14),
			Status:    "delivered",
			Items: []domain.OrderItem{
				{ID: "ITEM003", ProductName: "Running Shoes", UnitPrice: 89.99, Quantity: 1, Category: "Footwear"},
			},
		},
		{
			ID:        "ORD003",
			UserID:    "USER002",
			OrderDate: daysAgo(3),
			Status:    "delivered",
			Items: []domain.OrderItem{
				{ID: "ITEM004", ProductName: "Coffee Maker", UnitPrice: 79.99, Quantity: 1, Category: "Home & Kitchen"},
			},
		},
	}
	for i := range orders {
		orders[i].TotalAmount = orders[i].ComputeTotal()
	}
	return orders
}

// NewDemoProvider returns a memory provider loaded with the demo catalog.
func NewDemoProvider(opts ...MemoryOption) *MemoryProvider {
	p := NewMemoryProvider(opts...)
	for _, user := range DemoUsers() {
		p.PutUser(user)
	}
	for _, order := range DemoOrders(p.now()) {
		p.PutOrder(order)
	}
	return p
}
