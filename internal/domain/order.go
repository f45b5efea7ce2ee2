package domain

import (
	"time"
)

// OrderItem is a single line of an order.
type OrderItem struct {
	ID          string  `json:"item_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	Category    string  `json:"category"`
}

// TotalPrice returns unit price times quantity.
func (i OrderItem) TotalPrice() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Order is a seeded purchase. Only Status changes after creation.
type Order struct {
	ID          string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	Items       []OrderItem `json:"items"`
	OrderDate   time.Time   `json:"order_date"`
	TotalAmount float64     `json:"total_amount"`
	Status      string      `json:"status"`
}

// ItemByID finds an item of the order.
func (o *Order) ItemByID(itemID string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// AgeDays is the number of whole days between the order date and now.
func (o *Order) AgeDays(now time.Time) int {
	if now.Before(o.OrderDate) {
		return 0
	}
	return int(now.Sub(o.OrderDate).Hours() / 24)
}

// IsReturnable reports whether the order is still inside the return window.
func (o *Order) IsReturnable(now time.Time, windowDays int) bool {
	return o.AgeDays(now) <= windowDays
}

// ComputeTotal sums item totals.
func (o *Order) ComputeTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.TotalPrice()
	}
	return RoundCents(total)
}

// ProductNames lists item names in order.
func (o *Order) ProductNames() []string {
	names := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		names = append(names, item.ProductName)
	}
	return names
}
