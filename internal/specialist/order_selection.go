package specialist

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spec-kit/returnflow/internal/classifier"
	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/repository"
)

var (
	ordinals = []wordSet{
		words("first", "1st", "1", "latest", "most recent"),
		words("second", "2nd", "2"),
		words("third", "3rd", "3"),
	}
	orderIDPattern = regexp.MustCompile(`\bord-?\d+\b`)
)

// listedOrders is how many orders the selection prompt reads out.
const listedOrders = 3

// OrderSelection finds the order and item the caller wants to return.
//
// Reads: UserID, AwaitingOrderSelection, AvailableOrderIDs, SelectedOrderID.
// Writes: AvailableOrderIDs, AwaitingOrderSelection, SelectedOrderID,
// SelectedItemID, ItemName, ItemPrice.
type OrderSelection struct {
	deps Dependencies
}

func (h *OrderSelection) Name() string { return "order_selection" }

func (h *OrderSelection) Handle(ctx context.Context, text string, s *domain.Session) (Result, error) {
	if s.UserID == "" {
		return needIdentity(), nil
	}
	norm := classifier.Normalize(text)

	switch {
	case s.Context.SelectedOrderID != "" && s.Context.SelectedItemID == "":
		order, err := h.deps.Provider.GetOrder(ctx, s.Context.SelectedOrderID)
		if errors.Is(err, repository.ErrNotFound) {
			return lostOrder(s, "I couldn't find that order. Let me look up your orders again."), nil
		}
		if err != nil {
			return Result{}, err
		}
		return h.chooseOrder(order, norm, s), nil
	case s.Context.AwaitingOrderSelection && len(s.Context.AvailableOrderIDs) > 0:
		return h.selectOffered(ctx, norm, s)
	}
	return h.lookup(ctx, norm, s)
}

func (h *OrderSelection) lookup(ctx context.Context, norm string, s *domain.Session) (Result, error) {
	orders, err := h.deps.Provider.GetUserOrders(ctx, s.UserID, h.deps.Config.RecentOrderLimit)
	if err != nil {
		return Result{}, err
	}

	if order, err := h.explicitOrder(ctx, norm, s.UserID); err != nil {
		return Result{}, err
	} else if order != nil {
		return h.chooseOrder(order, norm, s), nil
	}

	switch len(orders) {
	case 0:
		return clarify("I couldn't find any recent orders for your account. Can you provide an order number?"), nil
	case 1:
		return h.chooseOrder(&orders[0], norm, s), nil
	}

	for i := range orders {
		if orderMentionsProduct(&orders[i], norm) {
			return h.chooseOrder(&orders[i], norm, s), nil
		}
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	s.Context.ResetSelection()
	s.Context.AvailableOrderIDs = ids
	s.Context.AwaitingOrderSelection = true

	return Result{
		Success: true,
		Message: h.ordersMessage(orders),
		Data:    map[string]any{"orders": orderSummaries(orders)},
		Next:    domain.StateAwaitOrderSelection,
	}, nil
}

func (h *OrderSelection) selectOffered(ctx context.Context, norm string, s *domain.Session) (Result, error) {
	if order, err := h.explicitOrder(ctx, norm, s.UserID); err != nil {
		return Result{}, err
	} else if order != nil {
		return h.chooseOrder(order, norm, s), nil
	}

	orders := make([]domain.Order, 0, len(s.Context.AvailableOrderIDs))
	for _, id := range s.Context.AvailableOrderIDs {
		order, err := h.deps.Provider.GetOrder(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return Result{}, err
		}
		orders = append(orders, *order)
	}
	if len(orders) == 0 {
		return lostOrder(s, "I couldn't find those orders anymore. Let me look up your orders again."), nil
	}

	for i := range orders {
		if orderMentionsProduct(&orders[i], norm) {
			return h.chooseOrder(&orders[i], norm, s), nil
		}
	}
	for i, ordinal := range ordinals {
		if !ordinal.In(norm) {
			continue
		}
		if i >= len(orders) {
			return clarify(fmt.Sprintf("I only found %d orders. Which one contains the item you want to return?", len(orders))), nil
		}
		return h.chooseOrder(&orders[i], norm, s), nil
	}
	// Ambiguous answers default to the most recent order.
	return h.chooseOrder(&orders[0], norm, s), nil
}

// explicitOrder resolves an order id spoken in the utterance, if it belongs
// to the user.
func (h *OrderSelection) explicitOrder(ctx context.Context, norm, userID string) (*domain.Order, error) {
	raw := orderIDPattern.FindString(norm)
	if raw == "" {
		return nil, nil
	}
	id := strings.ToUpper(strings.ReplaceAll(raw, "-", ""))
	order, err := h.deps.Provider.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, nil
	}
	return order, nil
}

// chooseOrder checks the return window and then resolves the item. The
// window check runs before any context write.
func (h *OrderSelection) chooseOrder(order *domain.Order, norm string, s *domain.Session) Result {
	now := h.deps.Clock()
	window := h.deps.Config.ReturnWindowDays
	if !order.IsReturnable(now, window) {
		age := order.AgeDays(now)
		return Result{
			Message: fmt.Sprintf("I'm sorry, but this order is outside the %d-day return window. "+
				"The order was placed %d days ago.", window, age),
			Data: map[string]any{
				"order_id":           order.ID,
				"order_age_days":     age,
				"return_window_days": window,
			},
			Next: domain.StateEnd,
		}
	}

	item := h.pickItem(order, norm)
	if item == nil {
		s.Context.ResetSelection()
		s.Context.SelectedOrderID = order.ID
		names := order.ProductNames()
		return Result{
			Success:               true,
			Message:               fmt.Sprintf("This order contains: %s. Which one would you like to return?", strings.Join(names, ", ")),
			Data:                  map[string]any{"order_id": order.ID, "items": names},
			Next:                  domain.StateAwaitOrderSelection,
			RequiresClarification: true,
		}
	}

	s.Context.ResetSelection()
	s.Context.SelectedOrderID = order.ID
	s.Context.SelectedItemID = item.ID
	s.Context.ItemName = item.ProductName
	s.Context.ItemPrice = item.UnitPrice

	return Result{
		Success: true,
		Message: fmt.Sprintf("Got it, you want to return the %s. Can you tell me why you're returning it?", item.ProductName),
		Data: map[string]any{
			"order_id":   order.ID,
			"item_id":    item.ID,
			"item_name":  item.ProductName,
			"item_price": item.UnitPrice,
		},
		Next: domain.StateReturnClassification,
	}
}

func (h *OrderSelection) pickItem(order *domain.Order, norm string) *domain.OrderItem {
	if len(order.Items) == 0 {
		return nil
	}
	if len(order.Items) == 1 {
		return &order.Items[0]
	}
	for i := range order.Items {
		if mentionsProduct(norm, order.Items[i].ProductName) {
			return &order.Items[i]
		}
	}
	for i, ordinal := range ordinals {
		if ordinal.In(norm) && i < len(order.Items) {
			return &order.Items[i]
		}
	}
	// A caller already describing what is wrong means the first item.
	if h.deps.Rules.Reasons.ClassifyDetailed(norm).Matched {
		return &order.Items[0]
	}
	return nil
}

func (h *OrderSelection) ordersMessage(orders []domain.Order) string {
	now := h.deps.Clock()
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d recent orders. ", len(orders))
	for i, order := range orders {
		if i == listedOrders {
			break
		}
		fmt.Fprintf(&b, "Order %d: %s from %s. ", i+1, strings.Join(order.ProductNames(), ", "), daysAgo(order.AgeDays(now)))
	}
	b.WriteString("Which order contains the item you want to return?")
	return b.String()
}

func orderMentionsProduct(order *domain.Order, norm string) bool {
	for _, item := range order.Items {
		if mentionsProduct(norm, item.ProductName) {
			return true
		}
	}
	return false
}

func orderSummaries(orders []domain.Order) []map[string]any {
	out := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		items := make([]map[string]any, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, map[string]any{"item_id": item.ID, "product_name": item.ProductName})
		}
		out = append(out, map[string]any{
			"order_id":   order.ID,
			"order_date": order.OrderDate.Format(time.RFC3339),
			"items":      items,
		})
	}
	return out
}

func daysAgo(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
