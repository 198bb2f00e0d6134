package service

import (
	"context"

	"github.com/sileshop/backend/internal/domain"
)

// OrderHistory reads a user's past orders.
type OrderHistory struct {
	orders OrderStore
}

// NewOrderHistory creates an OrderHistory.
func NewOrderHistory(orders OrderStore) *OrderHistory {
	return &OrderHistory{orders: orders}
}

// List returns the user's orders, newest first.
func (h *OrderHistory) List(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := h.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal(domain.CodeInternal, err)
	}
	return orders, nil
}
