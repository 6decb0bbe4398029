package iorderitemrepo

import (
	"context"

	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/google/uuid"
)

// IOrderItemRepository persists the cart lines belonging to orders.
type IOrderItemRepository interface {
	BulkInsert(ctx context.Context, items []orderitem.OrderItem) error
	ListByOrderIds(ctx context.Context, orderIds []uuid.UUID) ([]orderitem.OrderItem, error)
}
