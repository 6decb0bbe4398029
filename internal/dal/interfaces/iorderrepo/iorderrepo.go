package iorderrepo

import (
	"context"
	"time"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/google/uuid"
)

// IOrderRepository is the order store contract: point reads, writes with an
// optimistic version check, and the derived reads estimation needs.
type IOrderRepository interface {
	// Insert persists a newly created order row.
	Insert(ctx context.Context, o order.Order) error

	// Get returns the order row without its items.
	Get(ctx context.Context, id uuid.UUID) (order.Order, error)

	// UpdateStatus writes the order's mutable fields if and only if the
	// stored version equals expectedVersion. Returns
	// order.ErrVersionConflict otherwise.
	UpdateStatus(ctx context.Context, o order.Order, expectedVersion int64) error

	// Query returns order rows matching the filter, newest first.
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)

	// PrepDurations returns actual preparation durations (readyAt minus
	// preparingAt) of the truck's most recent ready/completed orders.
	PrepDurations(ctx context.Context, truckID uuid.UUID, limit int) ([]time.Duration, error)

	// ActiveQueue counts the truck's confirmed/preparing orders.
	ActiveQueue(ctx context.Context, truckID uuid.UUID) (truck.QueueSnapshot, error)
}
