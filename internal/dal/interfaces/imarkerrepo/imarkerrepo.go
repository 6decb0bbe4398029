package imarkerrepo

import (
	"context"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/google/uuid"
)

// IMarkerRepository stores the last status each observer was notified of,
// per (observer, order) pair. Markers are durable per observer, not per
// process, so a reconnecting observer does not re-receive old transitions.
type IMarkerRepository interface {
	Get(ctx context.Context, observerID string, orderID uuid.UUID) (order.Status, bool, error)
	Upsert(ctx context.Context, observerID string, orderID uuid.UUID, status order.Status) error
	Delete(ctx context.Context, observerID string, orderID uuid.UUID) error
}
