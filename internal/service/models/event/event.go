package event

import (
	"time"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/google/uuid"
)

// StatusChanged is emitted exactly once per applied status transition.
// FromStatus is empty when a fresh observer is brought up to date with an
// order it has never seen.
type StatusChanged struct {
	OrderID    uuid.UUID    `json:"orderId"`
	TruckID    uuid.UUID    `json:"truckId"`
	FromStatus order.Status `json:"fromStatus,omitempty"`
	ToStatus   order.Status `json:"toStatus"`
	Version    int64        `json:"version"`
	OccurredAt time.Time    `json:"occurredAt"`
	Order      order.Order  `json:"order"`
}
