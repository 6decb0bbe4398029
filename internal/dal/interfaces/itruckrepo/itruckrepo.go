package itruckrepo

import (
	"context"

	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/google/uuid"
)

// ITruckRepository reads vendor-side fulfillment configuration.
type ITruckRepository interface {
	Get(ctx context.Context, id uuid.UUID) (truck.Truck, error)
}
