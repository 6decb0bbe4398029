package order

import (
	"fmt"
	"math"
	"time"

	"github.com/curbfare/fulfillment/internal/service/models/currency"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/google/uuid"
)

// Order represents a single food truck order in the system.
//
// Status is the single authoritative field; it is mutated only through
// ApplyTransition. Monetary values are derived once at creation and never
// recomputed. Each per-status timestamp is stamped at most once.
type Order struct {
	ID         uuid.UUID             `json:"id"`
	CustomerID uuid.UUID             `json:"customerId"`
	TruckID    uuid.UUID             `json:"truckId"`
	Items      []orderitem.OrderItem `json:"items"`

	SpecialInstructions string `json:"specialInstructions,omitempty"`
	PickupPreference    string `json:"pickupPreference,omitempty"`

	SubtotalCents int64             `json:"subtotalCents"`
	TaxCents      int64             `json:"taxCents"`
	TotalCents    int64             `json:"totalCents"`
	Currency      currency.Currency `json:"currency"`

	Status Status `json:"status"`

	EstimatedPrepMinutes int        `json:"estimatedPrepTime"`
	EstimatedReadyTime   *time.Time `json:"estimatedReadyTime,omitempty"`

	// Version is a monotonic counter bumped on every applied transition,
	// used for optimistic writes and for ordering notification delivery.
	Version int64 `json:"version"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	PreparingAt *time.Time `json:"preparingAt,omitempty"`
	ReadyAt     *time.Time `json:"readyAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// ComputeTotals derives subtotal, tax and total from the items. Called once
// at creation; placement freezes the amounts.
func (o *Order) ComputeTotals(taxRate float64) {
	var subtotal int64
	for _, item := range o.Items {
		subtotal += item.PriceCents * int64(item.Quantity)
	}

	o.SubtotalCents = subtotal
	o.TaxCents = int64(math.Round(float64(subtotal) * taxRate))
	o.TotalCents = o.SubtotalCents + o.TaxCents
	o.Currency = currency.CurrencyUSD
}

// ApplyTransition validates and applies a status change in memory.
//
// Re-issuing the current status is a successful no-op (changed=false) so that
// retries over unreliable links neither re-stamp timestamps nor re-notify.
// On success the matching <status>At timestamp is stamped, UpdatedAt is set
// and Version is bumped. The order is untouched on any error.
func (o *Order) ApplyTransition(target Status, actor Actor, now time.Time) (changed bool, err error) {
	if _, ok := validStatuses[target]; !ok {
		return false, fmt.Errorf("%q: %w", target, ErrUnknownStatus)
	}

	if target == o.Status {
		return false, nil
	}

	if !o.Status.CanTransitionTo(target) {
		return false, fmt.Errorf("%s -> %s: %w", o.Status, target, ErrInvalidTransition)
	}

	if !actor.mayTransition(o, target) {
		return false, fmt.Errorf("%s on order %s: %w", actor.Role, o.ID, ErrUnauthorized)
	}

	o.Status = target
	o.stamp(target, now)
	o.UpdatedAt = now
	o.Version++

	return true, nil
}

// stamp sets the timestamp matching the entered status, at most once.
func (o *Order) stamp(status Status, now time.Time) {
	ts := &now
	switch status {
	case StatusConfirmed:
		if o.ConfirmedAt == nil {
			o.ConfirmedAt = ts
		}
	case StatusPreparing:
		if o.PreparingAt == nil {
			o.PreparingAt = ts
		}
	case StatusReady:
		if o.ReadyAt == nil {
			o.ReadyAt = ts
		}
	case StatusCompleted:
		if o.CompletedAt == nil {
			o.CompletedAt = ts
		}
	case StatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = ts
		}
	}
}

// ActualPrepTime returns how long preparation really took, when known.
func (o *Order) ActualPrepTime() (time.Duration, bool) {
	if o.PreparingAt == nil || o.ReadyAt == nil {
		return 0, false
	}

	return o.ReadyAt.Sub(*o.PreparingAt), true
}
