package orderitem

import (
	"errors"
	"fmt"

	"github.com/curbfare/fulfillment/internal/service/models/currency"
	"github.com/google/uuid"
)

// OrderItem represents a single line of an order's cart.
type OrderItem struct {
	ID             uuid.UUID         `json:"id"`
	OrderID        uuid.UUID         `json:"orderId"`
	Name           string            `json:"name"`
	PriceCents     int64             `json:"priceCents"`
	PriceCurrency  currency.Currency `json:"priceCurrency"`
	Quantity       int               `json:"quantity"`
	Category       string            `json:"category"`
	Customizations []string          `json:"customizations,omitempty"`
}

var (
	ErrEmptyCart       = errors.New("cart has no items")
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
	ErrInvalidPrice    = errors.New("item price must not be negative")
	ErrMissingName     = errors.New("item name is required")
)

// Validate rejects malformed cart lines at the boundary instead of letting
// them reach pricing or estimation.
func Validate(items []OrderItem) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}

	for i, item := range items {
		if item.Name == "" {
			return fmt.Errorf("item %d: %w", i, ErrMissingName)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %d (%s): %w", i, item.Name, ErrInvalidQuantity)
		}
		if item.PriceCents < 0 {
			return fmt.Errorf("item %d (%s): %w", i, item.Name, ErrInvalidPrice)
		}
	}

	return nil
}
