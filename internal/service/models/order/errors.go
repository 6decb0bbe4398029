package order

import "errors"

var (
	// ErrInvalidTransition means the requested status is not a legal successor
	// of the order's current status. The order is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized means the actor has no right to advance this order.
	ErrUnauthorized = errors.New("actor is not allowed to change this order")

	// ErrNotFound means the order id is unknown.
	ErrNotFound = errors.New("order not found")

	// ErrVersionConflict means a concurrent writer advanced the order first.
	ErrVersionConflict = errors.New("order was modified concurrently")

	ErrUnknownStatus = errors.New("unknown order status")
)
