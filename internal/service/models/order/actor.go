package order

import "github.com/google/uuid"

type ActorRole string

const (
	ActorVendor   ActorRole = "vendor"
	ActorCustomer ActorRole = "customer"
)

// Actor identifies who is attempting a status change. Vendors act on behalf
// of a truck, customers on behalf of themselves.
type Actor struct {
	Role       ActorRole `json:"role"`
	TruckID    uuid.UUID `json:"truckId,omitempty"`
	CustomerID uuid.UUID `json:"customerId,omitempty"`
}

// mayTransition checks ownership rules. The vendor owning the truck may apply
// any legal transition. A customer may only cancel their own order, and only
// before the vendor has confirmed it.
func (a Actor) mayTransition(o *Order, target Status) bool {
	switch a.Role {
	case ActorVendor:
		return a.TruckID == o.TruckID
	case ActorCustomer:
		return target == StatusCancelled &&
			o.Status == StatusPending &&
			a.CustomerID == o.CustomerID
	default:
		return false
	}
}
