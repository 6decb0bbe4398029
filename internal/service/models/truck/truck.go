package truck

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPrepMinutes is the global fallback used when a truck has no
	// completed orders and no configured default.
	DefaultPrepMinutes = 15

	// DefaultMaxConcurrentOrders is the capacity ceiling applied to trucks
	// without an explicit configuration.
	DefaultMaxConcurrentOrders = 3
)

// Truck holds the vendor-side configuration relevant to fulfillment.
type Truck struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	DefaultPrepMinutes  int       `json:"defaultPrepMinutes"`
	MaxConcurrentOrders int       `json:"maxConcurrentOrders"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// MetricsSnapshot is the derived view of a truck's historical performance.
// It is recomputed on demand and never cached across transitions.
type MetricsSnapshot struct {
	AveragePrepMinutes  float64 `json:"averagePrepMinutes"`
	MaxConcurrentOrders int     `json:"maxConcurrentOrders"`
	SampleSize          int     `json:"sampleSize"`
}

// QueueSnapshot is the derived view of a truck's live preparation queue.
type QueueSnapshot struct {
	// Position is the count of orders currently confirmed or preparing;
	// a freshly placed order would enter the queue at this position.
	Position int `json:"position"`

	// OldestActiveAt is the creation time of the oldest active order, if any.
	OldestActiveAt *time.Time `json:"oldestActiveAt,omitempty"`
}

// DefaultMetrics is the snapshot substituted when the store is unreachable.
func DefaultMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		AveragePrepMinutes:  DefaultPrepMinutes,
		MaxConcurrentOrders: DefaultMaxConcurrentOrders,
	}
}
