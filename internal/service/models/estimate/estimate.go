package estimate

import (
	"time"

	"github.com/curbfare/fulfillment/internal/service/models/truck"
)

// Estimate is the wait-time breakdown returned to callers. All minute values
// are already rounded up; EstimatedReadyTime is derived from the total.
type Estimate struct {
	TotalWaitMinutes   int       `json:"totalWaitMinutes"`
	PreparationTime    int       `json:"preparationTime"`
	QueueTime          int       `json:"queueTime"`
	PeakAdjustment     int       `json:"peakAdjustment"`
	QueuePosition      int       `json:"queuePosition"`
	EstimatedReadyTime time.Time `json:"estimatedReadyTime"`
}

// Default is the estimate substituted when metrics cannot be computed:
// the global default preparation time with an empty queue. Estimation
// degrades to this rather than blocking or failing the ordering flow.
func Default(now time.Time) Estimate {
	return Estimate{
		TotalWaitMinutes:   truck.DefaultPrepMinutes,
		PreparationTime:    truck.DefaultPrepMinutes,
		QueueTime:          0,
		PeakAdjustment:     0,
		QueuePosition:      0,
		EstimatedReadyTime: now.Add(truck.DefaultPrepMinutes * time.Minute),
	}
}
