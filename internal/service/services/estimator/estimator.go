package estimator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/curbfare/fulfillment/internal/service/models/estimate"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/samber/lo"
)

// ErrEstimationInput means the cart or snapshots are malformed. Callers fall
// back to a default estimate instead of silently clamping bad input to zero.
var ErrEstimationInput = errors.New("invalid estimation input")

// DefaultQueueOverlapFactor models partial overlap between concurrently
// preparing orders: a vendor working through K orders is not K times slower
// because preparation pipelines. Policy constant, not physics.
const DefaultQueueOverlapFactor = 0.7

// Per-quantity complexity weights by item category.
const (
	grillScore    = 2.0
	friedScore    = 1.5
	sandwichScore = 1.2
	customScore   = 0.5
)

// Input holds everything Calculate needs. The estimator is a pure function
// of this struct so it stays independently testable.
type Input struct {
	Items   []orderitem.OrderItem
	Metrics truck.MetricsSnapshot
	Queue   truck.QueueSnapshot

	// Now is the local wall clock used for rush-hour windows and the ready
	// time. Zero means time.Now().
	Now time.Time

	// OverlapFactor overrides DefaultQueueOverlapFactor when positive.
	OverlapFactor float64
}

// Calculate produces a single ETA from item complexity, historical prep
// time, the live queue and the time of day.
func Calculate(in Input) (estimate.Estimate, error) {
	var e estimate.Estimate

	if err := validate(in); err != nil {
		return e, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	overlap := in.OverlapFactor
	if overlap <= 0 {
		overlap = DefaultQueueOverlapFactor
	}

	complexityScore := lo.SumBy(in.Items, itemComplexity)
	totalItems := lo.SumBy(in.Items, func(item orderitem.OrderItem) int {
		return item.Quantity
	})

	multiplier := clamp(1+complexityScore/10, 1.0, 3.0)
	minimumTime := math.Max(5, float64(totalItems)*2)
	basePrepTime := math.Max(in.Metrics.AveragePrepMinutes*multiplier, minimumTime)

	queueWaitTime := float64(in.Queue.Position) * in.Metrics.AveragePrepMinutes * overlap

	peakAdjustment := basePrepTime * (rushMultiplier(now) - 1)

	totalWait := math.Ceil(queueWaitTime + basePrepTime + peakAdjustment)
	if math.IsNaN(totalWait) || totalWait < 0 {
		return e, fmt.Errorf("computed wait of %f minutes: %w", totalWait, ErrEstimationInput)
	}

	return estimate.Estimate{
		TotalWaitMinutes:   int(totalWait),
		PreparationTime:    int(math.Ceil(basePrepTime)),
		QueueTime:          int(math.Ceil(queueWaitTime)),
		PeakAdjustment:     int(math.Ceil(peakAdjustment)),
		QueuePosition:      in.Queue.Position,
		EstimatedReadyTime: now.Add(time.Duration(totalWait) * time.Minute),
	}, nil
}

func validate(in Input) error {
	for i, item := range in.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("item %d quantity %d: %w", i, item.Quantity, ErrEstimationInput)
		}
		if item.PriceCents < 0 {
			return fmt.Errorf("item %d price %d: %w", i, item.PriceCents, ErrEstimationInput)
		}
	}

	avg := in.Metrics.AveragePrepMinutes
	if avg <= 0 || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return fmt.Errorf("average prep time %f: %w", avg, ErrEstimationInput)
	}

	if in.Queue.Position < 0 {
		return fmt.Errorf("queue position %d: %w", in.Queue.Position, ErrEstimationInput)
	}

	return nil
}

// itemComplexity scores one cart line: a base point per unit, extra weight
// for categories that cook slowly, and a surcharge for customizations.
func itemComplexity(item orderitem.OrderItem) float64 {
	qty := float64(item.Quantity)
	score := qty

	score += qty * categoryScore(item.Category)

	if len(item.Customizations) > 0 {
		score += qty * customScore
	}

	return score
}

func categoryScore(category string) float64 {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "grill") || strings.Contains(c, "bbq"):
		return grillScore
	case strings.Contains(c, "fried") || strings.Contains(c, "cooked"):
		return friedScore
	case strings.Contains(c, "sandwich") || strings.Contains(c, "wrap"):
		return sandwichScore
	default:
		return 0
	}
}

// rushMultiplier scales preparation time during known high-demand windows,
// by local wall-clock day and hour.
func rushMultiplier(t time.Time) float64 {
	hour := t.Hour()
	weekday := t.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday

	switch {
	case !weekend && hour >= 11 && hour < 14:
		return 1.4
	case !weekend && hour >= 17 && hour < 19:
		return 1.3
	case weekend && hour >= 11 && hour < 14:
		return 1.3
	case weekend && hour >= 17 && hour < 20:
		return 1.2
	default:
		return 1.0
	}
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}

	return v
}
