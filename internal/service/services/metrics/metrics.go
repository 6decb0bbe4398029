package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrMetricsUnavailable means the order store could not be reached while
// deriving snapshots. Callers substitute the global defaults instead of
// blocking the ordering flow.
var ErrMetricsUnavailable = errors.New("truck metrics unavailable")

const (
	// historyWindow bounds how many recent orders feed the average.
	historyWindow = 20

	defaultTimeout = 3 * time.Second
)

type orderReader interface {
	PrepDurations(ctx context.Context, truckID uuid.UUID, limit int) ([]time.Duration, error)
	ActiveQueue(ctx context.Context, truckID uuid.UUID) (truck.QueueSnapshot, error)
}

type truckReader interface {
	Get(ctx context.Context, id uuid.UUID) (truck.Truck, error)
}

// Service derives the two snapshots the estimator needs. Snapshots are
// recomputed on every call; a stale ETA is worse than the recomputation cost.
type Service struct {
	orders  orderReader
	trucks  truckReader
	timeout time.Duration
}

// option is a function that configures the Service.
type option func(*Service)

// MustNewService creates a new metrics service.
func MustNewService(opts ...option) *Service {
	s := &Service{
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.orders == nil || s.trucks == nil {
		panic("metrics service requires order and truck readers")
	}

	return s
}

// WithOrderReader sets the order store reader.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderReader(orders orderReader) option {
	return func(s *Service) {
		s.orders = orders
	}
}

// WithTruckReader sets the truck configuration reader.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTruckReader(trucks truckReader) option {
	return func(s *Service) {
		s.trucks = trucks
	}
}

// WithTimeout bounds how long snapshot reads may block a status transition.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTimeout(timeout time.Duration) option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// Snapshots computes the truck's metrics and queue snapshots concurrently,
// bounded by the configured timeout. Any store failure, including the
// timeout, surfaces as ErrMetricsUnavailable.
func (s *Service) Snapshots(
	ctx context.Context,
	truckID uuid.UUID,
) (truck.MetricsSnapshot, truck.QueueSnapshot, error) {
	var (
		metrics truck.MetricsSnapshot
		queue   truck.QueueSnapshot
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := s.truckMetrics(ctx, truckID)
		if err != nil {
			return err
		}
		metrics = m
		return nil
	})

	g.Go(func() error {
		q, err := s.orders.ActiveQueue(ctx, truckID)
		if err != nil {
			return fmt.Errorf("active queue for truck %s: %w", truckID, err)
		}
		queue = q
		return nil
	})

	if err := g.Wait(); err != nil {
		return metrics, queue, fmt.Errorf("%w: %w", ErrMetricsUnavailable, err)
	}

	return metrics, queue, nil
}

// truckMetrics averages actual preparation times over the truck's recent
// history, falling back to the truck's configured default and then to the
// global default when no history exists.
func (s *Service) truckMetrics(ctx context.Context, truckID uuid.UUID) (truck.MetricsSnapshot, error) {
	var m truck.MetricsSnapshot

	durations, err := s.orders.PrepDurations(ctx, truckID, historyWindow)
	if err != nil {
		return m, fmt.Errorf("prep durations for truck %s: %w", truckID, err)
	}

	m.MaxConcurrentOrders = truck.DefaultMaxConcurrentOrders
	m.SampleSize = len(durations)

	cfg, err := s.trucks.Get(ctx, truckID)
	switch {
	case err == nil:
		if cfg.MaxConcurrentOrders > 0 {
			m.MaxConcurrentOrders = cfg.MaxConcurrentOrders
		}
	case errors.Is(err, order.ErrNotFound):
		// unknown truck still gets an estimate from the global defaults
	default:
		return m, fmt.Errorf("truck config for %s: %w", truckID, err)
	}

	if len(durations) == 0 {
		m.AveragePrepMinutes = truck.DefaultPrepMinutes
		if err == nil && cfg.DefaultPrepMinutes > 0 {
			m.AveragePrepMinutes = float64(cfg.DefaultPrepMinutes)
		}
		return m, nil
	}

	var total time.Duration
	for _, d := range durations {
		total += d
	}
	m.AveragePrepMinutes = total.Minutes() / float64(len(durations))

	return m, nil
}
