package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/curbfare/fulfillment/internal/service/models/event"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/google/uuid"
)

// Subscription is one observer's view of one order's status stream.
// Closing it is explicit and releases the backing goroutine.
type Subscription struct {
	d          *Dispatcher
	observerID string
	orderID    uuid.UUID

	events chan event.StatusChanged

	mu      sync.Mutex
	pending []event.StatusChanged
	wake    chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(d *Dispatcher, observerID string, orderID uuid.UUID) *Subscription {
	return &Subscription{
		d:          d,
		observerID: observerID,
		orderID:    orderID,
		events:     make(chan event.StatusChanged, 8),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Events returns the stream of status changes. The channel is closed when
// the subscription ends for any reason.
func (s *Subscription) Events() <-chan event.StatusChanged {
	return s.events
}

// Close cancels the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// enqueue queues an applied transition for delivery without blocking the
// publisher.
func (s *Subscription) enqueue(ev event.StatusChanged) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drain takes the queued transitions in version order.
func (s *Subscription) drain() []event.StatusChanged {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool {
		return batch[i].Version < batch[j].Version
	})

	return batch
}

func (s *Subscription) run(ctx context.Context) {
	defer func() {
		s.d.remove(s)
		close(s.events)
	}()

	lastNotified, hasMarker, err := s.d.markers.Get(ctx, s.observerID, s.orderID)
	if err != nil {
		// degrade to at-least-once rather than dropping the observer
		slog.Error("Failed to load observer marker",
			"observer_id", s.observerID,
			"order_id", s.orderID,
			"error", err,
		)
	}

	var lastVersion int64

	// Bring the observer up to date with the order's current status. A fresh
	// observer with no marker is notified for the current status once.
	current, err := s.d.orders.GetOrder(ctx, s.orderID)
	switch {
	case err == nil:
		if !hasMarker || current.Status != lastNotified {
			from := order.Status("")
			if hasMarker {
				from = lastNotified
			}
			ev := event.StatusChanged{
				OrderID:    current.ID,
				TruckID:    current.TruckID,
				FromStatus: from,
				ToStatus:   current.Status,
				Version:    current.Version,
				OccurredAt: current.UpdatedAt,
				Order:      current,
			}
			if !s.emit(ctx, ev) {
				return
			}
			lastNotified = current.Status
			hasMarker = true
			s.saveMarker(ctx, current.Status)
		}
		lastVersion = current.Version
		if current.Status.IsTerminal() {
			return
		}
	case errors.Is(err, order.ErrNotFound):
		// nothing to catch up on; wait for the first published transition
	default:
		slog.Error("Failed to read order for catch-up",
			"order_id", s.orderID,
			"error", err,
		)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.wake:
		}

		for _, ev := range s.drain() {
			if ev.Version <= lastVersion {
				// stale redelivery of a transition already processed
				continue
			}
			if hasMarker && ev.ToStatus == lastNotified {
				// duplicate delivery or an unrelated field changed
				lastVersion = ev.Version
				continue
			}

			if !s.emit(ctx, ev) {
				return
			}
			lastNotified = ev.ToStatus
			hasMarker = true
			lastVersion = ev.Version
			s.saveMarker(ctx, ev.ToStatus)

			if ev.ToStatus.IsTerminal() {
				return
			}
		}
	}
}

func (s *Subscription) emit(ctx context.Context, ev event.StatusChanged) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

func (s *Subscription) saveMarker(ctx context.Context, status order.Status) {
	if err := s.d.markers.Upsert(ctx, s.observerID, s.orderID, status); err != nil {
		slog.Error("Failed to persist observer marker",
			"observer_id", s.observerID,
			"order_id", s.orderID,
			"status", status,
			"error", err,
		)
	}
}
