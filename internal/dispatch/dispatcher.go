package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/curbfare/fulfillment/internal/service/models/event"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/google/uuid"
)

// ErrDispatcherClosed is returned by Subscribe after shutdown has begun.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

type markerStore interface {
	Get(ctx context.Context, observerID string, orderID uuid.UUID) (order.Status, bool, error)
	Upsert(ctx context.Context, observerID string, orderID uuid.UUID, status order.Status) error
}

type orderGetter interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (order.Order, error)
}

// Dispatcher fans order status transitions out to subscribed observers.
//
// Each observer holds its own durable last-notified marker, so delivery is
// exactly once per distinct transition even when the underlying mutation
// stream redelivers, and a reconnecting observer does not re-receive
// transitions it has already seen. Delivery order follows the order's
// monotonic version counter.
type Dispatcher struct {
	markers markerStore
	orders  orderGetter

	mu     sync.Mutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

// option is a function that configures the Dispatcher.
type option func(*Dispatcher)

// MustNewDispatcher creates a new dispatcher.
func MustNewDispatcher(opts ...option) *Dispatcher {
	d := &Dispatcher{
		subs: make(map[uuid.UUID]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.markers == nil || d.orders == nil {
		panic("dispatcher requires a marker store and an order getter")
	}

	return d
}

// WithMarkerStore sets the durable observer marker store.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMarkerStore(markers markerStore) option {
	return func(d *Dispatcher) {
		d.markers = markers
	}
}

// WithOrderGetter sets the order snapshot reader used to bring fresh
// observers up to date.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderGetter(orders orderGetter) option {
	return func(d *Dispatcher) {
		d.orders = orders
	}
}

// Subscribe starts watching an order on behalf of an observer. The returned
// subscription delivers StatusChanged events on Events until the order
// reaches a terminal status, the context is cancelled, or Close is called.
func (d *Dispatcher) Subscribe(
	ctx context.Context,
	observerID string,
	orderID uuid.UUID,
) (*Subscription, error) {
	sub := newSubscription(d, observerID, orderID)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDispatcherClosed
	}
	if d.subs[orderID] == nil {
		d.subs[orderID] = make(map[*Subscription]struct{})
	}
	d.subs[orderID][sub] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		sub.run(ctx)
	}()

	return sub, nil
}

// Publish hands an applied transition to every subscription watching the
// order. It never blocks on slow observers; each subscription drains its own
// queue in version order.
func (d *Dispatcher) Publish(ev event.StatusChanged) {
	d.mu.Lock()
	targets := make([]*Subscription, 0, len(d.subs[ev.OrderID]))
	for sub := range d.subs[ev.OrderID] {
		targets = append(targets, sub)
	}
	d.mu.Unlock()

	for _, sub := range targets {
		sub.enqueue(ev)
	}
}

// Close cancels every subscription and waits for their goroutines to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	var all []*Subscription
	for _, subs := range d.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	d.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
	d.wg.Wait()
}

func (d *Dispatcher) remove(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if subs, ok := d.subs[sub.orderID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(d.subs, sub.orderID)
		}
	}
}
