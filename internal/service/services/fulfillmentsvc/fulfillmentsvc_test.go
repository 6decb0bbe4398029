package fulfillmentsvc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/curbfare/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/curbfare/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/curbfare/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/curbfare/fulfillment/internal/service/models/event"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/curbfare/fulfillment/internal/service/models/outbox"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/curbfare/fulfillment/internal/service/services/estimator"
	"github.com/curbfare/fulfillment/internal/service/services/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-03-03 15:00 UTC is a Monday afternoon, outside every rush window.
var offPeak = time.Date(2025, time.March, 3, 15, 0, 0, 0, time.UTC)

// fakeStore backs the unit-of-work fakes with plain maps. Transactions are
// not simulated; every write lands immediately, which is enough to verify
// the service's decisions.
type fakeStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]order.Order
	items  map[uuid.UUID][]orderitem.OrderItem
	outbox []outbox.Message

	// beforeUpdate runs inside UpdateStatus before the version check, so
	// tests can race a concurrent writer.
	beforeUpdate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders: make(map[uuid.UUID]order.Order),
		items:  make(map[uuid.UUID][]orderitem.OrderItem),
	}
}

func (s *fakeStore) outboxMessages() []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]outbox.Message(nil), s.outbox...)
}

func (s *fakeStore) storedOrder(t *testing.T, id uuid.UUID) order.Order {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	require.True(t, ok, "order %s not in store", id)
	return o
}

type fakeOrderRepo struct{ s *fakeStore }

func (r fakeOrderRepo) Insert(_ context.Context, o order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o.Items = nil
	r.s.orders[o.ID] = o
	return nil
}

func (r fakeOrderRepo) Get(_ context.Context, id uuid.UUID) (order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}

	return o, nil
}

func (r fakeOrderRepo) UpdateStatus(_ context.Context, o order.Order, expectedVersion int64) error {
	if r.s.beforeUpdate != nil {
		r.s.beforeUpdate()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("version %d expected %d: %w", stored.Version, expectedVersion, order.ErrVersionConflict)
	}

	o.Items = nil
	r.s.orders[o.ID] = o
	return nil
}

func (r fakeOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []order.Order
	for _, o := range r.s.orders {
		if len(filter.Ids) > 0 && !containsUUID(filter.Ids, o.ID) {
			continue
		}
		if len(filter.TruckIds) > 0 && !containsUUID(filter.TruckIds, o.TruckID) {
			continue
		}
		if len(filter.CustomerIds) > 0 && !containsUUID(filter.CustomerIds, o.CustomerID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, o.Status) {
			continue
		}
		out = append(out, o)
	}

	return out, nil
}

func (r fakeOrderRepo) PrepDurations(context.Context, uuid.UUID, int) ([]time.Duration, error) {
	return nil, nil
}

func (r fakeOrderRepo) ActiveQueue(context.Context, uuid.UUID) (truck.QueueSnapshot, error) {
	return truck.QueueSnapshot{}, nil
}

type fakeItemRepo struct{ s *fakeStore }

func (r fakeItemRepo) BulkInsert(_ context.Context, items []orderitem.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, item := range items {
		r.s.items[item.OrderID] = append(r.s.items[item.OrderID], item)
	}

	return nil
}

func (r fakeItemRepo) ListByOrderIds(_ context.Context, orderIds []uuid.UUID) ([]orderitem.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []orderitem.OrderItem
	for _, id := range orderIds {
		out = append(out, r.s.items[id]...)
	}

	return out, nil
}

type fakeOutboxRepo struct{ s *fakeStore }

func (r fakeOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.outbox = append(r.s.outbox, msg)
	return nil
}

func (r fakeOutboxRepo) GetPendingMessages(context.Context, int) ([]outbox.Message, error) {
	return nil, nil
}

func (r fakeOutboxRepo) Delete(context.Context, int64) error { return nil }

func (r fakeOutboxRepo) UpdateRetry(context.Context, int64, int, string, time.Time) error {
	return nil
}

type fakeUOW struct{ s *fakeStore }

func (u fakeUOW) Begin(context.Context) error    { return nil }
func (u fakeUOW) Commit(context.Context) error   { return nil }
func (u fakeUOW) Rollback(context.Context) error { return nil }

func (u fakeUOW) OrderRepository() iorderrepo.IOrderRepository { return fakeOrderRepo{s: u.s} }

func (u fakeUOW) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return fakeItemRepo{s: u.s}
}

func (u fakeUOW) OutboxRepository() ioutboxrepo.IOutboxRepository { return fakeOutboxRepo{s: u.s} }

type fakeSnapshots struct {
	metrics truck.MetricsSnapshot
	queue   truck.QueueSnapshot
	err     error
}

func (f fakeSnapshots) Snapshots(context.Context, uuid.UUID) (truck.MetricsSnapshot, truck.QueueSnapshot, error) {
	return f.metrics, f.queue, f.err
}

type capturePublisher struct {
	mu     sync.Mutex
	events []event.StatusChanged
}

func (p *capturePublisher) Publish(ev event.StatusChanged) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, ev)
}

func (p *capturePublisher) all() []event.StatusChanged {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]event.StatusChanged(nil), p.events...)
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []order.Status, status order.Status) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func newTestService(store *fakeStore, snaps snapshotter) (*FulfillmentService, *capturePublisher) {
	pub := &capturePublisher{}
	svc := MustNewFulfillmentService(
		WithUnitOfWorkFactory(func() unitOfWork { return fakeUOW{s: store} }),
		WithMetrics(snaps),
		WithClock(func() time.Time { return offPeak }),
	)
	svc.SetPublisher(pub)

	return svc, pub
}

func healthySnapshots() fakeSnapshots {
	return fakeSnapshots{
		metrics: truck.MetricsSnapshot{AveragePrepMinutes: 15, MaxConcurrentOrders: 3},
		queue:   truck.QueueSnapshot{Position: 0},
	}
}

func testCart() []orderitem.OrderItem {
	return []orderitem.OrderItem{
		{Name: "Pulled Pork Sandwich", PriceCents: 1250, Quantity: 1},
		{Name: "Lemonade", PriceCents: 399, Quantity: 1},
	}
}

func createTestOrder(t *testing.T, svc *FulfillmentService) order.Order {
	t.Helper()

	o, err := svc.CreateOrder(context.Background(), CreateOrderModel{
		CustomerID: uuid.New(),
		TruckID:    uuid.New(),
		Items:      testCart(),
	})
	require.NoError(t, err)

	return o
}

func TestCreateOrder(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store, healthySnapshots())

	customerID, truckID := uuid.New(), uuid.New()
	o, err := svc.CreateOrder(context.Background(), CreateOrderModel{
		CustomerID:          customerID,
		TruckID:             truckID,
		Items:               testCart(),
		SpecialInstructions: "extra napkins",
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, customerID, o.CustomerID)
	assert.Equal(t, truckID, o.TruckID)
	assert.Equal(t, int64(0), o.Version)

	// totals are derived once at creation with the default 8% tax
	assert.Equal(t, int64(1649), o.SubtotalCents)
	assert.Equal(t, int64(132), o.TaxCents)
	assert.Equal(t, int64(1781), o.TotalCents)

	// two simple items off-peak, avg 15: 15*1.2 = 18 minutes
	assert.Equal(t, 18, o.EstimatedPrepMinutes)
	require.NotNil(t, o.EstimatedReadyTime)
	assert.Equal(t, offPeak.Add(18*time.Minute), *o.EstimatedReadyTime)

	for _, item := range o.Items {
		assert.NotEqual(t, uuid.Nil, item.ID)
		assert.Equal(t, o.ID, item.OrderID)
	}

	stored := store.storedOrder(t, o.ID)
	assert.Equal(t, order.StatusPending, stored.Status)

	items, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, items.Items, 2)

	// creation is not a transition; nothing is published
	assert.Empty(t, pub.all())
	assert.Empty(t, store.outboxMessages())
}

func TestCreateOrder_RejectsEmptyCart(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, healthySnapshots())

	_, err := svc.CreateOrder(context.Background(), CreateOrderModel{
		CustomerID: uuid.New(),
		TruckID:    uuid.New(),
	})
	require.ErrorIs(t, err, orderitem.ErrEmptyCart)
}

func TestCreateOrder_SucceedsWhenMetricsDown(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, fakeSnapshots{
		err: fmt.Errorf("store unreachable: %w", metrics.ErrMetricsUnavailable),
	})

	o := createTestOrder(t, svc)

	// estimation degrades to the global default rather than blocking the order
	assert.Equal(t, 15, o.EstimatedPrepMinutes)
	require.NotNil(t, o.EstimatedReadyTime)
	assert.Equal(t, offPeak.Add(15*time.Minute), *o.EstimatedReadyTime)
}

func TestTransition_FullLifecyclePublishesEachStep(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store, healthySnapshots())

	o := createTestOrder(t, svc)
	vendor := order.Actor{Role: order.ActorVendor, TruckID: o.TruckID}

	sequence := []order.Status{
		order.StatusConfirmed,
		order.StatusPreparing,
		order.StatusReady,
		order.StatusCompleted,
	}

	for _, target := range sequence {
		updated, err := svc.Transition(context.Background(), o.ID, target, vendor)
		require.NoError(t, err)
		assert.Equal(t, target, updated.Status)
	}

	events := pub.all()
	require.Len(t, events, len(sequence))

	from := order.StatusPending
	for i, target := range sequence {
		assert.Equal(t, from, events[i].FromStatus)
		assert.Equal(t, target, events[i].ToStatus)
		assert.Equal(t, int64(i+1), events[i].Version)
		from = target
	}

	msgs := store.outboxMessages()
	require.Len(t, msgs, len(sequence))
	for i, target := range sequence {
		assert.Equal(t, "order.status."+target.String(), msgs[i].RoutingKey)
	}

	stored := store.storedOrder(t, o.ID)
	assert.Equal(t, order.StatusCompleted, stored.Status)
	assert.Equal(t, int64(4), stored.Version)
	require.NotNil(t, stored.ConfirmedAt)
	require.NotNil(t, stored.PreparingAt)
	require.NotNil(t, stored.ReadyAt)
	require.NotNil(t, stored.CompletedAt)
}

func TestTransition_InvalidLeavesOrderUntouched(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store, healthySnapshots())

	o := createTestOrder(t, svc)
	vendor := order.Actor{Role: order.ActorVendor, TruckID: o.TruckID}

	_, err := svc.Transition(context.Background(), o.ID, order.StatusReady, vendor)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	stored := store.storedOrder(t, o.ID)
	assert.Equal(t, order.StatusPending, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
	assert.Nil(t, stored.ReadyAt)

	assert.Empty(t, pub.all())
	assert.Empty(t, store.outboxMessages())
}

func TestTransition_IdempotentRetryNotifiesOnce(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store, healthySnapshots())

	o := createTestOrder(t, svc)
	vendor := order.Actor{Role: order.ActorVendor, TruckID: o.TruckID}

	first, err := svc.Transition(context.Background(), o.ID, order.StatusConfirmed, vendor)
	require.NoError(t, err)

	retry, err := svc.Transition(context.Background(), o.ID, order.StatusConfirmed, vendor)
	require.NoError(t, err, "retrying the same target must succeed")
	assert.Equal(t, order.StatusConfirmed, retry.Status)
	assert.Equal(t, first.Version, retry.Version)

	assert.Len(t, pub.all(), 1, "a retried transition must not notify again")
	assert.Len(t, store.outboxMessages(), 1)
}

func TestTransition_Unauthorized(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store, healthySnapshots())

	o := createTestOrder(t, svc)

	_, err := svc.Transition(context.Background(), o.ID, order.StatusConfirmed,
		order.Actor{Role: order.ActorVendor, TruckID: uuid.New()})
	require.ErrorIs(t, err, order.ErrUnauthorized)

	_, err = svc.Transition(context.Background(), o.ID, order.StatusConfirmed,
		order.Actor{Role: order.ActorCustomer, CustomerID: o.CustomerID})
	require.ErrorIs(t, err, order.ErrUnauthorized)

	assert.Empty(t, pub.all())
}

func TestTransition_CustomerCancelsPendingOrder(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store, healthySnapshots())

	o := createTestOrder(t, svc)

	cancelled, err := svc.Transition(context.Background(), o.ID, order.StatusCancelled,
		order.Actor{Role: order.ActorCustomer, CustomerID: o.CustomerID})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, order.StatusCancelled, events[0].ToStatus)
}

func TestTransition_PreparingRefreshesEstimate(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, fakeSnapshots{
		metrics: truck.MetricsSnapshot{AveragePrepMinutes: 10, MaxConcurrentOrders: 3},
		queue:   truck.QueueSnapshot{Position: 2},
	})

	o := createTestOrder(t, svc)
	vendor := order.Actor{Role: order.ActorVendor, TruckID: o.TruckID}

	_, err := svc.Transition(context.Background(), o.ID, order.StatusConfirmed, vendor)
	require.NoError(t, err)

	updated, err := svc.Transition(context.Background(), o.ID, order.StatusPreparing, vendor)
	require.NoError(t, err)

	// base 10*1.2 = 12, queue 2*10*0.7 = 14, off-peak: ceil(26) = 26
	assert.Equal(t, 26, updated.EstimatedPrepMinutes)
	require.NotNil(t, updated.EstimatedReadyTime)
	assert.Equal(t, offPeak.Add(26*time.Minute), *updated.EstimatedReadyTime)
}

func TestTransition_VersionConflict(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store, healthySnapshots())

	o := createTestOrder(t, svc)
	vendor := order.Actor{Role: order.ActorVendor, TruckID: o.TruckID}

	// a concurrent writer lands between the read and the write
	store.beforeUpdate = func() {
		store.mu.Lock()
		concurrent := store.orders[o.ID]
		concurrent.Version++
		store.orders[o.ID] = concurrent
		store.mu.Unlock()
		store.beforeUpdate = nil
	}

	_, err := svc.Transition(context.Background(), o.ID, order.StatusConfirmed, vendor)
	require.ErrorIs(t, err, order.ErrVersionConflict)
	assert.Empty(t, pub.all())
}

func TestTransition_OrderNotFound(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, healthySnapshots())

	_, err := svc.Transition(context.Background(), uuid.New(), order.StatusConfirmed,
		order.Actor{Role: order.ActorVendor, TruckID: uuid.New()})
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestEstimate_DefaultWhenStoreUnreachable(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, fakeSnapshots{
		err: fmt.Errorf("postgres down: %w", metrics.ErrMetricsUnavailable),
	})

	est, err := svc.Estimate(context.Background(), uuid.New(), testCart())
	require.NoError(t, err, "an unreachable store must degrade, not fail")

	assert.Equal(t, 15, est.TotalWaitMinutes)
	assert.Equal(t, 15, est.PreparationTime)
	assert.Equal(t, 0, est.QueueTime)
	assert.Equal(t, offPeak.Add(15*time.Minute), est.EstimatedReadyTime)
}

func TestEstimate_InvalidCart(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, healthySnapshots())

	items := testCart()
	items[0].Quantity = 0

	_, err := svc.Estimate(context.Background(), uuid.New(), items)
	require.ErrorIs(t, err, estimator.ErrEstimationInput)
}

func TestEstimate_EmptyCartAllowed(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, healthySnapshots())

	// a prospective customer may ask for the wait before picking items
	est, err := svc.Estimate(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 15, est.TotalWaitMinutes) // avg 15 with no complexity or queue
}

func TestGetOrder_NotFound(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, healthySnapshots())

	_, err := svc.GetOrder(context.Background(), uuid.New())
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestQueryOrders_AttachesItems(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, healthySnapshots())

	first := createTestOrder(t, svc)
	second := createTestOrder(t, svc)

	orders, err := svc.QueryOrders(context.Background(), &order.QueryOrdersModel{
		Ids: []uuid.UUID{first.ID, second.ID},
	})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	for _, o := range orders {
		assert.Len(t, o.Items, 2, "order %s must carry its items", o.ID)
		for _, item := range o.Items {
			assert.Equal(t, o.ID, item.OrderID)
		}
	}
}
