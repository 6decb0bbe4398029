package fulfillmentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/curbfare/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/curbfare/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/curbfare/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/curbfare/fulfillment/internal/dal/postgres"
	"github.com/curbfare/fulfillment/internal/dal/uow"
	"github.com/curbfare/fulfillment/internal/service/models/estimate"
	"github.com/curbfare/fulfillment/internal/service/models/event"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/curbfare/fulfillment/internal/service/models/outbox"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/curbfare/fulfillment/internal/service/services/estimator"
	"github.com/curbfare/fulfillment/internal/service/services/metrics"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	defaultTaxRate       = 0.08
	outboxMaxRetries     = 10
	statusChangedContent = "application/json"
)

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

type snapshotter interface {
	Snapshots(ctx context.Context, truckID uuid.UUID) (truck.MetricsSnapshot, truck.QueueSnapshot, error)
}

type publisher interface {
	Publish(ev event.StatusChanged)
}

// FulfillmentService owns the order lifecycle: creation, status transitions,
// estimation and reads. A successful transition is the sole trigger for
// downstream notifications.
type FulfillmentService struct {
	newUOW    func() unitOfWork
	metrics   snapshotter
	publisher publisher
	now       func() time.Time

	taxRate       float64
	overlapFactor float64
}

// option is a function that configures the FulfillmentService.
type option func(*FulfillmentService)

// MustNewFulfillmentService creates a new FulfillmentService.
func MustNewFulfillmentService(opts ...option) *FulfillmentService {
	s := &FulfillmentService{
		now:           time.Now,
		taxRate:       defaultTaxRate,
		overlapFactor: estimator.DefaultQueueOverlapFactor,
	}

	if rate := viper.GetFloat64("orders.tax_rate"); rate > 0 {
		s.taxRate = rate
	}
	if overlap := viper.GetFloat64("orders.queue_overlap_factor"); overlap > 0 {
		s.overlapFactor = overlap
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("fulfillment service requires a unit of work source")
	}
	if s.metrics == nil {
		panic("fulfillment service requires a metrics snapshot source")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the FulfillmentService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *FulfillmentService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithUnitOfWorkFactory injects a unit-of-work source directly. Used by
// tests to run the service against fakes.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *FulfillmentService) {
		s.newUOW = factory
	}
}

// WithMetrics sets the snapshot source for estimation.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMetrics(snapshots snapshotter) option {
	return func(s *FulfillmentService) {
		s.metrics = snapshots
	}
}

// WithClock overrides the wall clock. Used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *FulfillmentService) {
		s.now = now
	}
}

// SetPublisher wires the notification publisher. Set after construction
// because the dispatcher reads order snapshots back through this service.
func (s *FulfillmentService) SetPublisher(p publisher) {
	s.publisher = p
}

// CreateOrderModel is the input of CreateOrder.
type CreateOrderModel struct {
	CustomerID          uuid.UUID
	TruckID             uuid.UUID
	Items               []orderitem.OrderItem
	SpecialInstructions string
	PickupPreference    string
}

// CreateOrder places a new order in status pending. Monetary totals are
// derived once here; the initial ETA is attached best-effort.
func (s *FulfillmentService) CreateOrder(ctx context.Context, model CreateOrderModel) (order.Order, error) {
	var o order.Order

	if err := orderitem.Validate(model.Items); err != nil {
		return o, fmt.Errorf("%w: %w", estimator.ErrEstimationInput, err)
	}
	if model.CustomerID == uuid.Nil || model.TruckID == uuid.Nil {
		return o, fmt.Errorf("customer and truck are required: %w", estimator.ErrEstimationInput)
	}

	now := s.now()
	o = order.Order{
		ID:                  uuid.New(),
		CustomerID:          model.CustomerID,
		TruckID:             model.TruckID,
		SpecialInstructions: model.SpecialInstructions,
		PickupPreference:    model.PickupPreference,
		Status:              order.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	for i := range model.Items {
		model.Items[i].ID = uuid.New()
		model.Items[i].OrderID = o.ID
	}
	o.Items = model.Items

	o.ComputeTotals(s.taxRate)

	est := s.estimateOrDefault(ctx, o.TruckID, o.Items)
	o.EstimatedPrepMinutes = est.TotalWaitMinutes
	readyTime := est.EstimatedReadyTime
	o.EstimatedReadyTime = &readyTime

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return o, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	if err := work.OrderRepository().Insert(ctx, o); err != nil {
		return o, err
	}
	if err := work.OrderItemRepository().BulkInsert(ctx, o.Items); err != nil {
		return o, err
	}

	if err := work.Commit(ctx); err != nil {
		return o, fmt.Errorf("failed to commit order: %w", err)
	}

	slog.Info("Order created",
		"order_id", o.ID,
		"truck_id", o.TruckID,
		"total_cents", o.TotalCents,
		"estimated_wait_minutes", o.EstimatedPrepMinutes,
	)

	return o, nil
}

// Transition validates and applies a status change atomically, refreshing
// the ETA when preparation starts, and hands the applied transition to the
// notification paths (in-process dispatcher and transactional outbox).
func (s *FulfillmentService) Transition(
	ctx context.Context,
	orderID uuid.UUID,
	target order.Status,
	actor order.Actor,
) (order.Order, error) {
	var o order.Order

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return o, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	o, err := work.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return o, err
	}

	items, err := work.OrderItemRepository().ListByOrderIds(ctx, []uuid.UUID{orderID})
	if err != nil {
		return o, err
	}
	o.Items = items

	from := o.Status
	expectedVersion := o.Version

	changed, err := o.ApplyTransition(target, actor, s.now())
	if err != nil {
		return o, err
	}
	if !changed {
		// idempotent retry; nothing written, nothing notified
		return o, nil
	}

	if target == order.StatusPreparing {
		est := s.estimateOrDefault(ctx, o.TruckID, o.Items)
		o.EstimatedPrepMinutes = est.TotalWaitMinutes
		readyTime := est.EstimatedReadyTime
		o.EstimatedReadyTime = &readyTime
	}

	if err := work.OrderRepository().UpdateStatus(ctx, o, expectedVersion); err != nil {
		return o, err
	}

	ev := event.StatusChanged{
		OrderID:    o.ID,
		TruckID:    o.TruckID,
		FromStatus: from,
		ToStatus:   o.Status,
		Version:    o.Version,
		OccurredAt: o.UpdatedAt,
		Order:      o,
	}

	if err := s.insertOutbox(ctx, work.OutboxRepository(), ev); err != nil {
		return o, err
	}

	if err := work.Commit(ctx); err != nil {
		return o, fmt.Errorf("failed to commit transition: %w", err)
	}

	slog.Info("Order transitioned",
		"order_id", o.ID,
		"from", from,
		"to", o.Status,
		"version", o.Version,
	)

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}

	return o, nil
}

// Estimate computes the current ETA for a prospective cart at a truck.
// Malformed carts fail with estimator.ErrEstimationInput; an unreachable
// store degrades to the global default estimate instead of failing.
func (s *FulfillmentService) Estimate(
	ctx context.Context,
	truckID uuid.UUID,
	items []orderitem.OrderItem,
) (estimate.Estimate, error) {
	if err := orderitem.Validate(items); err != nil && !errors.Is(err, orderitem.ErrEmptyCart) {
		return estimate.Estimate{}, fmt.Errorf("%w: %w", estimator.ErrEstimationInput, err)
	}

	m, q, err := s.metrics.Snapshots(ctx, truckID)
	if err != nil {
		if errors.Is(err, metrics.ErrMetricsUnavailable) {
			slog.Warn("Metrics unavailable, using default estimate",
				"truck_id", truckID,
				"error", err,
			)
			return estimate.Default(s.now()), nil
		}

		return estimate.Estimate{}, err
	}

	return estimator.Calculate(estimator.Input{
		Items:         items,
		Metrics:       m,
		Queue:         q,
		Now:           s.now(),
		OverlapFactor: s.overlapFactor,
	})
}

// GetOrder returns a full order snapshot including its items.
func (s *FulfillmentService) GetOrder(ctx context.Context, orderID uuid.UUID) (order.Order, error) {
	work := s.newUOW()

	o, err := work.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return o, err
	}

	items, err := work.OrderItemRepository().ListByOrderIds(ctx, []uuid.UUID{orderID})
	if err != nil {
		return o, err
	}
	o.Items = items

	return o, nil
}

// QueryOrders returns orders matching the filter with their items, for the
// vendor board and archive views.
func (s *FulfillmentService) QueryOrders(
	ctx context.Context,
	filter *order.QueryOrdersModel,
) ([]order.Order, error) {
	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	items, err := work.OrderItemRepository().ListByOrderIds(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		for _, item := range items {
			if item.OrderID == orders[i].ID {
				orders[i].Items = append(orders[i].Items, item)
			}
		}
	}

	return orders, nil
}

// estimateOrDefault never fails: estimation is best-effort, fulfillment is
// not blocked by it.
func (s *FulfillmentService) estimateOrDefault(
	ctx context.Context,
	truckID uuid.UUID,
	items []orderitem.OrderItem,
) estimate.Estimate {
	est, err := s.Estimate(ctx, truckID, items)
	if err != nil {
		slog.Warn("Estimation failed, using default",
			"truck_id", truckID,
			"error", err,
		)
		return estimate.Default(s.now())
	}

	return est
}

func (s *FulfillmentService) insertOutbox(
	ctx context.Context,
	repo ioutboxrepo.IOutboxRepository,
	ev event.StatusChanged,
) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal status change event: %w", err)
	}

	now := s.now()

	return repo.Insert(ctx, outbox.Message{
		ExchangeName: viper.GetString("rabbitmq.events_exchange"),
		RoutingKey:   "order.status." + ev.ToStatus.String(),
		Payload:      payload,
		ContentType:  statusChangedContent,
		MaxRetries:   outboxMaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	})
}
