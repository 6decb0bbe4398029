package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/curbfare/fulfillment/internal/dal/postgres"
	"github.com/curbfare/fulfillment/internal/service/models/currency"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var orderColumns = []string{
	"id",
	"customer_id",
	"truck_id",
	"special_instructions",
	"pickup_preference",
	"subtotal_cents",
	"tax_cents",
	"total_cents",
	"currency",
	"status",
	"estimated_prep_minutes",
	"estimated_ready_time",
	"version",
	"created_at",
	"updated_at",
	"confirmed_at",
	"preparing_at",
	"ready_at",
	"completed_at",
	"cancelled_at",
}

// OrderDal represents the order data access layer model.
type OrderDal struct {
	Id                   uuid.UUID
	CustomerId           uuid.UUID
	TruckId              uuid.UUID
	SpecialInstructions  string
	PickupPreference     string
	SubtotalCents        int64
	TaxCents             int64
	TotalCents           int64
	Currency             string
	Status               string
	EstimatedPrepMinutes int
	EstimatedReadyTime   *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ConfirmedAt          *time.Time
	PreparingAt          *time.Time
	ReadyAt              *time.Time
	CompletedAt          *time.Time
	CancelledAt          *time.Time
}

// ToModel converts OrderDal to the service layer Order model.
func (d *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(d.Currency)
	if err != nil {
		return nil, err
	}

	status, err := order.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:                   d.Id,
		CustomerID:           d.CustomerId,
		TruckID:              d.TruckId,
		SpecialInstructions:  d.SpecialInstructions,
		PickupPreference:     d.PickupPreference,
		SubtotalCents:        d.SubtotalCents,
		TaxCents:             d.TaxCents,
		TotalCents:           d.TotalCents,
		Currency:             cur,
		Status:               status,
		EstimatedPrepMinutes: d.EstimatedPrepMinutes,
		EstimatedReadyTime:   d.EstimatedReadyTime,
		Version:              d.Version,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
		ConfirmedAt:          d.ConfirmedAt,
		PreparingAt:          d.PreparingAt,
		ReadyAt:              d.ReadyAt,
		CompletedAt:          d.CompletedAt,
		CancelledAt:          d.CancelledAt,
		Items:                []orderitem.OrderItem{}, // populated separately
	}, nil
}

func (d *OrderDal) scan(row pgx.Row) error {
	return row.Scan(
		&d.Id,
		&d.CustomerId,
		&d.TruckId,
		&d.SpecialInstructions,
		&d.PickupPreference,
		&d.SubtotalCents,
		&d.TaxCents,
		&d.TotalCents,
		&d.Currency,
		&d.Status,
		&d.EstimatedPrepMinutes,
		&d.EstimatedReadyTime,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ConfirmedAt,
		&d.PreparingAt,
		&d.ReadyAt,
		&d.CompletedAt,
		&d.CancelledAt,
	)
}

type PostgresOrderRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

// Insert persists a newly created order row.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) error {
	query, args, err := sq.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID,
			o.CustomerID,
			o.TruckID,
			o.SpecialInstructions,
			o.PickupPreference,
			o.SubtotalCents,
			o.TaxCents,
			o.TotalCents,
			o.Currency.String(),
			o.Status.String(),
			o.EstimatedPrepMinutes,
			o.EstimatedReadyTime,
			o.Version,
			o.CreatedAt,
			o.UpdatedAt,
			o.ConfirmedAt,
			o.PreparingAt,
			o.ReadyAt,
			o.CompletedAt,
			o.CancelledAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// Get returns the order row without its items.
func (r *PostgresOrderRepository) Get(ctx context.Context, id uuid.UUID) (order.Order, error) {
	var o order.Order

	query, args, err := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return o, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal OrderDal
	if err := dal.scan(r.conn.QueryRow(ctx, query, args...)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("order %s: %w", id, order.ErrNotFound)
		}

		return o, fmt.Errorf("failed to scan order: %w", err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return o, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	return *model, nil
}

// UpdateStatus writes the mutable order fields guarded by an optimistic
// version check, so two concurrent transitions cannot both succeed.
func (r *PostgresOrderRepository) UpdateStatus(
	ctx context.Context,
	o order.Order,
	expectedVersion int64,
) error {
	query, args, err := sq.Update("orders").
		Set("status", o.Status.String()).
		Set("estimated_prep_minutes", o.EstimatedPrepMinutes).
		Set("estimated_ready_time", o.EstimatedReadyTime).
		Set("version", o.Version).
		Set("updated_at", o.UpdatedAt).
		Set("confirmed_at", o.ConfirmedAt).
		Set("preparing_at", o.PreparingAt).
		Set("ready_at", o.ReadyAt).
		Set("completed_at", o.CompletedAt).
		Set("cancelled_at", o.CancelledAt).
		Where(sq.Eq{"id": o.ID, "version": expectedVersion}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s at version %d: %w", o.ID, expectedVersion, order.ErrVersionConflict)
	}

	return nil
}

// Query retrieves order rows based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(
	ctx context.Context,
	filter *order.QueryOrdersModel,
) ([]order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.TruckIds) > 0 {
		builder = builder.Where(sq.Eq{"truck_id": filter.TruckIds})
	}
	if len(filter.CustomerIds) > 0 {
		builder = builder.Where(sq.Eq{"customer_id": filter.CustomerIds})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, s.String())
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var dal OrderDal
		if err := dal.scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// PrepDurations returns actual preparation durations of the truck's most
// recent ready/completed orders, newest first.
func (r *PostgresOrderRepository) PrepDurations(
	ctx context.Context,
	truckID uuid.UUID,
	limit int,
) ([]time.Duration, error) {
	query, args, err := sq.Select("preparing_at", "ready_at").
		From("orders").
		Where(sq.Eq{"truck_id": truckID}).
		Where(sq.Eq{"status": []string{order.StatusReady.String(), order.StatusCompleted.String()}}).
		Where(sq.NotEq{"preparing_at": nil}).
		Where(sq.NotEq{"ready_at": nil}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prep durations: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var preparingAt, readyAt time.Time
		if err := rows.Scan(&preparingAt, &readyAt); err != nil {
			return nil, fmt.Errorf("failed to scan prep duration: %w", err)
		}
		durations = append(durations, readyAt.Sub(preparingAt))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return durations, nil
}

// ActiveQueue counts the truck's confirmed/preparing orders and finds the
// oldest of them.
func (r *PostgresOrderRepository) ActiveQueue(
	ctx context.Context,
	truckID uuid.UUID,
) (truck.QueueSnapshot, error) {
	var snapshot truck.QueueSnapshot

	query, args, err := sq.Select("COUNT(*)", "MIN(created_at)").
		From("orders").
		Where(sq.Eq{"truck_id": truckID}).
		Where(sq.Eq{"status": []string{order.StatusConfirmed.String(), order.StatusPreparing.String()}}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return snapshot, fmt.Errorf("failed to build select query: %w", err)
	}

	row := r.conn.QueryRow(ctx, query, args...)
	if err := row.Scan(&snapshot.Position, &snapshot.OldestActiveAt); err != nil {
		return snapshot, fmt.Errorf("failed to scan queue snapshot: %w", err)
	}

	return snapshot, nil
}
