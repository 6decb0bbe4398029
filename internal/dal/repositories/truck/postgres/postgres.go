package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/curbfare/fulfillment/internal/dal/postgres"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TruckRepository reads vendor fulfillment configuration.
type TruckRepository struct {
	conn postgres.Querier
}

// NewTruckRepository creates a new truck repository.
func NewTruckRepository(conn postgres.Querier) *TruckRepository {
	return &TruckRepository{
		conn: conn,
	}
}

// Get returns the truck's fulfillment configuration.
func (r *TruckRepository) Get(ctx context.Context, id uuid.UUID) (truck.Truck, error) {
	var t truck.Truck

	query, args, err := sq.Select(
		"id",
		"name",
		"default_prep_minutes",
		"max_concurrent_orders",
		"created_at",
		"updated_at",
	).
		From("trucks").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return t, fmt.Errorf("failed to build select query: %w", err)
	}

	row := r.conn.QueryRow(ctx, query, args...)
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.DefaultPrepMinutes,
		&t.MaxConcurrentOrders,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t, fmt.Errorf("truck %s: %w", id, order.ErrNotFound)
		}

		return t, fmt.Errorf("failed to scan truck: %w", err)
	}

	return t, nil
}
