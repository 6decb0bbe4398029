package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/curbfare/fulfillment/internal/dal/postgres"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MarkerRepository persists per-(observer, order) last-notified statuses so
// notification de-duplication survives reconnects and restarts.
type MarkerRepository struct {
	conn postgres.Querier
}

// NewMarkerRepository creates a new marker repository.
func NewMarkerRepository(conn postgres.Querier) *MarkerRepository {
	return &MarkerRepository{
		conn: conn,
	}
}

// Get returns the last status the observer was notified of for the order.
func (r *MarkerRepository) Get(
	ctx context.Context,
	observerID string,
	orderID uuid.UUID,
) (order.Status, bool, error) {
	query, args, err := sq.Select("last_notified_status").
		From("observer_markers").
		Where(sq.Eq{"observer_id": observerID, "order_id": orderID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("failed to build select query: %w", err)
	}

	var raw string
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to scan marker: %w", err)
	}

	status, err := order.ParseStatus(raw)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse marker status: %w", err)
	}

	return status, true, nil
}

// Upsert records the last status the observer was notified of.
func (r *MarkerRepository) Upsert(
	ctx context.Context,
	observerID string,
	orderID uuid.UUID,
	status order.Status,
) error {
	query, args, err := sq.Insert("observer_markers").
		Columns("observer_id", "order_id", "last_notified_status", "updated_at").
		Values(observerID, orderID, status.String(), sq.Expr("now()")).
		Suffix(`ON CONFLICT (observer_id, order_id)
			DO UPDATE SET last_notified_status = EXCLUDED.last_notified_status, updated_at = now()`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert marker: %w", err)
	}

	return nil
}

// Delete removes the marker for an (observer, order) pair.
func (r *MarkerRepository) Delete(
	ctx context.Context,
	observerID string,
	orderID uuid.UUID,
) error {
	query, args, err := sq.Delete("observer_markers").
		Where(sq.Eq{"observer_id": observerID, "order_id": orderID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}

	return nil
}
