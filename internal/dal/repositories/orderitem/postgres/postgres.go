package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/curbfare/fulfillment/internal/dal/postgres"
	"github.com/curbfare/fulfillment/internal/service/models/currency"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/google/uuid"
)

var itemColumns = []string{
	"id",
	"order_id",
	"name",
	"price_cents",
	"price_currency",
	"quantity",
	"category",
	"customizations",
}

type PostgresOrderItemRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderItemRepository(conn postgres.Querier) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
	}
}

// BulkInsert inserts all cart lines of one or more orders.
func (r *PostgresOrderItemRepository) BulkInsert(ctx context.Context, items []orderitem.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	builder := sq.Insert("order_items").
		Columns(itemColumns...).
		PlaceholderFormat(sq.Dollar)

	for _, item := range items {
		builder = builder.Values(
			item.ID,
			item.OrderID,
			item.Name,
			item.PriceCents,
			item.PriceCurrency.String(),
			item.Quantity,
			item.Category,
			item.Customizations,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}

	return nil
}

// ListByOrderIds returns the cart lines for the given orders.
func (r *PostgresOrderItemRepository) ListByOrderIds(
	ctx context.Context,
	orderIds []uuid.UUID,
) ([]orderitem.OrderItem, error) {
	if len(orderIds) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	query, args, err := sq.Select(itemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderIds}).
		OrderBy("order_id", "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	for rows.Next() {
		var item orderitem.OrderItem
		var cur string
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.Name,
			&item.PriceCents,
			&cur,
			&item.Quantity,
			&item.Category,
			&item.Customizations,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item.PriceCurrency, err = currency.ParseCurrency(cur)
		if err != nil {
			return nil, fmt.Errorf("failed to parse item currency: %w", err)
		}

		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
