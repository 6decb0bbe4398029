package listorders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/transport/http/httperr"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
)

type service interface {
	QueryOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}

type queryOrdersRequest struct {
	Ids         []uuid.UUID `schema:"ids,omitempty"`
	TruckIds    []uuid.UUID `schema:"truckIds,omitempty"`
	CustomerIds []uuid.UUID `schema:"customerIds,omitempty"`
	Statuses    []string    `schema:"statuses,omitempty"`
	Limit       int         `schema:"limit,omitempty"`
	Offset      int         `schema:"offset,omitempty"`
}

func (q *queryOrdersRequest) ToModel() (*order.QueryOrdersModel, error) {
	statuses := make([]order.Status, 0, len(q.Statuses))
	for _, raw := range q.Statuses {
		status, err := order.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}

	return &order.QueryOrdersModel{
		Ids:         q.Ids,
		TruckIds:    q.TruckIds,
		CustomerIds: q.CustomerIds,
		Statuses:    statuses,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}, nil
}

// ListOrders handles the vendor board and archive queries.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	decoder := schema.NewDecoder()
	query := &queryOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding list orders request", "error", err)

		return
	}

	filter, err := query.ToModel()
	if err != nil {
		httperr.Write(w, err)

		return
	}

	orders, err := service.QueryOrders(r.Context(), filter)
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error listing orders", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		slog.Error("Error sending list orders response", "error", err)
	}
}
