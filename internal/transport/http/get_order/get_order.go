package getorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/transport/http/httperr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type service interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (order.Order, error)
}

// GetOrder handles full order snapshot reads.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)

		return
	}

	o, err := service.GetOrder(r.Context(), orderID)
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error getting order", "order_id", orderID, "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(o); err != nil {
		slog.Error("Error sending get order response", "error", err)
	}
}
