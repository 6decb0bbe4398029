package transitionorder

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
	Transition(ctx context.Context, orderID uuid.UUID, target order.Status, actor order.Actor) (order.Order, error)
}

type transitionRequest struct {
	Status string      `json:"status"`
	Actor  order.Actor `json:"actor"`
}

// TransitionOrder handles vendor (and pre-confirmation customer) status
// changes.
func TransitionOrder(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)

		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding transition request", "error", err)

		return
	}

	target, err := order.ParseStatus(req.Status)
	if err != nil {
		httperr.Write(w, err)

		return
	}

	o, err := service.Transition(r.Context(), orderID, target, req.Actor)
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error transitioning order",
			"order_id", orderID,
			"target", target,
			"error", err,
		)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(o); err != nil {
		slog.Error("Error sending transition response", "error", err)
	}
}
