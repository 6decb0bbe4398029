package estimatewait

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/curbfare/fulfillment/internal/service/models/estimate"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/curbfare/fulfillment/internal/transport/http/httperr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type service interface {
	Estimate(ctx context.Context, truckID uuid.UUID, items []orderitem.OrderItem) (estimate.Estimate, error)
}

type estimateRequest struct {
	Items []orderitem.OrderItem `json:"items"`
}

// EstimateWait handles pre-checkout ETA requests for a cart at a truck.
func EstimateWait(w http.ResponseWriter, r *http.Request, service service) {
	truckID, err := uuid.Parse(chi.URLParam(r, "truckID"))
	if err != nil {
		http.Error(w, "Invalid truck id", http.StatusBadRequest)

		return
	}

	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding estimate request", "error", err)

		return
	}

	est, err := service.Estimate(r.Context(), truckID, req.Items)
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error estimating wait", "truck_id", truckID, "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(est); err != nil {
		slog.Error("Error sending estimate response", "error", err)
	}
}
