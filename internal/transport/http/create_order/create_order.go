package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/curbfare/fulfillment/internal/service/services/fulfillmentsvc"
	"github.com/curbfare/fulfillment/internal/transport/http/httperr"
	"github.com/google/uuid"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, model fulfillmentsvc.CreateOrderModel) (order.Order, error)
}

type createOrderRequest struct {
	CustomerID          uuid.UUID             `json:"customerId"`
	TruckID             uuid.UUID             `json:"truckId"`
	Items               []orderitem.OrderItem `json:"items"`
	SpecialInstructions string                `json:"specialInstructions,omitempty"`
	PickupPreference    string                `json:"pickupPreference,omitempty"`
}

// CreateOrder handles order placement.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding create order request", "error", err)

		return
	}

	o, err := service.CreateOrder(r.Context(), fulfillmentsvc.CreateOrderModel{
		CustomerID:          req.CustomerID,
		TruckID:             req.TruckID,
		Items:               req.Items,
		SpecialInstructions: req.SpecialInstructions,
		PickupPreference:    req.PickupPreference,
	})
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error creating order", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(o); err != nil {
		slog.Error("Error sending create order response", "error", err)
	}
}
