package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/services/estimator"
	"github.com/curbfare/fulfillment/internal/service/services/metrics"
)

// Write maps service errors onto HTTP status codes. A rejected transition
// or bad cart is the caller's problem; everything unexpected is a 500.
func Write(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, order.ErrUnknownStatus), errors.Is(err, estimator.ErrEstimationInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, metrics.ErrMetricsUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		slog.Error("Unhandled service error", "error", err)
	}
}
