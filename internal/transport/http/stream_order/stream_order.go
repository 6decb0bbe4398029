package streamorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/curbfare/fulfillment/internal/dispatch"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type subscriber interface {
	Subscribe(ctx context.Context, observerID string, orderID uuid.UUID) (*dispatch.Subscription, error)
}

// StreamOrder serves an order's status changes as server-sent events. The
// stream ends when the order reaches a terminal status or the client
// disconnects; disconnecting cancels the subscription.
func StreamOrder(w http.ResponseWriter, r *http.Request, subscriber subscriber) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)

		return
	}

	observerID := r.URL.Query().Get("observerId")
	if observerID == "" {
		http.Error(w, "observerId is required", http.StatusBadRequest)

		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)

		return
	}

	sub, err := subscriber.Subscribe(r.Context(), observerID, orderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		slog.Error("Error subscribing to order", "order_id", orderID, "error", err)

		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for ev := range sub.Events() {
		payload, err := json.Marshal(ev)
		if err != nil {
			slog.Error("Error marshaling status change event", "error", err)

			continue
		}

		if _, err := w.Write([]byte("event: status_changed\ndata: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
