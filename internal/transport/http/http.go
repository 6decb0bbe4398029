package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/curbfare/fulfillment/internal/dispatch"
	"github.com/curbfare/fulfillment/internal/service/models/estimate"
	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/curbfare/fulfillment/internal/service/services/fulfillmentsvc"
	createorder "github.com/curbfare/fulfillment/internal/transport/http/create_order"
	estimatewait "github.com/curbfare/fulfillment/internal/transport/http/estimate_wait"
	getorder "github.com/curbfare/fulfillment/internal/transport/http/get_order"
	listorders "github.com/curbfare/fulfillment/internal/transport/http/list_orders"
	streamorder "github.com/curbfare/fulfillment/internal/transport/http/stream_order"
	transitionorder "github.com/curbfare/fulfillment/internal/transport/http/transition_order"
	"github.com/curbfare/fulfillment/pkg/http/middleware/trace"
	"github.com/curbfare/fulfillment/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type service interface {
	CreateOrder(ctx context.Context, model fulfillmentsvc.CreateOrderModel) (order.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, target order.Status, actor order.Actor) (order.Order, error)
	Estimate(ctx context.Context, truckID uuid.UUID, items []orderitem.OrderItem) (estimate.Estimate, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (order.Order, error)
	QueryOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}

type subscriber interface {
	Subscribe(ctx context.Context, observerID string, orderID uuid.UUID) (*dispatch.Subscription, error)
}

type HTTPTransport struct {
	server     *http.Server
	router     *chi.Mux
	service    service
	subscriber subscriber
}

func NewHTTPTransport(service service, subscriber subscriber) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:     server,
		router:     router,
		service:    service,
		subscriber: subscriber,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/status", h.transitionOrder)
		r.Get("/orders/{orderID}/events", h.streamOrder)
		r.Post("/trucks/{truckID}/estimate", h.estimateWait)
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.service)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.service)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.service)
}

func (h *HTTPTransport) transitionOrder(w http.ResponseWriter, r *http.Request) {
	transitionorder.TransitionOrder(w, r, h.service)
}

func (h *HTTPTransport) streamOrder(w http.ResponseWriter, r *http.Request) {
	streamorder.StreamOrder(w, r, h.subscriber)
}

func (h *HTTPTransport) estimateWait(w http.ResponseWriter, r *http.Request) {
	estimatewait.EstimateWait(w, r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
