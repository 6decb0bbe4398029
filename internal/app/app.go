package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curbfare/fulfillment/internal/dal/postgres"
	"github.com/curbfare/fulfillment/internal/dal/rabbitmq"
	markerrepo "github.com/curbfare/fulfillment/internal/dal/repositories/marker/postgres"
	orderrepo "github.com/curbfare/fulfillment/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/curbfare/fulfillment/internal/dal/repositories/outbox/postgres"
	truckrepo "github.com/curbfare/fulfillment/internal/dal/repositories/truck/postgres"
	"github.com/curbfare/fulfillment/internal/dispatch"
	"github.com/curbfare/fulfillment/internal/otel"
	"github.com/curbfare/fulfillment/internal/service/services/fulfillmentsvc"
	"github.com/curbfare/fulfillment/internal/service/services/metrics"
	httptransport "github.com/curbfare/fulfillment/internal/transport/http"
	outboxworker "github.com/curbfare/fulfillment/internal/worker/outbox"
)

// App represents the application.
type App struct {
	fulfillmentSvc *fulfillmentsvc.FulfillmentService
	dispatcher     *dispatch.Dispatcher
	outboxWorker   *outboxworker.Worker
	transport      *httptransport.HTTPTransport
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	pool := postgresClient.Pool()

	metricsSvc := metrics.MustNewService(
		metrics.WithOrderReader(orderrepo.NewPostgresOrderRepository(pool)),
		metrics.WithTruckReader(truckrepo.NewTruckRepository(pool)),
	)

	fulfillmentSvc := fulfillmentsvc.MustNewFulfillmentService(
		fulfillmentsvc.WithPostgresClient(postgresClient),
		fulfillmentsvc.WithMetrics(metricsSvc),
	)

	dispatcher := dispatch.MustNewDispatcher(
		dispatch.WithMarkerStore(markerrepo.NewMarkerRepository(pool)),
		dispatch.WithOrderGetter(fulfillmentSvc),
	)
	fulfillmentSvc.SetPublisher(dispatcher)

	outboxWorker := outboxworker.NewWorker(
		outboxrepo.NewOutboxRepository(pool),
		rabbitClient,
	)

	transport := httptransport.NewHTTPTransport(fulfillmentSvc, dispatcher)
	transport.RegisterRoutes()

	return &App{
		fulfillmentSvc: fulfillmentSvc,
		dispatcher:     dispatcher,
		outboxWorker:   outboxWorker,
		transport:      transport,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go a.outboxWorker.Start(workerCtx)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.dispatcher.Close()
	slog.Info("Dispatcher closed")

	cancelWorker()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
