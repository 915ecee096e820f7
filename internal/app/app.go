package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/otel"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/deliverysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/paymentsvc"
	grpctransport "github.com/corray333/backend-labs/fulfillment/internal/transport/grpc"
	httptransport "github.com/corray333/backend-labs/fulfillment/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/fulfillment/internal/worker/outbox"
	reconcileworker "github.com/corray333/backend-labs/fulfillment/internal/worker/reconcile"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App represents the application.
type App struct {
	httpTransport   *httptransport.HTTPTransport
	grpcTransport   *grpctransport.GRPCTransport
	outboxWorker    *outboxworker.Worker
	reconcileWorker *reconcileworker.Worker
	rabbitMqClient  *rabbitmq.Client
	postgresClient  *postgres.Client
	otelController  *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	a := &App{otelController: otelController}

	var factory uow.Factory
	switch driver := viper.GetString("storage.driver"); driver {
	case "", "postgres":
		a.postgresClient = postgres.MustNewClient()
		factory = uow.NewFactory(
			a.postgresClient,
			time.Duration(viper.GetInt("postgres.tx_timeout_seconds"))*time.Second,
		)
	case "memory":
		slog.Warn("Using in-memory storage, data is lost on restart")
		factory = memory.NewStore().Factory()
	default:
		panic("unknown storage driver: " + driver)
	}

	queue := viper.GetString("rabbitmq.queue")
	if queue == "" {
		queue = "fulfillment.events"
	}
	maxRetries := viper.GetInt("rabbitmq.outbox.max_retries")

	deliverySvc := deliverysvc.MustNewDeliveryService(
		deliverysvc.WithUnitOfWork(factory),
		deliverysvc.WithEventDestination(viper.GetString("rabbitmq.exchange"), queue, maxRetries),
	)

	inventorySvc := inventorysvc.MustNewInventoryService(
		inventorysvc.WithUnitOfWork(factory),
	)

	fulfillSvc := fulfillsvc.MustNewFulfillService(
		fulfillsvc.WithUnitOfWork(factory),
		fulfillsvc.WithMaterializer(deliverySvc),
		fulfillsvc.WithStockReducer(inventorySvc),
		fulfillsvc.WithRetryBase(time.Duration(viper.GetInt("reconcile.retry_interval_seconds"))*time.Second),
	)

	paymentSvc := paymentsvc.MustNewPaymentService(
		paymentsvc.WithUnitOfWork(factory),
		paymentsvc.WithFulfiller(fulfillSvc),
		paymentsvc.WithIntentRetries(viper.GetInt("reconcile.max_retries")),
		paymentsvc.WithIntentGrace(time.Duration(viper.GetInt("reconcile.retry_interval_seconds"))*time.Second),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWork(factory),
	)

	a.httpTransport = httptransport.NewHTTPTransport(paymentSvc, deliverySvc, orderSvc)
	a.httpTransport.RegisterRoutes()

	var grpcOpts []grpctransport.Option
	if a.postgresClient != nil {
		grpcOpts = append(grpcOpts, grpctransport.WithReadinessCheck(a.postgresClient.Pool().Ping))
	}
	a.grpcTransport = grpctransport.NewGRPCTransport(grpcOpts...)

	a.reconcileWorker = reconcileworker.NewWorker(factory, fulfillSvc)

	if viper.GetBool("rabbitmq.enabled") {
		a.rabbitMqClient = rabbitmq.MustNewClient()
		if err := a.rabbitMqClient.Declare(rabbitmq.Topology{
			Exchange:   viper.GetString("rabbitmq.exchange"),
			Queue:      queue,
			BindingKey: "fulfillment.#",
		}); err != nil {
			panic("failed to declare RabbitMQ topology: " + err.Error())
		}
		a.outboxWorker = outboxworker.NewWorker(factory, a.rabbitMqClient)
	} else {
		slog.Info("RabbitMQ disabled, fulfillment events stay in the outbox")
	}

	return a
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.httpTransport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		return a.grpcTransport.Run()
	})

	eg.Go(func() error {
		slog.Info("Starting reconcile worker")
		a.reconcileWorker.Start(egCtx)

		return nil
	})

	if a.outboxWorker != nil {
		eg.Go(func() error {
			slog.Info("Starting outbox worker")
			a.outboxWorker.Start(egCtx)

			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("Shutdown signal received")
		a.gracefulShutdown()

		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.Error("Application stopped with error", "error", err)
	}
}

// gracefulShutdown stops the servers first, then the workers, then closes the
// broker, database and tracing connections.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	} else {
		slog.Info("gRPC server stopped gracefully")
	}

	if a.rabbitMqClient != nil {
		if err := a.rabbitMqClient.Close(); err != nil {
			slog.Error("RabbitMQ connection close error", "error", err)
		} else {
			slog.Info("RabbitMQ connection closed gracefully")
		}
	}

	if a.postgresClient != nil {
		a.postgresClient.Close()
		slog.Info("Database connection closed gracefully")
	}

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}
