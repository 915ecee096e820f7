package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/deliverysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/paymentsvc"
	attachreceipt "github.com/corray333/backend-labs/fulfillment/internal/transport/http/attach_receipt"
	cancelorder "github.com/corray333/backend-labs/fulfillment/internal/transport/http/cancel_order"
	createpayment "github.com/corray333/backend-labs/fulfillment/internal/transport/http/create_payment"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/docs"
	getorder "github.com/corray333/backend-labs/fulfillment/internal/transport/http/get_order"
	getpayment "github.com/corray333/backend-labs/fulfillment/internal/transport/http/get_payment"
	listdeliveryitems "github.com/corray333/backend-labs/fulfillment/internal/transport/http/list_delivery_items"
	listorders "github.com/corray333/backend-labs/fulfillment/internal/transport/http/list_orders"
	materializedeliveryitems "github.com/corray333/backend-labs/fulfillment/internal/transport/http/materialize_delivery_items"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
	updatedeliveryitemstatus "github.com/corray333/backend-labs/fulfillment/internal/transport/http/update_delivery_item_status"
	"github.com/corray333/backend-labs/fulfillment/pkg/http/middleware/actor"
	"github.com/corray333/backend-labs/fulfillment/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/fulfillment/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type paymentService interface {
	CreatePayment(
		ctx context.Context,
		actorID int64,
		cmd paymentsvc.CreatePaymentCommand,
	) (paymentsvc.PaymentDetails, error)
	GetPayment(ctx context.Context, paymentID int64) (paymentsvc.PaymentDetails, error)
	AttachReceipt(
		ctx context.Context,
		paymentID int64,
		cmd paymentsvc.AttachReceiptCommand,
	) (paymentsvc.PaymentDetails, error)
}

type deliveryService interface {
	MaterializeAfterPayment(ctx context.Context, orderID int64, raw any) (deliverysvc.Result, error)
}

type orderService interface {
	GetOrder(ctx context.Context, orderID int64) (ordersvc.OrderDetails, error)
	ListOrders(ctx context.Context, q ordersvc.ListOrdersQuery) ([]ordersvc.OrderDetails, error)
	ListDeliveryItems(
		ctx context.Context,
		filter deliveryitem.QueryDeliveryItemsModel,
	) ([]deliveryitem.DeliveryItem, error)
	UpdateDeliveryItemStatus(
		ctx context.Context,
		itemID int64,
		status deliveryitem.Status,
	) (deliveryitem.DeliveryItem, error)
	CancelDeliveryItems(ctx context.Context, orderID int64, itemIDs []int64) (ordersvc.CancelResult, error)
}

type HTTPTransport struct {
	server   *http.Server
	router   *chi.Mux
	payments paymentService
	delivery deliveryService
	orders   orderService
}

func NewHTTPTransport(payments paymentService, delivery deliveryService, orders orderService) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:   server,
		router:   router,
		payments: payments,
		delivery: delivery,
		orders:   orders,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler returns the router serving the registered routes.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", healthz)
	h.router.Get("/swagger/doc.json", swaggerDoc)
	h.router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	h.router.Route("/api", func(r chi.Router) {
		r.Use(actor.NewActorMiddleware)

		r.Post("/payments", h.createPayment)
		r.Get("/payments/{paymentID}", h.getPayment)
		r.Post("/payments/{paymentID}/receipt", h.attachReceipt)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/delivery-items", h.materializeDeliveryItems)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)

		r.Get("/delivery-items", h.listDeliveryItems)
		r.Patch("/delivery-items/{itemID}/status", h.updateDeliveryItemStatus)
	})
}

func (h *HTTPTransport) createPayment(w http.ResponseWriter, r *http.Request) {
	createpayment.CreatePayment(w, r, h.payments)
}

func (h *HTTPTransport) getPayment(w http.ResponseWriter, r *http.Request) {
	getpayment.GetPayment(w, r, h.payments)
}

func (h *HTTPTransport) attachReceipt(w http.ResponseWriter, r *http.Request) {
	attachreceipt.AttachReceipt(w, r, h.payments)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) materializeDeliveryItems(w http.ResponseWriter, r *http.Request) {
	materializedeliveryitems.MaterializeDeliveryItems(w, r, h.delivery)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.orders)
}

func (h *HTTPTransport) listDeliveryItems(w http.ResponseWriter, r *http.Request) {
	listdeliveryitems.ListDeliveryItems(w, r, h.orders)
}

func (h *HTTPTransport) updateDeliveryItemStatus(w http.ResponseWriter, r *http.Request) {
	updatedeliveryitemstatus.UpdateDeliveryItemStatus(w, r, h.orders)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, "ok", nil)
}

func swaggerDoc(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(docs.OpenAPI); err != nil {
		slog.Error("Error writing swagger document", "error", err)
	}
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
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
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
