package getorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
)

type service interface {
	GetOrder(ctx context.Context, orderID int64) (ordersvc.OrderDetails, error)
}

func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := request.PathID(r, "orderID")
	if err != nil {
		respond.Error(w, "get order", err)

		return
	}

	details, err := service.GetOrder(r.Context(), orderID)
	if err != nil {
		respond.Error(w, "get order", err)

		return
	}

	respond.JSON(w, http.StatusOK, "Order retrieved successfully", details)
}
