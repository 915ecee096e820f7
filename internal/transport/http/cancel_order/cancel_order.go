package cancelorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
)

type service interface {
	CancelDeliveryItems(ctx context.Context, orderID int64, itemIDs []int64) (ordersvc.CancelResult, error)
}

// An empty body or an empty list cancels every delivery item of the order.
type cancelRequest struct {
	DeliveryItemIDs []int64 `json:"deliveryItemIds" validate:"omitempty,dive,gt=0"`
}

func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := request.PathID(r, "orderID")
	if err != nil {
		respond.Error(w, "cancel order", err)

		return
	}

	var req cancelRequest
	if err := request.DecodeJSON(r, &req, true); err != nil {
		respond.Error(w, "cancel order", err)

		return
	}

	res, err := service.CancelDeliveryItems(r.Context(), orderID, req.DeliveryItemIDs)
	if err != nil {
		respond.Error(w, "cancel order", err)

		return
	}

	respond.JSON(w, http.StatusOK, "Delivery items cancelled successfully", res)
}
