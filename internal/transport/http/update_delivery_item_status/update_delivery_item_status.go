package updatedeliveryitemstatus

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
)

type service interface {
	UpdateDeliveryItemStatus(
		ctx context.Context,
		itemID int64,
		status deliveryitem.Status,
	) (deliveryitem.DeliveryItem, error)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Confirmed Delivered Cancelled"`
}

func UpdateDeliveryItemStatus(w http.ResponseWriter, r *http.Request, service service) {
	itemID, err := request.PathID(r, "itemID")
	if err != nil {
		respond.Error(w, "update delivery item status", err)

		return
	}

	var req updateStatusRequest
	if err := request.DecodeJSON(r, &req, false); err != nil {
		respond.Error(w, "update delivery item status", err)

		return
	}

	item, err := service.UpdateDeliveryItemStatus(r.Context(), itemID, deliveryitem.Status(req.Status))
	if err != nil {
		respond.Error(w, "update delivery item status", err)

		return
	}

	respond.JSON(w, http.StatusOK, "Delivery item status updated successfully", item)
}
