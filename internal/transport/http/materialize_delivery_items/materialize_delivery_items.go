package materializedeliveryitems

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/services/deliverysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
)

type service interface {
	MaterializeAfterPayment(ctx context.Context, orderID int64, raw any) (deliverysvc.Result, error)
}

type materializeRequest struct {
	// OrderData is passed through untouched. It may be an object or a JSON-encoded string.
	OrderData json.RawMessage `json:"orderData"`
}

type materializeResponse struct {
	DeliveryItemsCount  int  `json:"deliveryItemsCount"`
	CreatedCount        int  `json:"createdCount"`
	SkippedCount        int  `json:"skippedCount"`
	AlreadyMaterialized bool `json:"alreadyMaterialized"`
}

// MaterializeDeliveryItems expands a paid order into delivery items. It answers
// 201 when items were created and 200 when they already existed or none were due.
func MaterializeDeliveryItems(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := request.PathID(r, "orderID")
	if err != nil {
		respond.Error(w, "materialize delivery items", err)

		return
	}

	var req materializeRequest
	if err := request.DecodeJSON(r, &req, true); err != nil {
		respond.Error(w, "materialize delivery items", err)

		return
	}

	var raw any
	if len(req.OrderData) > 0 {
		raw = req.OrderData
	}

	res, err := service.MaterializeAfterPayment(r.Context(), orderID, raw)
	if err != nil {
		respond.Error(w, "materialize delivery items", err)

		return
	}

	body := materializeResponse{
		DeliveryItemsCount:  res.DeliveryItemsCount(),
		CreatedCount:        res.CreatedCount,
		SkippedCount:        res.SkippedCount,
		AlreadyMaterialized: res.AlreadyMaterialized,
	}

	switch {
	case res.AlreadyMaterialized:
		respond.JSON(w, http.StatusOK, "Delivery items already exist for this order", body)
	case res.CreatedCount == 0:
		respond.JSON(w, http.StatusOK, "No delivery items to create", body)
	default:
		respond.JSON(w, http.StatusCreated, "Delivery items created successfully", body)
	}
}
