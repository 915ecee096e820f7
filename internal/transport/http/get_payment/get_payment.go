package getpayment

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
)

type service interface {
	GetPayment(ctx context.Context, paymentID int64) (paymentsvc.PaymentDetails, error)
}

func GetPayment(w http.ResponseWriter, r *http.Request, service service) {
	paymentID, err := request.PathID(r, "paymentID")
	if err != nil {
		respond.Error(w, "get payment", err)

		return
	}

	details, err := service.GetPayment(r.Context(), paymentID)
	if err != nil {
		respond.Error(w, "get payment", err)

		return
	}

	respond.JSON(w, http.StatusOK, "Payment retrieved successfully", details)
}
