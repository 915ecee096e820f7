package attachreceipt

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
)

type service interface {
	AttachReceipt(
		ctx context.Context,
		paymentID int64,
		cmd paymentsvc.AttachReceiptCommand,
	) (paymentsvc.PaymentDetails, error)
}

type attachReceiptRequest struct {
	ReceiptURL          string `json:"receiptUrl"          validate:"omitempty,max=2048"`
	UploadedReceiptType string `json:"uploadedReceiptType" validate:"omitempty,oneofci=image pdf"`
	ExternalReceiptURL  string `json:"externalReceiptUrl"  validate:"omitempty,url"`
}

func (req *attachReceiptRequest) ToCommand() (paymentsvc.AttachReceiptCommand, error) {
	cmd := paymentsvc.AttachReceiptCommand{
		ReceiptURL:         req.ReceiptURL,
		ExternalReceiptURL: req.ExternalReceiptURL,
	}
	if req.UploadedReceiptType != "" {
		rt, err := payment.ParseReceiptType(req.UploadedReceiptType)
		if err != nil {
			return paymentsvc.AttachReceiptCommand{}, errs.Validation("uploadedReceiptType", err.Error())
		}
		cmd.ReceiptType = rt
	}

	return cmd, nil
}

func AttachReceipt(w http.ResponseWriter, r *http.Request, service service) {
	paymentID, err := request.PathID(r, "paymentID")
	if err != nil {
		respond.Error(w, "attach receipt", err)

		return
	}

	var req attachReceiptRequest
	if err := request.DecodeJSON(r, &req, false); err != nil {
		respond.Error(w, "attach receipt", err)

		return
	}

	cmd, err := req.ToCommand()
	if err != nil {
		respond.Error(w, "attach receipt", err)

		return
	}

	details, err := service.AttachReceipt(r.Context(), paymentID, cmd)
	if err != nil {
		respond.Error(w, "attach receipt", err)

		return
	}

	respond.JSON(w, http.StatusOK, "Receipt attached successfully", details)
}
