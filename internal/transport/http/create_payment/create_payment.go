package createpayment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderref"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/payment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/intake"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
	"github.com/corray333/backend-labs/fulfillment/pkg/http/middleware/actor"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const defaultDraftPrefix = "draft-"

// service is an interface for the service layer.
type service interface {
	CreatePayment(
		ctx context.Context,
		actorID int64,
		cmd paymentsvc.CreatePaymentCommand,
	) (paymentsvc.PaymentDetails, error)
}

type createPaymentRequest struct {
	OrderID             json.RawMessage `json:"orderId"`
	OrderSpec           json.RawMessage `json:"orderSpec"`
	PaymentMethod       string          `json:"paymentMethod"       validate:"required"`
	PaymentAmount       decimal.Decimal `json:"paymentAmount"`
	ReceiptURL          string          `json:"receiptUrl"          validate:"omitempty,max=2048"`
	UploadedReceiptType string          `json:"uploadedReceiptType" validate:"omitempty,oneofci=image pdf"`
	ExternalReceiptURL  string          `json:"externalReceiptUrl"  validate:"omitempty,url"`
}

func (req *createPaymentRequest) ToCommand(actorID int64, draftPrefix string) (paymentsvc.CreatePaymentCommand, error) {
	ref, err := ParseRef(req.OrderID, req.OrderSpec, actorID, draftPrefix)
	if err != nil {
		return paymentsvc.CreatePaymentCommand{}, err
	}

	cmd := paymentsvc.CreatePaymentCommand{
		Order:              ref,
		Method:             payment.Method(req.PaymentMethod),
		Amount:             req.PaymentAmount,
		ReceiptURL:         req.ReceiptURL,
		ExternalReceiptURL: req.ExternalReceiptURL,
	}
	if req.UploadedReceiptType != "" {
		if cmd.ReceiptType, err = payment.ParseReceiptType(req.UploadedReceiptType); err != nil {
			return paymentsvc.CreatePaymentCommand{}, errs.Validation("uploadedReceiptType", err.Error())
		}
	}

	return cmd, nil
}

// ParseRef resolves the order a payment refers to. A numeric orderId is an
// existing order, one starting with draftPrefix a draft persisted with the
// payment, and no orderId a new order. Drafts and new orders need orderSpec.
func ParseRef(orderID, spec json.RawMessage, actorID int64, draftPrefix string) (orderref.Ref, error) {
	if isNull(orderID) {
		if isNull(spec) {
			return nil, errs.Validation("orderId", "or orderSpec is required")
		}

		s, err := normalize(spec, actorID)
		if err != nil {
			return nil, err
		}

		return orderref.New{Spec: s}, nil
	}

	var id int64
	if err := json.Unmarshal(orderID, &id); err == nil {
		return orderref.Existing{ID: id}, nil
	}

	var key string
	if err := json.Unmarshal(orderID, &key); err != nil {
		return nil, errs.Validation("orderId", "must be a number or a string")
	}
	key = strings.TrimSpace(key)

	if draftPrefix != "" && strings.HasPrefix(key, draftPrefix) {
		if isNull(spec) {
			return nil, errs.Validation("orderSpec", "is required for draft orders")
		}

		s, err := normalize(spec, actorID)
		if err != nil {
			return nil, err
		}

		return orderref.Draft{Key: key, Spec: s}, nil
	}

	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return orderref.Existing{ID: id}, nil
	}

	return nil, errs.Validation("orderId", "is neither an order id nor a draft key")
}

func normalize(spec json.RawMessage, actorID int64) (orderspec.OrderSpec, error) {
	return intake.Normalize(spec, intake.WithDefaultUserID(actorID))
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// CreatePayment handles the create payment request.
func CreatePayment(w http.ResponseWriter, r *http.Request, service service) {
	var req createPaymentRequest
	if err := request.DecodeJSON(r, &req, false); err != nil {
		respond.Error(w, "create payment", err)

		return
	}

	actorID, _ := actor.FromContext(r.Context())

	draftPrefix := defaultDraftPrefix
	if viper.IsSet("fulfillment.draft_prefix") {
		draftPrefix = viper.GetString("fulfillment.draft_prefix")
	}

	cmd, err := req.ToCommand(actorID, draftPrefix)
	if err != nil {
		respond.Error(w, "create payment", err)

		return
	}

	details, err := service.CreatePayment(r.Context(), actorID, cmd)
	if err != nil {
		respond.Error(w, "create payment", err)

		return
	}

	respond.JSON(w, http.StatusCreated, "Payment created successfully", details)
}
