// Package respond writes the JSON envelopes of the HTTP API.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/spf13/viper"
)

type successEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Error codes of the error envelope.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeMalformedInput      = "MALFORMED_INPUT"
	CodeDuplicatePayment    = "DUPLICATE_PAYMENT"
	CodeReceiptAttached     = "RECEIPT_ALREADY_ATTACHED"
	CodeAddressResolution   = "ADDRESS_RESOLUTION_FAILED"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
	CodePaymentNotFound     = "PAYMENT_NOT_FOUND"
	CodeDeliveryItemMissing = "DELIVERY_ITEM_NOT_FOUND"
	CodeTransactionTimeout  = "TRANSACTION_TIMEOUT"
	CodeInternal            = "INTERNAL_ERROR"
)

type kind struct {
	err     error
	status  int
	code    string
	message string
}

var kinds = []kind{
	{errs.ErrValidation, http.StatusBadRequest, CodeValidation, "Validation failed"},
	{errs.ErrMalformedInput, http.StatusBadRequest, CodeMalformedInput, "Order data is not valid JSON"},
	{errs.ErrDuplicatePayment, http.StatusBadRequest, CodeDuplicatePayment, "Order already has a payment"},
	{errs.ErrReceiptAlreadyAttached, http.StatusConflict, CodeReceiptAttached, "Payment already has a different receipt"},
	{errs.ErrAddressResolution, http.StatusBadRequest, CodeAddressResolution, "Delivery address could not be created"},
	{errs.ErrOrderNotFound, http.StatusNotFound, CodeOrderNotFound, "Order not found"},
	{errs.ErrPaymentNotFound, http.StatusNotFound, CodePaymentNotFound, "Payment not found"},
	{errs.ErrDeliveryItemNotFound, http.StatusNotFound, CodeDeliveryItemMissing, "Delivery item not found"},
	{errs.ErrTransactionTimeout, http.StatusServiceUnavailable, CodeTransactionTimeout, "Transaction timed out, please retry"},
}

var internalKind = kind{status: http.StatusInternalServerError, code: CodeInternal, message: "Internal server error"}

func classify(err error) kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k
		}
	}

	return internalKind
}

// JSON writes a success envelope with data.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, successEnvelope{Success: true, Message: message, Data: data})
}

// Status maps a service error to its HTTP status.
func Status(err error) int {
	return classify(err).status
}

// Error writes the error envelope of err and logs it under op.
// In production only the reason of a validation error is exposed.
func Error(w http.ResponseWriter, op string, err error) {
	k := classify(err)

	env := errorEnvelope{
		Success:   false,
		Code:      k.code,
		Message:   k.message,
		Retryable: k.status == http.StatusServiceUnavailable,
	}

	var vErr *errs.ValidationError
	if errors.As(err, &vErr) {
		env.Field = vErr.Field
	}

	switch {
	case viper.GetString("app.env") != "production":
		env.Error = err.Error()
	case vErr != nil:
		env.Error = vErr.Reason
	}

	if k.status < http.StatusInternalServerError {
		slog.Warn("Request rejected", "op", op, "status", k.status, "code", k.code, "error", err)
	} else {
		slog.Error("Request failed", "op", op, "status", k.status, "code", k.code, "error", err)
	}

	write(w, k.status, env)
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}
