// Package errs defines the error kinds surfaced by the fulfillment services.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrMalformedInput signals order data that is not valid JSON.
	ErrMalformedInput = errors.New("malformed order data")
	// ErrOrderNotFound signals an unknown order id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound signals an unknown payment id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrDeliveryItemNotFound signals an unknown delivery item id.
	ErrDeliveryItemNotFound = errors.New("delivery item not found")
	// ErrDuplicatePayment signals that the order already has a payment.
	ErrDuplicatePayment = errors.New("payment already exists for order")
	// ErrReceiptAlreadyAttached signals a different receipt for an already confirmed payment.
	ErrReceiptAlreadyAttached = errors.New("payment already has a receipt")
	// ErrAlreadyMaterialized signals that delivery items were created by another caller.
	// It never leaves the delivery service.
	ErrAlreadyMaterialized = errors.New("delivery items already materialized")
	// ErrAddressResolution signals that an inline delivery address could not be created.
	ErrAddressResolution = errors.New("delivery address could not be resolved")
	// ErrTransactionTimeout signals that a transaction exceeded its deadline. Retryable.
	ErrTransactionTimeout = errors.New("transaction timed out")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

// Validation returns a ValidationError for field.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}

	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
