package payment

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Method is the payment method of a payment.
type Method string

const (
	MethodUPI        Method = "UPI"
	MethodCreditCard Method = "CreditCard"
	MethodDebitCard  Method = "DebitCard"
	MethodNetBanking Method = "NetBanking"
)

// Status is the confirmation status of a payment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusFailed    Status = "Failed"
)

// ReceiptType is the media type of an uploaded receipt.
type ReceiptType string

const (
	ReceiptImage ReceiptType = "Image"
	ReceiptPDF   ReceiptType = "PDF"
)

var (
	ErrInvalidMethod      = errors.New("invalid payment method")
	ErrInvalidReceiptType = errors.New("invalid receipt type")
)

// ParseMethod parses a payment method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.TrimSpace(s)); m {
	case MethodUPI, MethodCreditCard, MethodDebitCard, MethodNetBanking:
		return m, nil
	default:
		return "", ErrInvalidMethod
	}
}

// ParseReceiptType parses a receipt type, case-insensitively.
func ParseReceiptType(s string) (ReceiptType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return ReceiptImage, nil
	case "pdf":
		return ReceiptPDF, nil
	default:
		return "", ErrInvalidReceiptType
	}
}

// ReceiptTypeFromURL infers the receipt type from the file extension of url.
func ReceiptTypeFromURL(url string) ReceiptType {
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return ReceiptPDF
	}

	return ReceiptImage
}

// Payment represents the payment of an order.
// Status is Confirmed exactly when a local or external receipt is present.
type Payment struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"userId"`
	OrderID             int64           `json:"orderId"`
	Method              Method          `json:"paymentMethod"`
	Amount              decimal.Decimal `json:"paymentAmount"`
	PaymentDate         *time.Time      `json:"paymentDate"`
	ReceiptURL          string          `json:"receiptUrl,omitempty"`
	ExternalReceiptURL  string          `json:"externalReceiptUrl,omitempty"`
	UploadedReceiptType ReceiptType     `json:"uploadedReceiptType,omitempty"`
	Status              Status          `json:"paymentStatus"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// HasReceipt reports whether a local or external receipt is attached.
func (p *Payment) HasReceipt() bool {
	return p.ReceiptURL != "" || p.ExternalReceiptURL != ""
}

// Receipt is the metadata of a receipt file attached to a payment.
type Receipt struct {
	ID          int64       `json:"id"`
	PaymentID   int64       `json:"paymentId"`
	URL         string      `json:"url"`
	ReceiptType ReceiptType `json:"receiptType"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Confirmation carries the receipt data that confirms a payment.
type Confirmation struct {
	ReceiptURL         string
	ExternalReceiptURL string
	ReceiptType        ReceiptType
	PaymentDate        time.Time
}
