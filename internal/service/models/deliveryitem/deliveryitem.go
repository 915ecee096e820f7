package deliveryitem

import (
	"errors"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
)

// Status is the fulfillment status of a delivery item.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

var ErrInvalidStatus = errors.New("invalid delivery item status")

// ParseStatus parses a delivery item status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// DeliveryItem is one meal session delivery of an order.
type DeliveryItem struct {
	ID               int64     `json:"id"`
	OrderID          int64     `json:"orderId"`
	UserID           int64     `json:"userId"`
	MenuItemID       int64     `json:"menuItemId"`
	Quantity         int       `json:"quantity"`
	DeliveryDate     time.Time `json:"deliveryDate"`
	DeliveryTimeSlot meal.Slot `json:"deliveryTimeSlot"`
	AddressID        int64     `json:"addressId"`
	Status           Status    `json:"status"`
	DeliveryNote     string    `json:"deliveryNote,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
