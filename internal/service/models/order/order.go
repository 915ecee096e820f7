package order

import (
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/currency"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle status of an order.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusConfirmed        Status = "Confirmed"
	StatusPaymentConfirmed Status = "Payment_Confirmed"
	StatusCancelled        Status = "Cancelled"
	StatusInProgress       Status = "In_Progress"
)

func (s Status) String() string {
	return string(s)
}

var progress = map[Status]int{
	StatusPending:          0,
	StatusPaymentConfirmed: 1,
	StatusConfirmed:        2,
	StatusInProgress:       3,
}

// Advance returns to when it lies further along the lifecycle than s, and s otherwise.
// A cancelled order stays cancelled.
func (s Status) Advance(to Status) Status {
	if s == StatusCancelled {
		return s
	}
	if progress[to] > progress[s] {
		return to
	}

	return s
}

// Order represents a customer order.
// UserID is the owner and may differ from the actor that placed it.
type Order struct {
	ID                int64             `json:"id"`
	UserID            int64             `json:"userId"`
	OrderDate         time.Time         `json:"orderDate"`
	OrderTimes        []meal.Slot       `json:"orderTimes"`
	TotalPrice        decimal.Decimal   `json:"totalPrice"`
	Currency          currency.Currency `json:"currency"`
	DeliveryAddressID int64             `json:"deliveryAddressId"`
	Status            Status            `json:"status"`
	DeliveryNote      string            `json:"deliveryNote"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}
