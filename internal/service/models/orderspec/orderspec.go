package orderspec

import (
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/shopspring/decimal"
)

// DateLayout is the layout of date keys in selected dates and skip sets.
const DateLayout = "2006-01-02"

// Strategy selects how an order specification expands into delivery items.
type Strategy string

const (
	// StrategyFixedSlot iterates order times per date, one unit per session.
	StrategyFixedSlot Strategy = "fixed_slot"
	// StrategyPerItem iterates order items per date, using each item's meal type and quantity.
	StrategyPerItem Strategy = "per_item"
)

// Item is a menu item line of an order.
// MealType is empty for plan items of fixed-slot orders.
type Item struct {
	MenuItemID int64     `json:"menuItemId"`
	MealType   meal.Type `json:"mealType,omitempty"`
	Quantity   int       `json:"quantity"`
}

// OrderSpec is the normalized input of order materialization.
type OrderSpec struct {
	UserID            int64                         `json:"userId"`
	OrderDate         time.Time                     `json:"orderDate"`
	SelectedDates     []time.Time                   `json:"selectedDates"`
	OrderItems        []Item                        `json:"orderItems"`
	OrderTimes        []meal.Slot                   `json:"orderTimes"`
	DeliveryAddressID int64                         `json:"deliveryAddressId,omitempty"`
	Address           *address.Input                `json:"address,omitempty"`
	DeliveryLocations map[meal.Type]int64           `json:"deliveryLocations,omitempty"`
	SkipMeals         map[string]map[meal.Type]bool `json:"skipMeals,omitempty"`
	DeliveryNote      string                        `json:"deliveryNote,omitempty"`
	TotalPrice        decimal.Decimal               `json:"totalPrice"`
	Strategy          Strategy                      `json:"strategy"`
}

// DateKey formats a delivery date as a skip-set key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Skipped reports whether the meal is excluded on the date.
func (s *OrderSpec) Skipped(date time.Time, mt meal.Type) bool {
	return s.SkipMeals[DateKey(date)][mt]
}

// AddressFor resolves the delivery address of a meal type: the per-meal override wins over the default.
func (s *OrderSpec) AddressFor(mt meal.Type) int64 {
	if id, ok := s.DeliveryLocations[mt]; ok && id > 0 {
		return id
	}

	return s.DeliveryAddressID
}

// HasAddress reports whether the order names or embeds a delivery address.
func (s *OrderSpec) HasAddress() bool {
	return s.DeliveryAddressID > 0 || s.Address != nil
}
