package event

import "time"

// RoutingKeyDeliveryItemsCreated is the routing key of DeliveryItemsCreated.
const RoutingKeyDeliveryItemsCreated = "fulfillment.delivery_items.created"

// DeliveryItemsCreated is published once per order after its delivery items are materialized.
type DeliveryItemsCreated struct {
	OrderID         int64     `json:"orderId"`
	UserID          int64     `json:"userId"`
	CreatedCount    int       `json:"createdCount"`
	SkippedCount    int       `json:"skippedCount"`
	DeliveryItemIDs []int64   `json:"deliveryItemIds"`
	OccurredAt      time.Time `json:"occurredAt"`
}
