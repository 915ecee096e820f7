package deliveryitem

import "time"

// QueryDeliveryItemsModel represents filter parameters for querying delivery items.
type QueryDeliveryItemsModel struct {
	Ids      []int64   `json:"ids,omitempty"`
	OrderIds []int64   `json:"orderIds,omitempty"`
	UserIds  []int64   `json:"userIds,omitempty"`
	Statuses []Status  `json:"statuses,omitempty"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Offset   int       `json:"offset,omitempty"`
}
