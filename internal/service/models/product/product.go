package product

import "time"

// Product is a stocked menu item. Quantity may go negative.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}
