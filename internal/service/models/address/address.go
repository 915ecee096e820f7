package address

import "time"

// Address is a persisted delivery address owned by a customer.
type Address struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	CreatedBy  int64     `json:"createdBy"`
	Label      string    `json:"label"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postalCode"`
	Phone      string    `json:"phone"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Input is a free-form address embedded in an order.
type Input struct {
	Label      string   `json:"label,omitempty"`
	Line1      string   `json:"line1"                validate:"required"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city"                 validate:"required"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode"           validate:"required"`
	Phone      string   `json:"phone,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"   validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty"  validate:"omitempty,longitude"`
}
