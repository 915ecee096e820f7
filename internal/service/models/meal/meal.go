package meal

import (
	"errors"
	"strings"
)

// Type is the lower-case meal type used on order items, skip sets and address overrides.
type Type string

const (
	Breakfast Type = "breakfast"
	Lunch     Type = "lunch"
	Dinner    Type = "dinner"
)

// Slot is a delivery session as persisted on delivery items.
type Slot string

const (
	SlotBreakfast Slot = "Breakfast"
	SlotLunch     Slot = "Lunch"
	SlotDinner    Slot = "Dinner"
)

var (
	ErrInvalidType = errors.New("invalid meal type")
	ErrInvalidSlot = errors.New("invalid meal time")
)

// Types lists meal types in session order.
var Types = []Type{Breakfast, Lunch, Dinner}

func (t Type) String() string {
	return string(t)
}

// Slot returns the delivery session served by the meal type.
func (t Type) Slot() Slot {
	switch t {
	case Breakfast:
		return SlotBreakfast
	case Lunch:
		return SlotLunch
	case Dinner:
		return SlotDinner
	default:
		return ""
	}
}

func (s Slot) String() string {
	return string(s)
}

// Type returns the meal type served in the session.
func (s Slot) Type() Type {
	switch s {
	case SlotBreakfast:
		return Breakfast
	case SlotLunch:
		return Lunch
	case SlotDinner:
		return Dinner
	default:
		return ""
	}
}

// ParseType parses a meal type, case-insensitively.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Breakfast:
		return Breakfast, nil
	case Lunch:
		return Lunch, nil
	case Dinner:
		return Dinner, nil
	default:
		return "", ErrInvalidType
	}
}

// ParseSlot parses an order time label. Legacy labels map 1:1:
// Morning -> Breakfast, Noon -> Lunch, Night -> Dinner.
func ParseSlot(s string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning", "breakfast":
		return SlotBreakfast, nil
	case "noon", "lunch":
		return SlotLunch, nil
	case "night", "dinner":
		return SlotDinner, nil
	default:
		return "", ErrInvalidSlot
	}
}
