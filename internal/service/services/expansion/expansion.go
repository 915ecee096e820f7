// Package expansion plans the delivery items of an order specification.
// Planning is pure; persistence lives in deliverysvc.
package expansion

import (
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/shopspring/decimal"
)

// Line is one planned delivery.
type Line struct {
	Date       time.Time
	MealType   meal.Type
	MenuItemID int64
	Quantity   int
	AddressID  int64
}

// Plan is the outcome of expanding an order specification.
// len(Lines)+Skipped equals the number of candidate (date, slot) pairs.
type Plan struct {
	Lines   []Line
	Skipped int
}

// Empty reports whether nothing is to be delivered.
func (p Plan) Empty() bool {
	return len(p.Lines) == 0
}

// Candidates returns the number of pairs considered, skipped ones included.
func (p Plan) Candidates() int {
	return len(p.Lines) + p.Skipped
}

// Items converts the plan into pending delivery items of an order.
func (p Plan) Items(orderID, userID int64, note string, now time.Time) []deliveryitem.DeliveryItem {
	items := make([]deliveryitem.DeliveryItem, len(p.Lines))
	for i, l := range p.Lines {
		items[i] = deliveryitem.DeliveryItem{
			OrderID:          orderID,
			UserID:           userID,
			MenuItemID:       l.MenuItemID,
			Quantity:         l.Quantity,
			DeliveryDate:     l.Date,
			DeliveryTimeSlot: l.MealType.Slot(),
			AddressID:        l.AddressID,
			Status:           deliveryitem.StatusPending,
			DeliveryNote:     note,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	return items
}

// UnitsByProduct sums planned quantities per menu item.
func (p Plan) UnitsByProduct() map[int64]int {
	units := make(map[int64]int)
	for _, l := range p.Lines {
		units[l.MenuItemID] += l.Quantity
	}

	return units
}

// Units returns the total planned quantity.
func (p Plan) Units() int {
	n := 0
	for _, l := range p.Lines {
		n += l.Quantity
	}

	return n
}

// Strategy expands an order specification into a plan.
type Strategy interface {
	Expand(spec *orderspec.OrderSpec) Plan
}

// FixedSlot iterates selected dates, then order times. Every surviving slot
// gets one unit of the order's single menu item.
type FixedSlot struct{}

// Expand implements Strategy.
func (FixedSlot) Expand(spec *orderspec.OrderSpec) Plan {
	var plan Plan
	if len(spec.OrderItems) == 0 {
		return plan
	}
	menuItemID := spec.OrderItems[0].MenuItemID

	for _, date := range spec.SelectedDates {
		for _, slot := range spec.OrderTimes {
			mt := slot.Type()
			if spec.Skipped(date, mt) {
				plan.Skipped++

				continue
			}

			plan.Lines = append(plan.Lines, Line{
				Date:       date,
				MealType:   mt,
				MenuItemID: menuItemID,
				Quantity:   1,
				AddressID:  spec.AddressFor(mt),
			})
		}
	}

	return plan
}

// PerItem iterates selected dates, then order items, using each item's own
// meal type and quantity.
type PerItem struct{}

// Expand implements Strategy.
func (PerItem) Expand(spec *orderspec.OrderSpec) Plan {
	var plan Plan
	for _, date := range spec.SelectedDates {
		for _, it := range spec.OrderItems {
			if spec.Skipped(date, it.MealType) {
				plan.Skipped++

				continue
			}

			plan.Lines = append(plan.Lines, Line{
				Date:       date,
				MealType:   it.MealType,
				MenuItemID: it.MenuItemID,
				Quantity:   it.Quantity,
				AddressID:  spec.AddressFor(it.MealType),
			})
		}
	}

	return plan
}

// For returns the strategy selected by s.
func For(s orderspec.Strategy) Strategy {
	if s == orderspec.StrategyPerItem {
		return PerItem{}
	}

	return FixedSlot{}
}

// Build expands spec with its selected strategy.
func Build(spec orderspec.OrderSpec) Plan {
	return For(spec.Strategy).Expand(&spec)
}

// SkipAdjustedTotal prices a plan order: perDay for every selected date, less
// perMeal for every skipped meal.
func SkipAdjustedTotal(perDay, perMeal decimal.Decimal, days, skipped int) decimal.Decimal {
	return perDay.Mul(decimal.NewFromInt(int64(days))).
		Sub(perMeal.Mul(decimal.NewFromInt(int64(skipped))))
}
