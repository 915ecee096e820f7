// Package intake turns raw order data into a normalized order specification.
package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/meal"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

type options struct {
	defaultUserID    int64
	defaultAddressID int64
}

// Option configures Normalize.
type Option func(*options)

// WithDefaultUserID sets the owner used when the order data carries no userId.
func WithDefaultUserID(id int64) Option {
	return func(o *options) {
		o.defaultUserID = id
	}
}

// WithDefaultAddressID sets the delivery address used when the order data names none.
func WithDefaultAddressID(id int64) Option {
	return func(o *options) {
		o.defaultAddressID = id
	}
}

// flexID accepts ids encoded as JSON numbers or numeric strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0

		return nil
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return &json.UnmarshalTypeError{Value: "id " + strconv.Quote(s), Type: reflect.TypeFor[int64]()}
	}
	*f = flexID(id)

	return nil
}

type rawItem struct {
	MenuItemID flexID      `json:"menuItemId" validate:"gt=0"`
	MealType   string      `json:"mealType"`
	Quantity   json.Number `json:"quantity"`
}

type rawSpec struct {
	UserID            flexID                    `json:"userId"`
	OrderDate         string                    `json:"orderDate"`
	SelectedDates     []string                  `json:"selectedDates"     validate:"required,min=1,dive,required"`
	OrderItems        []rawItem                 `json:"orderItems"        validate:"required,min=1,dive"`
	OrderTimes        []string                  `json:"orderTimes"        validate:"required,min=1,dive,required"`
	DeliveryAddressID flexID                    `json:"deliveryAddressId"`
	Address           *address.Input            `json:"address"`
	DeliveryLocations map[string]flexID         `json:"deliveryLocations"`
	SkipMeals         map[string]map[string]any `json:"skipMeals"`
	DeliveryNote      string                    `json:"deliveryNote"`
	TotalPrice        decimal.NullDecimal       `json:"totalPrice"`
}

// Normalize parses and validates raw order data.
// raw may be a JSON document as string, []byte or json.RawMessage (itself possibly
// a JSON string holding the document), or any value that marshals to one.
// Invalid JSON yields errs.ErrMalformedInput, any invalid field an *errs.ValidationError.
func Normalize(raw any, opts ...Option) (orderspec.OrderSpec, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := toJSON(raw)
	if err != nil {
		return orderspec.OrderSpec{}, err
	}

	var rs rawSpec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rs); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return orderspec.OrderSpec{}, errs.Validation(typeErr.Field, "has the wrong type")
		}

		return orderspec.OrderSpec{}, fmt.Errorf("%w: %w", errs.ErrMalformedInput, err)
	}

	if err := validate.Struct(&rs); err != nil {
		return orderspec.OrderSpec{}, validationError(err)
	}

	return rs.normalize(o)
}

func toJSON(raw any) ([]byte, error) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil, errs.Validation("orderData", "is required")
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrMalformedInput, err)
		}
		data = b
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errs.Validation("orderData", "is required")
	}

	// The document may arrive double encoded as a JSON string.
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrMalformedInput, err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", errs.ErrMalformedInput)
	}
	if data[0] != '{' {
		return nil, errs.Validation("orderData", "must be an object")
	}

	return data, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.Validation("", err.Error())
	}

	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "rawSpec.")

	switch fe.Tag() {
	case "required":
		return errs.Validation(field, "is required")
	case "min":
		return errs.Validation(field, "must not be empty")
	case "gt":
		return errs.Validation(field, "must be positive")
	default:
		return errs.Validation(field, "failed "+fe.Tag()+" check")
	}
}

func (rs *rawSpec) normalize(o options) (orderspec.OrderSpec, error) {
	spec := orderspec.OrderSpec{
		UserID:            int64(rs.UserID),
		DeliveryAddressID: int64(rs.DeliveryAddressID),
		Address:           rs.Address,
		DeliveryNote:      strings.TrimSpace(rs.DeliveryNote),
		TotalPrice:        rs.TotalPrice.Decimal,
	}

	if spec.UserID == 0 {
		spec.UserID = o.defaultUserID
	}
	if spec.UserID <= 0 {
		return orderspec.OrderSpec{}, errs.Validation("userId", "is required")
	}

	if rs.OrderDate != "" {
		d, err := parseDate(rs.OrderDate)
		if err != nil {
			return orderspec.OrderSpec{}, errs.Validation("orderDate", err.Error())
		}
		spec.OrderDate = d
	}

	dates, err := parseDates(rs.SelectedDates)
	if err != nil {
		return orderspec.OrderSpec{}, err
	}
	spec.SelectedDates = dates

	if spec.OrderTimes, err = parseTimes(rs.OrderTimes); err != nil {
		return orderspec.OrderSpec{}, err
	}

	if spec.OrderItems, spec.Strategy, err = parseItems(rs.OrderItems); err != nil {
		return orderspec.OrderSpec{}, err
	}

	if !spec.HasAddress() {
		spec.DeliveryAddressID = o.defaultAddressID
	}
	if !spec.HasAddress() {
		return orderspec.OrderSpec{}, errs.Validation("deliveryAddressId", "or an address is required")
	}

	if spec.DeliveryLocations, err = parseLocations(rs.DeliveryLocations); err != nil {
		return orderspec.OrderSpec{}, err
	}

	if spec.SkipMeals, err = parseSkips(rs.SkipMeals); err != nil {
		return orderspec.OrderSpec{}, err
	}

	return spec, nil
}

// parseDate accepts a calendar date or a timestamp, which is truncated to its date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(orderspec.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return orderspec.Date(t), nil
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseDates(raw []string) ([]time.Time, error) {
	seen := make(map[string]bool, len(raw))
	dates := make([]time.Time, 0, len(raw))
	for i, s := range raw {
		d, err := parseDate(s)
		if err != nil {
			return nil, errs.Validation(fmt.Sprintf("selectedDates[%d]", i), err.Error())
		}
		key := orderspec.DateKey(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		dates = append(dates, d)
	}

	return dates, nil
}

func parseTimes(raw []string) ([]meal.Slot, error) {
	seen := make(map[meal.Slot]bool, len(raw))
	slots := make([]meal.Slot, 0, len(raw))
	for i, s := range raw {
		slot, err := meal.ParseSlot(s)
		if err != nil {
			return nil, errs.Validation(fmt.Sprintf("orderTimes[%d]", i), fmt.Sprintf("unknown meal time %q", s))
		}
		if seen[slot] {
			continue
		}
		seen[slot] = true
		slots = append(slots, slot)
	}

	return slots, nil
}

// parseItems selects the expansion strategy from the item shape: per-item when every
// item names its meal type, fixed-slot when none does.
func parseItems(raw []rawItem) ([]orderspec.Item, orderspec.Strategy, error) {
	typed := 0
	for _, it := range raw {
		if strings.TrimSpace(it.MealType) != "" {
			typed++
		}
	}
	if typed != 0 && typed != len(raw) {
		for i, it := range raw {
			if strings.TrimSpace(it.MealType) == "" {
				return nil, "", errs.Validation(fmt.Sprintf("orderItems[%d].mealType", i), "is required")
			}
		}
	}

	strategy := orderspec.StrategyFixedSlot
	if typed > 0 {
		strategy = orderspec.StrategyPerItem
	}
	// Fixed-slot orders deliver one unit of a single menu item per slot.
	if strategy == orderspec.StrategyFixedSlot && len(raw) > 1 {
		return nil, "", errs.Validation("orderItems[1].mealType", "is required when ordering several menu items")
	}

	items := make([]orderspec.Item, len(raw))
	for i, it := range raw {
		item := orderspec.Item{MenuItemID: int64(it.MenuItemID)}

		if strategy == orderspec.StrategyPerItem {
			mt, err := meal.ParseType(it.MealType)
			if err != nil {
				return nil, "", errs.Validation(
					fmt.Sprintf("orderItems[%d].mealType", i),
					fmt.Sprintf("unknown meal type %q", it.MealType),
				)
			}
			item.MealType = mt
		}

		qty, err := parseQuantity(it.Quantity, strategy)
		if err != nil {
			return nil, "", errs.Validation(fmt.Sprintf("orderItems[%d].quantity", i), err.Error())
		}
		item.Quantity = qty
		items[i] = item
	}

	return items, strategy, nil
}

// parseQuantity requires a positive integer. Fixed-slot items default to and must be 1.
func parseQuantity(n json.Number, strategy orderspec.Strategy) (int, error) {
	if n == "" {
		if strategy == orderspec.StrategyFixedSlot {
			return 1, nil
		}

		return 0, errors.New("is required")
	}

	q, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if q < 1 {
		return 0, errors.New("must be positive")
	}
	if strategy == orderspec.StrategyFixedSlot && q != 1 {
		return 0, errors.New("must be 1 without mealType")
	}

	return q, nil
}

func parseLocations(raw map[string]flexID) (map[meal.Type]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make(map[meal.Type]int64, len(raw))
	for k, id := range raw {
		mt, err := meal.ParseType(k)
		if err != nil {
			return nil, errs.Validation("deliveryLocations."+k, "unknown meal type")
		}
		if id < 0 {
			return nil, errs.Validation("deliveryLocations."+k, "must be positive")
		}
		if id > 0 {
			out[mt] = int64(id)
		}
	}

	return out, nil
}

func parseSkips(raw map[string]map[string]any) (map[string]map[meal.Type]bool, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make(map[string]map[meal.Type]bool, len(raw))
	for key, flags := range raw {
		d, err := parseDate(key)
		if err != nil {
			return nil, errs.Validation("skipMeals."+key, err.Error())
		}
		norm := orderspec.DateKey(d)

		for k, v := range flags {
			mt, err := meal.ParseType(k)
			if err != nil {
				return nil, errs.Validation("skipMeals."+key+"."+k, "unknown meal type")
			}
			if !truthy(v) {
				continue
			}
			if out[norm] == nil {
				out[norm] = map[meal.Type]bool{}
			}
			out[norm][mt] = true
		}
	}

	return out, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)

		return err == nil && b
	case json.Number:
		f, err := t.Float64()

		return err == nil && f != 0
	default:
		return false
	}
}
