package listdeliveryitems

import (
	"context"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/deliveryitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
	"github.com/gorilla/schema"
)

type service interface {
	ListDeliveryItems(
		ctx context.Context,
		filter deliveryitem.QueryDeliveryItemsModel,
	) ([]deliveryitem.DeliveryItem, error)
}

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}

type queryDeliveryItemsRequest struct {
	Ids      []int64  `schema:"ids,omitempty"`
	OrderIds []int64  `schema:"orderIds,omitempty"`
	UserIds  []int64  `schema:"userIds,omitempty"`
	Statuses []string `schema:"status,omitempty"    validate:"omitempty,dive,oneof=Pending Confirmed Delivered Cancelled"`
	From     string   `schema:"from,omitempty"      validate:"omitempty,datetime=2006-01-02"`
	To       string   `schema:"to,omitempty"        validate:"omitempty,datetime=2006-01-02"`
	Limit    int      `schema:"limit,omitempty"     validate:"gte=0,lte=500"`
	Offset   int      `schema:"offset,omitempty"    validate:"gte=0"`
}

func (q *queryDeliveryItemsRequest) ToModel() (deliveryitem.QueryDeliveryItemsModel, error) {
	m := deliveryitem.QueryDeliveryItemsModel{
		Ids:      q.Ids,
		OrderIds: q.OrderIds,
		UserIds:  q.UserIds,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	for _, s := range q.Statuses {
		m.Statuses = append(m.Statuses, deliveryitem.Status(s))
	}

	var err error
	if m.From, err = parseDate(q.From); err != nil {
		return m, errs.Validation("from", "must be YYYY-MM-DD")
	}
	if m.To, err = parseDate(q.To); err != nil {
		return m, errs.Validation("to", "must be YYYY-MM-DD")
	}

	return m, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(orderspec.DateLayout, s)
}

func ListDeliveryItems(w http.ResponseWriter, r *http.Request, service service) {
	query := &queryDeliveryItemsRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		respond.Error(w, "list delivery items", errs.Validation("query", err.Error()))

		return
	}
	if err := request.Validate(query); err != nil {
		respond.Error(w, "list delivery items", err)

		return
	}

	filter, err := query.ToModel()
	if err != nil {
		respond.Error(w, "list delivery items", err)

		return
	}

	items, err := service.ListDeliveryItems(r.Context(), filter)
	if err != nil {
		respond.Error(w, "list delivery items", err)

		return
	}

	respond.JSON(w, http.StatusOK, "Delivery items retrieved successfully", items)
}
