package listorders

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/request"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/respond"
	"github.com/gorilla/schema"
)

type service interface {
	ListOrders(ctx context.Context, q ordersvc.ListOrdersQuery) ([]ordersvc.OrderDetails, error)
}

type queryOrdersRequest struct {
	Ids      []int64 `schema:"ids,omitempty"`
	UserIds  []int64 `schema:"userIds,omitempty"`
	Page     int     `schema:"page,omitempty"     validate:"gte=0"`
	PageSize int     `schema:"pageSize,omitempty" validate:"gte=0,lte=200"`
}

func (q *queryOrdersRequest) ToModel() ordersvc.ListOrdersQuery {
	return ordersvc.ListOrdersQuery{
		Ids:      q.Ids,
		UserIds:  q.UserIds,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
}

func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	decoder := schema.NewDecoder()
	query := &queryOrdersRequest{}
	err := decoder.Decode(query, r.URL.Query())
	if err != nil {
		respond.Error(w, "list orders", errs.Validation("query", err.Error()))

		return
	}
	if err := request.Validate(query); err != nil {
		respond.Error(w, "list orders", err)

		return
	}

	orders, err := service.ListOrders(r.Context(), query.ToModel())
	if err != nil {
		respond.Error(w, "list orders", err)

		return
	}

	respond.JSON(w, http.StatusOK, "Orders retrieved successfully", orders)
}
