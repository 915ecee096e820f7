package orderref

import "github.com/corray333/backend-labs/fulfillment/internal/service/models/orderspec"

// Ref identifies the order a payment is made for.
// It is one of Existing, Draft or New.
type Ref interface {
	isRef()
}

// Existing refers to a persisted order.
type Existing struct {
	ID int64
}

// Draft refers to a client-side order that is persisted together with its payment.
type Draft struct {
	Key  string
	Spec orderspec.OrderSpec
}

// New is an order with no client-visible id yet.
type New struct {
	Spec orderspec.OrderSpec
}

func (Existing) isRef() {}
func (Draft) isRef()    {}
func (New) isRef()      {}

// SpecOf returns the order specification carried by draft and new references.
func SpecOf(ref Ref) (orderspec.OrderSpec, bool) {
	switch r := ref.(type) {
	case Draft:
		return r.Spec, true
	case New:
		return r.Spec, true
	default:
		return orderspec.OrderSpec{}, false
	}
}
