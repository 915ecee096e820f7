package iaddressrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/address"
)

// IAddressRepository is an interface for address repository.
type IAddressRepository interface {
	Insert(ctx context.Context, a address.Address) (address.Address, error)
}
