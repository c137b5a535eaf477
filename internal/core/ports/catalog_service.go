package ports

import (
	"context"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// CreateProductInput carries all data needed to list a new product.
type CreateProductInput struct {
	Caller domain.Account
	Name   string
	Price  int64
	// IdempotencyKey, when non-empty, makes retried submissions replay the
	// originally created product instead of listing a duplicate.
	IdempotencyKey string
}

// CreateProductResult is returned by CatalogService.Create.
type CreateProductResult struct {
	Product domain.Product
	// AlreadyExisted is true when the idempotency key matched an earlier
	// submission and no new product was created.
	AlreadyExisted bool
}

// CatalogService owns product records and their lifecycle state machine.
// Every operation takes the authenticated caller as an explicit parameter;
// the service never infers identity from ambient state.
type CatalogService interface {
	// Create lists a new product. Caller must hold the producer capability.
	Create(ctx context.Context, input CreateProductInput) (*CreateProductResult, error)

	// Buy purchases the product. Caller must hold the buyer capability, the
	// product must be in the Created state and paid must equal the price
	// exactly (domain.ErrWrongValue otherwise — no tolerance, no clamping).
	Buy(ctx context.Context, caller domain.Account, id int64, paid int64) (domain.Product, error)

	// AssignShipper picks a bidder as the product's shipper. Caller must be
	// the product's own producer, the product must be Sold, and shipper must
	// both hold the shipper capability and appear in the product's bid list.
	AssignShipper(ctx context.Context, caller domain.Account, id int64, shipper domain.Account) (domain.Product, error)

	// ConfirmDelivery is the buyer's final acknowledgement. Caller must be
	// the product's own buyer and the product must be Arrived.
	ConfirmDelivery(ctx context.Context, caller domain.Account, id int64) (domain.Product, error)

	// Reads. All pure, recomputed from the latest committed state.
	Get(ctx context.Context, id int64) (domain.Product, error)
	Available(ctx context.Context) []domain.Product
	Sold(ctx context.Context) []domain.Product
	ByProducer(ctx context.Context, producer domain.Account) []domain.Product
	ByBuyer(ctx context.Context, buyer domain.Account) []domain.Product
	ByShipper(ctx context.Context, shipper domain.Account) []domain.Product
}

// ReplayStore detects retried product submissions by idempotency key.
// Lookup misses and Save failures are tolerated; replay detection is an
// optimisation, never a correctness requirement.
type ReplayStore interface {
	Lookup(ctx context.Context, key string) (productID int64, ok bool, err error)
	Save(ctx context.Context, key string, productID int64) error
}
