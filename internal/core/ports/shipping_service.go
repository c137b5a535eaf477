package ports

import (
	"context"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// ShippingService owns per-product bid lists and transport confirmation.
type ShippingService interface {
	// Request appends the caller to the product's bid list. Caller must hold
	// the shipper capability and the product must be Sold. Duplicate requests
	// are a no-op success, not an error, to tolerate retried submissions.
	Request(ctx context.Context, caller domain.Account, productID int64) error

	// Requests returns the product's ordered bid list, insertion order
	// preserved, recomputed from committed state on each call.
	Requests(ctx context.Context, productID int64) ([]domain.Account, error)

	// ConfirmTransport advances the product to Arrived. Caller must be the
	// product's currently assigned shipper and the product must be InTransit.
	ConfirmTransport(ctx context.Context, caller domain.Account, productID int64) (domain.Product, error)

	// Reject durably removes a bidder from the product's bid list. Only
	// honoured when the arbitration policy makes rejection durable; otherwise
	// fails with domain.ErrRejectionNotDurable and the ledger is untouched.
	// Caller must be the product's own producer and the product must be Sold.
	Reject(ctx context.Context, caller domain.Account, productID int64, shipper domain.Account) error
}
