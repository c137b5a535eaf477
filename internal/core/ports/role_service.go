package ports

import (
	"context"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// RoleService is the role registry: self-service capability grants and
// capability reads. Grants are monotonic; there is no revocation.
type RoleService interface {
	// Register grants the tag to the caller. Fails with
	// domain.ErrAlreadyRegistered when the grant already exists.
	Register(ctx context.Context, caller domain.Account, tag domain.RoleTag) error
	// Has reports whether the account holds the tag. Pure read, never fails.
	Has(ctx context.Context, account domain.Account, tag domain.RoleTag) bool
	// RolesOf lists the account's capabilities in grant order.
	RolesOf(ctx context.Context, account domain.Account) []domain.RoleTag
}
