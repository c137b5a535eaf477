package ports

import (
	"context"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// AccountRepository persists login identities at the session boundary.
type AccountRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AccountService is the session boundary: it mints ledger accounts and the
// tokens that carry them. The core never authenticates; it only ever sees
// the Account the token resolved to.
type AccountService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}
