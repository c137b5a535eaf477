package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marketledger/marketledger/internal/api/metrics"
	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/core/ports"
	"github.com/marketledger/marketledger/internal/ledger"
)

// RoleService implements the role registry on top of the ledger.
type RoleService struct {
	ledger *ledger.Ledger
	log    zerolog.Logger
}

func NewRoleService(l *ledger.Ledger, log zerolog.Logger) *RoleService {
	return &RoleService{ledger: l, log: log}
}

// Register grants the tag to the caller. The grant and its notification
// commit in one atomic apply.
func (s *RoleService) Register(ctx context.Context, caller domain.Account, tag domain.RoleTag) error {
	err := s.ledger.Update(func(tx *ledger.Tx) error {
		if _, err := tx.GrantRole(caller, tag); err != nil {
			return err
		}
		tx.Emit(domain.Notification{
			Kind:      domain.NoteRoleRegistered,
			ProductID: domain.NoProduct,
			Actor:     caller,
			Tag:       tag,
		})
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("register_role", errReason(err)).Inc()
		return fmt.Errorf("register role: %w", err)
	}

	metrics.OperationsTotal.WithLabelValues("register_role").Inc()
	s.log.Info().Str("account", string(caller)).Str("role", string(tag)).Msg("role registered")
	return nil
}

// Has reports whether the account holds the tag.
func (s *RoleService) Has(_ context.Context, account domain.Account, tag domain.RoleTag) bool {
	return s.ledger.HasRole(account, tag)
}

// RolesOf lists the account's capabilities in grant order.
func (s *RoleService) RolesOf(_ context.Context, account domain.Account) []domain.RoleTag {
	return s.ledger.RolesOf(account)
}

var _ ports.RoleService = (*RoleService)(nil)

// errReason maps taxonomy errors to a short metric label.
func errReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrWrongValue):
		return "wrong_value"
	case errors.Is(err, domain.ErrNotABidder):
		return "not_a_bidder"
	case errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRejectionNotDurable):
		return "rejection_not_durable"
	default:
		return "internal"
	}
}
