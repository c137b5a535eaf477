package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marketledger/marketledger/internal/api/metrics"
	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/core/ports"
	"github.com/marketledger/marketledger/internal/ledger"
)

// ArbitrationPolicy controls how bid rejection behaves.
type ArbitrationPolicy struct {
	// RejectionIsDurable decides whether rejecting a bidder removes the bid
	// from the ledger (true) or stays a presentation-layer filter (false,
	// the default).
	RejectionIsDurable bool
}

// ShippingService implements the shipping coordinator: bid collection and
// transport confirmation.
type ShippingService struct {
	ledger *ledger.Ledger
	policy ArbitrationPolicy
	log    zerolog.Logger
}

func NewShippingService(l *ledger.Ledger, policy ArbitrationPolicy, log zerolog.Logger) *ShippingService {
	return &ShippingService{ledger: l, policy: policy, log: log}
}

// Request appends the caller to the product's bid list. Bids are only
// meaningful before assignment, so the product must still be Sold. A repeat
// request from the same shipper commits nothing and emits nothing.
func (s *ShippingService) Request(ctx context.Context, caller domain.Account, productID int64) error {
	var appended bool
	err := s.ledger.Update(func(tx *ledger.Tx) error {
		if !tx.HasRole(caller, domain.RoleShipper) {
			return domain.ErrUnauthorized
		}
		p, err := tx.Product(productID)
		if err != nil {
			return err
		}
		if p.Status != domain.StatusSold {
			return domain.ErrInvalidState
		}
		appended = tx.AppendBid(productID, caller)
		if appended {
			tx.Emit(domain.Notification{
				Kind:      domain.NoteShippingRequested,
				ProductID: productID,
				Actor:     caller,
			})
		}
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("request_shipping", errReason(err)).Inc()
		return fmt.Errorf("request shipping on product %d: %w", productID, err)
	}

	if !appended {
		s.log.Debug().Int64("product_id", productID).Str("shipper", string(caller)).Msg("duplicate shipping request ignored")
		return nil
	}

	metrics.OperationsTotal.WithLabelValues("request_shipping").Inc()
	s.log.Info().Int64("product_id", productID).Str("shipper", string(caller)).Msg("shipping requested")
	return nil
}

// Requests returns the product's ordered bid list.
func (s *ShippingService) Requests(_ context.Context, productID int64) ([]domain.Account, error) {
	if _, err := s.ledger.GetProduct(productID); err != nil {
		return nil, fmt.Errorf("shipping requests for product %d: %w", productID, err)
	}
	return s.ledger.Bids(productID), nil
}

// ConfirmTransport advances an InTransit product to Arrived. Ownership is
// checked against the product's assigned shipper, not the role tag.
func (s *ShippingService) ConfirmTransport(ctx context.Context, caller domain.Account, productID int64) (domain.Product, error) {
	var confirmed domain.Product
	err := s.ledger.Update(func(tx *ledger.Tx) error {
		p, err := tx.Product(productID)
		if err != nil {
			return err
		}
		if p.Shipper != caller {
			return domain.ErrUnauthorized
		}
		if p.Status != domain.StatusInTransit {
			return domain.ErrInvalidState
		}
		if err := p.Advance(domain.StatusArrived, caller, tx.Now()); err != nil {
			return err
		}
		tx.Emit(domain.Notification{
			Kind:      domain.NoteTransportConfirmed,
			ProductID: productID,
			Actor:     caller,
		})
		confirmed = *p
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("confirm_transport", errReason(err)).Inc()
		return domain.Product{}, fmt.Errorf("confirm transport on product %d: %w", productID, err)
	}

	metrics.OperationsTotal.WithLabelValues("confirm_transport").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(string(domain.StatusInTransit), string(domain.StatusArrived)).Inc()
	s.log.Info().Int64("product_id", productID).Str("shipper", string(caller)).Msg("transport confirmed")
	return confirmed, nil
}

// Reject removes a bidder from the product's bid list, when the arbitration
// policy makes rejection durable. With the default policy the ledger is
// untouched and the caller is told rejection is a view-side concern.
func (s *ShippingService) Reject(ctx context.Context, caller domain.Account, productID int64, shipper domain.Account) error {
	if !s.policy.RejectionIsDurable {
		return fmt.Errorf("reject bid on product %d: %w", productID, domain.ErrRejectionNotDurable)
	}

	err := s.ledger.Update(func(tx *ledger.Tx) error {
		p, err := tx.Product(productID)
		if err != nil {
			return err
		}
		if p.Producer != caller {
			return domain.ErrUnauthorized
		}
		if p.Status != domain.StatusSold {
			return domain.ErrInvalidState
		}
		if !tx.RemoveBid(productID, shipper) {
			return domain.ErrNotABidder
		}
		tx.Emit(domain.Notification{
			Kind:      domain.NoteBidRejected,
			ProductID: productID,
			Actor:     caller,
			Peer:      shipper,
		})
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("reject_bid", errReason(err)).Inc()
		return fmt.Errorf("reject bid on product %d: %w", productID, err)
	}

	metrics.OperationsTotal.WithLabelValues("reject_bid").Inc()
	s.log.Info().
		Int64("product_id", productID).
		Str("producer", string(caller)).
		Str("shipper", string(shipper)).
		Msg("bid rejected")
	return nil
}

var _ ports.ShippingService = (*ShippingService)(nil)
