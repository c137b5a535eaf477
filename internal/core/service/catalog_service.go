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

// CatalogService implements the product catalog: creation, purchase,
// shipper assignment, delivery confirmation and the filtered views.
type CatalogService struct {
	ledger *ledger.Ledger
	replay ports.ReplayStore // optional
	log    zerolog.Logger
}

func NewCatalogService(l *ledger.Ledger, replay ports.ReplayStore, log zerolog.Logger) *CatalogService {
	return &CatalogService{ledger: l, replay: replay, log: log}
}

// Create lists a new product. If an idempotency key is provided and already
// seen, the originally created product is returned without side effects.
func (s *CatalogService) Create(ctx context.Context, input ports.CreateProductInput) (*ports.CreateProductResult, error) {
	if input.IdempotencyKey != "" && s.replay != nil {
		id, ok, err := s.replay.Lookup(ctx, input.IdempotencyKey)
		if err != nil {
			s.log.Warn().Err(err).Msg("replay lookup failed, creating anyway")
		} else if ok {
			existing, err := s.ledger.GetProduct(id)
			if err == nil {
				s.log.Info().
					Str("idempotency_key", input.IdempotencyKey).
					Int64("product_id", id).
					Msg("idempotent replay")
				return &ports.CreateProductResult{Product: existing, AlreadyExisted: true}, nil
			}
		}
	}

	var created domain.Product
	err := s.ledger.Update(func(tx *ledger.Tx) error {
		if !tx.HasRole(input.Caller, domain.RoleProducer) {
			return domain.ErrUnauthorized
		}
		if input.Price <= 0 {
			return domain.ErrWrongValue
		}
		p := tx.CreateProduct(input.Name, input.Price, input.Caller)
		tx.Emit(domain.Notification{
			Kind:      domain.NoteProductCreated,
			ProductID: p.ID,
			Actor:     input.Caller,
		})
		created = *p
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("create_product", errReason(err)).Inc()
		return nil, fmt.Errorf("create product: %w", err)
	}

	if input.IdempotencyKey != "" && s.replay != nil {
		if err := s.replay.Save(ctx, input.IdempotencyKey, created.ID); err != nil {
			s.log.Warn().Err(err).Int64("product_id", created.ID).Msg("failed to save replay key")
		}
	}

	metrics.OperationsTotal.WithLabelValues("create_product").Inc()
	s.log.Info().
		Int64("product_id", created.ID).
		Str("producer", string(input.Caller)).
		Int64("price", created.Price).
		Msg("product created")

	return &ports.CreateProductResult{Product: created}, nil
}

// Buy purchases a Created product at its exact price. The paid amount is
// validated, never coerced: over- and underpayment both fail.
func (s *CatalogService) Buy(ctx context.Context, caller domain.Account, id int64, paid int64) (domain.Product, error) {
	var bought domain.Product
	err := s.ledger.Update(func(tx *ledger.Tx) error {
		if !tx.HasRole(caller, domain.RoleBuyer) {
			return domain.ErrUnauthorized
		}
		p, err := tx.Product(id)
		if err != nil {
			return err
		}
		if p.Status != domain.StatusCreated {
			return domain.ErrInvalidState
		}
		if paid != p.Price {
			return domain.ErrWrongValue
		}
		p.Buyer = caller
		if err := p.Advance(domain.StatusSold, caller, tx.Now()); err != nil {
			return err
		}
		tx.Emit(domain.Notification{
			Kind:      domain.NoteProductPurchased,
			ProductID: p.ID,
			Actor:     caller,
		})
		bought = *p
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("buy_product", errReason(err)).Inc()
		return domain.Product{}, fmt.Errorf("buy product %d: %w", id, err)
	}

	metrics.OperationsTotal.WithLabelValues("buy_product").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(string(domain.StatusCreated), string(domain.StatusSold)).Inc()
	s.log.Info().
		Int64("product_id", id).
		Str("buyer", string(caller)).
		Int64("paid", paid).
		Msg("product purchased")
	return bought, nil
}

// AssignShipper selects one bidder as the product's shipper and advances the
// product to InTransit. The capability check on the target and the bid-list
// membership check both run inside the same atomic apply as the mutation.
func (s *CatalogService) AssignShipper(ctx context.Context, caller domain.Account, id int64, shipper domain.Account) (domain.Product, error) {
	var assigned domain.Product
	err := s.ledger.Update(func(tx *ledger.Tx) error {
		p, err := tx.Product(id)
		if err != nil {
			return err
		}
		if p.Producer != caller {
			return domain.ErrUnauthorized
		}
		if p.Status != domain.StatusSold {
			return domain.ErrInvalidState
		}
		if !tx.HasRole(shipper, domain.RoleShipper) {
			return domain.ErrUnauthorized
		}
		if !tx.HasBid(id, shipper) {
			return domain.ErrNotABidder
		}
		p.Shipper = shipper
		if err := p.Advance(domain.StatusInTransit, caller, tx.Now()); err != nil {
			return err
		}
		tx.Emit(domain.Notification{
			Kind:      domain.NoteShipperAssigned,
			ProductID: p.ID,
			Actor:     caller,
			Peer:      shipper,
		})
		assigned = *p
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("assign_shipper", errReason(err)).Inc()
		return domain.Product{}, fmt.Errorf("assign shipper on product %d: %w", id, err)
	}

	metrics.OperationsTotal.WithLabelValues("assign_shipper").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(string(domain.StatusSold), string(domain.StatusInTransit)).Inc()
	s.log.Info().
		Int64("product_id", id).
		Str("producer", string(caller)).
		Str("shipper", string(shipper)).
		Msg("shipper assigned")
	return assigned, nil
}

// ConfirmDelivery moves an Arrived product to its terminal Delivered state.
// Repeat calls fail with ErrInvalidState: Delivered has no outgoing edges.
func (s *CatalogService) ConfirmDelivery(ctx context.Context, caller domain.Account, id int64) (domain.Product, error) {
	var delivered domain.Product
	err := s.ledger.Update(func(tx *ledger.Tx) error {
		p, err := tx.Product(id)
		if err != nil {
			return err
		}
		if p.Buyer != caller {
			return domain.ErrUnauthorized
		}
		if p.Status != domain.StatusArrived {
			return domain.ErrInvalidState
		}
		if err := p.Advance(domain.StatusDelivered, caller, tx.Now()); err != nil {
			return err
		}
		tx.Emit(domain.Notification{
			Kind:      domain.NoteDeliveryConfirmed,
			ProductID: p.ID,
			Actor:     caller,
		})
		delivered = *p
		return nil
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("confirm_delivery", errReason(err)).Inc()
		return domain.Product{}, fmt.Errorf("confirm delivery on product %d: %w", id, err)
	}

	metrics.OperationsTotal.WithLabelValues("confirm_delivery").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(string(domain.StatusArrived), string(domain.StatusDelivered)).Inc()
	s.log.Info().Int64("product_id", id).Str("buyer", string(caller)).Msg("delivery confirmed")
	return delivered, nil
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func (s *CatalogService) Get(_ context.Context, id int64) (domain.Product, error) {
	p, err := s.ledger.GetProduct(id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// Available lists products still open for purchase.
func (s *CatalogService) Available(_ context.Context) []domain.Product {
	return s.ledger.Products(func(p domain.Product) bool { return p.Status == domain.StatusCreated })
}

// Sold lists products waiting for shipper assignment, the ones open for bids.
func (s *CatalogService) Sold(_ context.Context) []domain.Product {
	return s.ledger.Products(func(p domain.Product) bool { return p.Status == domain.StatusSold })
}

func (s *CatalogService) ByProducer(_ context.Context, producer domain.Account) []domain.Product {
	return s.ledger.Products(func(p domain.Product) bool { return p.Producer == producer })
}

func (s *CatalogService) ByBuyer(_ context.Context, buyer domain.Account) []domain.Product {
	return s.ledger.Products(func(p domain.Product) bool { return p.Buyer == buyer })
}

func (s *CatalogService) ByShipper(_ context.Context, shipper domain.Account) []domain.Product {
	return s.ledger.Products(func(p domain.Product) bool { return p.Shipper == shipper })
}

var _ ports.CatalogService = (*CatalogService)(nil)
