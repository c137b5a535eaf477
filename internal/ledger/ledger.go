// Package ledger implements the atomic-execution substrate the marketplace
// runs on: a single-writer, in-process store of the three record tables
// (role grants, products, shipping bids) plus the append-only notification
// outbox.
//
// Every mutating operation runs through Update, which stages the whole
// mutation against a copy of the state and swaps it in only when the
// operation callback succeeds. An error (or panic) anywhere inside the
// callback leaves the committed state untouched, so cross-table mutations
// (bid append + status advance) are all-or-nothing. Preconditions checked
// inside the callback are therefore re-validated at execution time, which is
// how read-then-act races are resolved: the loser of a race observes the
// winner's committed state and fails its own precondition.
package ledger

import (
	"context"
	"time"

	"sync"

	"github.com/rs/zerolog"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// Journal receives committed records for durable storage. Journal failures
// are logged and ignored: the in-memory state is authoritative and a missed
// journal write can never violate an invariant.
type Journal interface {
	SaveGrant(ctx context.Context, grant domain.RoleGrant) error
	SaveProduct(ctx context.Context, product domain.Product) error
	SaveBids(ctx context.Context, productID int64, bidders []domain.Account) error
	SaveNotification(ctx context.Context, note domain.Notification) error
}

const journalTimeout = 5 * time.Second

// Ledger is the single-writer store. The zero value is not usable; call New.
type Ledger struct {
	mu sync.RWMutex
	st *state

	journal  Journal
	onCommit func([]domain.Notification)
	log      zerolog.Logger
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithJournal attaches a write-behind journal for committed records.
func WithJournal(j Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

// WithCommitHook registers a callback invoked on each commit with the
// notifications that commit produced. The hook runs while the commit lock is
// still held, so batches arrive in commit order; it must be fast and must
// not call back into the ledger.
func WithCommitHook(fn func([]domain.Notification)) Option {
	return func(l *Ledger) { l.onCommit = fn }
}

// New returns an empty ledger.
func New(log zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{st: newState(), log: log}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Update runs fn against a staged copy of the state and commits it only when
// fn returns nil. The staged copy is discarded on error; no interleaving with
// other Update or read calls is observable.
func (l *Ledger) Update(fn func(*Tx) error) error {
	tx := &Tx{now: time.Now().UTC()}

	err := func() error {
		l.mu.Lock()
		defer l.mu.Unlock()

		tx.st = l.st.clone()
		if err := fn(tx); err != nil {
			return err
		}
		l.st = tx.st
		if l.onCommit != nil && len(tx.changed.notes) > 0 {
			l.onCommit(tx.changed.notes)
		}
		return nil
	}()
	if err != nil {
		return err
	}

	l.persist(tx.changed)
	return nil
}

// persist journals the commit's change set. Best effort: failures are logged
// and dropped, mirroring the fact that durability is a snapshot concern, not
// part of the atomic contract.
func (l *Ledger) persist(ch changeSet) {
	if l.journal == nil || ch.empty() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	for _, g := range ch.grants {
		if err := l.journal.SaveGrant(ctx, g); err != nil {
			l.log.Warn().Err(err).Str("account", string(g.Account)).Msg("journal grant failed")
		}
	}
	for _, id := range ch.productIDs {
		p, err := l.GetProduct(id)
		if err != nil {
			continue
		}
		if err := l.journal.SaveProduct(ctx, p); err != nil {
			l.log.Warn().Err(err).Int64("product_id", id).Msg("journal product failed")
		}
	}
	for _, id := range ch.bidProducts {
		if err := l.journal.SaveBids(ctx, id, l.Bids(id)); err != nil {
			l.log.Warn().Err(err).Int64("product_id", id).Msg("journal bids failed")
		}
	}
	for _, n := range ch.notes {
		if err := l.journal.SaveNotification(ctx, n); err != nil {
			l.log.Warn().Err(err).Int64("seq", n.Seq).Msg("journal notification failed")
		}
	}
}

// ---------------------------------------------------------------------------
// Committed-state reads. All return copies; none can observe a staged Update.
// ---------------------------------------------------------------------------

// HasRole reports whether the account holds the capability. Never fails.
func (l *Ledger) HasRole(account domain.Account, tag domain.RoleTag) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.hasRole(account, tag)
}

// RolesOf returns the capabilities granted to the account, in grant order.
func (l *Ledger) RolesOf(account domain.Account) []domain.RoleTag {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var tags []domain.RoleTag
	for _, g := range l.st.grants {
		if g.Account == account {
			tags = append(tags, g.Tag)
		}
	}
	return tags
}

// GetProduct returns a copy of the product or ErrProductNotFound.
func (l *Ledger) GetProduct(id int64) (domain.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, err := l.st.product(id)
	if err != nil {
		return domain.Product{}, err
	}
	return cloneProduct(p), nil
}

// Products returns copies of every product matching the filter, in id order.
// A nil filter matches everything.
func (l *Ledger) Products(filter func(domain.Product) bool) []domain.Product {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Product, 0)
	for id := int64(0); id < l.st.nextID; id++ {
		p, ok := l.st.products[id]
		if !ok {
			continue
		}
		c := cloneProduct(p)
		if filter == nil || filter(c) {
			out = append(out, c)
		}
	}
	return out
}

// Bids returns the ordered bid list for the product. Unknown ids yield an
// empty list; bid lists exist implicitly.
func (l *Ledger) Bids(productID int64) []domain.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Account(nil), l.st.bids[productID]...)
}

// NotificationsAfter returns every outbox entry with Seq > after, oldest
// first. Recomputed from committed state on each call.
func (l *Ledger) NotificationsAfter(after int64) []domain.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Notification, 0)
	for _, n := range l.st.notes {
		if n.Seq > after {
			out = append(out, n)
		}
	}
	return out
}
