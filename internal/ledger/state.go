package ledger

import (
	"time"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// state holds the three record tables plus the outbox. Product ids are
// allocated sequentially from 0 and products are never deleted, but the
// table is a map keyed by id: a snapshot reloaded from the write-behind
// journal may be missing a record whose save was dropped, and a hole must
// not poison the ids around it. nextID and noteSeq carry the allocation
// high-water marks so restored gaps are never reused.
type state struct {
	grants   []domain.RoleGrant
	grantSet map[domain.Account]map[domain.RoleTag]struct{}
	products map[int64]*domain.Product
	nextID   int64
	bids     map[int64][]domain.Account
	notes    []domain.Notification
	noteSeq  int64
}

func newState() *state {
	return &state{
		grantSet: make(map[domain.Account]map[domain.RoleTag]struct{}),
		products: make(map[int64]*domain.Product),
		bids:     make(map[int64][]domain.Account),
	}
}

func (s *state) hasRole(account domain.Account, tag domain.RoleTag) bool {
	_, ok := s.grantSet[account][tag]
	return ok
}

func (s *state) product(id int64) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

// clone deep-copies the state so a staged transaction can never leak into
// the committed view.
func (s *state) clone() *state {
	c := newState()

	c.grants = append([]domain.RoleGrant(nil), s.grants...)
	for acct, tags := range s.grantSet {
		set := make(map[domain.RoleTag]struct{}, len(tags))
		for t := range tags {
			set[t] = struct{}{}
		}
		c.grantSet[acct] = set
	}

	for id, p := range s.products {
		cp := cloneProduct(p)
		c.products[id] = &cp
	}
	c.nextID = s.nextID

	for id, bidders := range s.bids {
		c.bids[id] = append([]domain.Account(nil), bidders...)
	}

	c.notes = append([]domain.Notification(nil), s.notes...)
	c.noteSeq = s.noteSeq
	return c
}

func cloneProduct(p *domain.Product) domain.Product {
	c := *p
	c.StatusHistory = append([]domain.StatusHistoryEntry(nil), p.StatusHistory...)
	return c
}

// changeSet records what a transaction touched, for the write-behind journal.
type changeSet struct {
	grants      []domain.RoleGrant
	productIDs  []int64
	bidProducts []int64
	notes       []domain.Notification
}

func (c changeSet) empty() bool {
	return len(c.grants) == 0 && len(c.productIDs) == 0 &&
		len(c.bidProducts) == 0 && len(c.notes) == 0
}

func (c *changeSet) touchProduct(id int64) {
	for _, got := range c.productIDs {
		if got == id {
			return
		}
	}
	c.productIDs = append(c.productIDs, id)
}

func (c *changeSet) touchBids(id int64) {
	for _, got := range c.bidProducts {
		if got == id {
			return
		}
	}
	c.bidProducts = append(c.bidProducts, id)
}

// Tx is the staged view handed to Update callbacks. All reads observe the
// staged state; all writes become visible only when the callback returns nil.
type Tx struct {
	st      *state
	now     time.Time
	changed changeSet
}

// Now is the single timestamp for everything committed by this transaction.
func (tx *Tx) Now() time.Time { return tx.now }

// HasRole reports whether the account holds the capability.
func (tx *Tx) HasRole(account domain.Account, tag domain.RoleTag) bool {
	return tx.st.hasRole(account, tag)
}

// GrantRole records the (account, tag) grant. Fails with ErrAlreadyRegistered
// when the grant exists; grants are monotonic and never revoked.
func (tx *Tx) GrantRole(account domain.Account, tag domain.RoleTag) (domain.RoleGrant, error) {
	if tx.st.hasRole(account, tag) {
		return domain.RoleGrant{}, domain.ErrAlreadyRegistered
	}

	grant := domain.RoleGrant{Account: account, Tag: tag, GrantedAt: tx.now}
	tx.st.grants = append(tx.st.grants, grant)
	set, ok := tx.st.grantSet[account]
	if !ok {
		set = make(map[domain.RoleTag]struct{})
		tx.st.grantSet[account] = set
	}
	set[tag] = struct{}{}

	tx.changed.grants = append(tx.changed.grants, grant)
	return grant, nil
}

// CreateProduct allocates the next sequential id and stores the product in
// the initial Created state.
func (tx *Tx) CreateProduct(name string, price int64, producer domain.Account) *domain.Product {
	p := &domain.Product{
		ID:        tx.st.nextID,
		Name:      name,
		Price:     price,
		Producer:  producer,
		Status:    domain.StatusCreated,
		CreatedAt: tx.now,
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.StatusCreated, Actor: producer, Timestamp: tx.now},
		},
	}
	tx.st.products[p.ID] = p
	tx.st.nextID++
	tx.changed.touchProduct(p.ID)
	return p
}

// Product returns the staged product for mutation; changes to it are part of
// the commit. Fails with ErrProductNotFound for unknown ids.
func (tx *Tx) Product(id int64) (*domain.Product, error) {
	p, err := tx.st.product(id)
	if err != nil {
		return nil, err
	}
	tx.changed.touchProduct(id)
	return p, nil
}

// Bids returns the staged ordered bid list for the product.
func (tx *Tx) Bids(productID int64) []domain.Account {
	return append([]domain.Account(nil), tx.st.bids[productID]...)
}

// HasBid reports whether the account already bid on the product.
func (tx *Tx) HasBid(productID int64, account domain.Account) bool {
	for _, b := range tx.st.bids[productID] {
		if b == account {
			return true
		}
	}
	return false
}

// AppendBid appends the account to the product's bid list, creating the list
// on first use. Returns false without modifying anything when the account
// already bid (idempotent append).
func (tx *Tx) AppendBid(productID int64, account domain.Account) bool {
	if tx.HasBid(productID, account) {
		return false
	}
	tx.st.bids[productID] = append(tx.st.bids[productID], account)
	tx.changed.touchBids(productID)
	return true
}

// RemoveBid removes the account from the product's bid list, preserving the
// order of the remaining entries. Returns false when the account never bid.
func (tx *Tx) RemoveBid(productID int64, account domain.Account) bool {
	bidders := tx.st.bids[productID]
	for i, b := range bidders {
		if b == account {
			tx.st.bids[productID] = append(bidders[:i:i], bidders[i+1:]...)
			tx.changed.touchBids(productID)
			return true
		}
	}
	return false
}

// Emit appends a notification to the outbox, assigning the next sequence
// number. Sequence numbers are 1-based and strictly increasing; they are
// dense within a single process lifetime but a restored ledger may carry
// gaps where journal writes were dropped.
func (tx *Tx) Emit(n domain.Notification) domain.Notification {
	tx.st.noteSeq++
	n.Seq = tx.st.noteSeq
	if n.At.IsZero() {
		n.At = tx.now
	}
	tx.st.notes = append(tx.st.notes, n)
	tx.changed.notes = append(tx.changed.notes, n)
	return n
}
