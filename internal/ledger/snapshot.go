package ledger

import (
	"fmt"
	"sort"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// Snapshot is a full copy of the committed state, used to reload the ledger
// from the journal at boot and by tests.
type Snapshot struct {
	Grants        []domain.RoleGrant
	Products      []domain.Product
	Bids          map[int64][]domain.Account
	Notifications []domain.Notification
}

// Snapshot exports the committed state. Products come out in id order.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Grants:        append([]domain.RoleGrant(nil), l.st.grants...),
		Bids:          make(map[int64][]domain.Account, len(l.st.bids)),
		Notifications: append([]domain.Notification(nil), l.st.notes...),
	}
	for id := int64(0); id < l.st.nextID; id++ {
		if p, ok := l.st.products[id]; ok {
			snap.Products = append(snap.Products, cloneProduct(p))
		}
	}
	for id, bidders := range l.st.bids {
		snap.Bids[id] = append([]domain.Account(nil), bidders...)
	}
	return snap
}

// Restore replaces the ledger state with the snapshot's. The journal behind
// a snapshot is write-behind and best-effort, so gaps — a product id or
// notification seq whose save was dropped — are tolerated with a warning
// and id/seq allocation resumes past them. Only true corruption is rejected:
// duplicate grants, duplicate or negative product ids, duplicate or
// non-positive notification seqs.
func (l *Ledger) Restore(snap Snapshot) error {
	st := newState()

	for _, g := range snap.Grants {
		if st.hasRole(g.Account, g.Tag) {
			return fmt.Errorf("restore: duplicate grant for %s/%s", g.Account, g.Tag)
		}
		st.grants = append(st.grants, g)
		set, ok := st.grantSet[g.Account]
		if !ok {
			set = make(map[domain.RoleTag]struct{})
			st.grantSet[g.Account] = set
		}
		set[g.Tag] = struct{}{}
	}

	products := append([]domain.Product(nil), snap.Products...)
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	for i := range products {
		id := products[i].ID
		if id < 0 {
			return fmt.Errorf("restore: negative product id %d", id)
		}
		if _, dup := st.products[id]; dup {
			return fmt.Errorf("restore: duplicate product id %d", id)
		}
		p := cloneProduct(&products[i])
		st.products[id] = &p
		if id >= st.nextID {
			st.nextID = id + 1
		}
	}
	for id := int64(0); id < st.nextID; id++ {
		if _, ok := st.products[id]; !ok {
			l.log.Warn().Int64("product_id", id).Msg("snapshot is missing a journaled product, resuming past the gap")
		}
	}

	for id, bidders := range snap.Bids {
		if _, ok := st.products[id]; !ok {
			l.log.Warn().Int64("product_id", id).Msg("dropping bids for a product missing from the snapshot")
			continue
		}
		st.bids[id] = append([]domain.Account(nil), bidders...)
	}

	notes := append([]domain.Notification(nil), snap.Notifications...)
	sort.Slice(notes, func(i, j int) bool { return notes[i].Seq < notes[j].Seq })
	for i := range notes {
		seq := notes[i].Seq
		if seq <= 0 {
			return fmt.Errorf("restore: non-positive notification seq %d", seq)
		}
		if i > 0 && seq == notes[i-1].Seq {
			return fmt.Errorf("restore: duplicate notification seq %d", seq)
		}
		if want := st.noteSeq + 1; seq != want {
			l.log.Warn().Int64("seq", seq).Int64("expected", want).Msg("notification seq gap in snapshot, resuming past it")
		}
		st.noteSeq = seq
	}
	st.notes = notes

	l.mu.Lock()
	defer l.mu.Unlock()
	l.st = st
	return nil
}
