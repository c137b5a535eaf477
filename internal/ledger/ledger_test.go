package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/marketledger/marketledger/internal/core/domain"
)

func newTestLedger(opts ...Option) *Ledger {
	return New(zerolog.Nop(), opts...)
}

type captureJournal struct {
	mu      sync.Mutex
	grants  []domain.RoleGrant
	prods   []domain.Product
	bids    map[int64][]domain.Account
	notes   []domain.Notification
	failAll bool
	// failNoteSeq makes SaveNotification fail for exactly that seq,
	// simulating a transient outage during one commit.
	failNoteSeq int64
}

func newCaptureJournal() *captureJournal {
	return &captureJournal{bids: make(map[int64][]domain.Account)}
}

func (j *captureJournal) SaveGrant(_ context.Context, g domain.RoleGrant) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAll {
		return errors.New("journal down")
	}
	j.grants = append(j.grants, g)
	return nil
}

func (j *captureJournal) SaveProduct(_ context.Context, p domain.Product) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAll {
		return errors.New("journal down")
	}
	j.prods = append(j.prods, p)
	return nil
}

func (j *captureJournal) SaveBids(_ context.Context, id int64, bidders []domain.Account) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAll {
		return errors.New("journal down")
	}
	j.bids[id] = append([]domain.Account(nil), bidders...)
	return nil
}

func (j *captureJournal) SaveNotification(_ context.Context, n domain.Notification) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAll || n.Seq == j.failNoteSeq {
		return errors.New("journal down")
	}
	j.notes = append(j.notes, n)
	return nil
}

func TestLedger_Update_Commit(t *testing.T) {
	l := newTestLedger()

	err := l.Update(func(tx *Tx) error {
		if _, err := tx.GrantRole("0xa", domain.RoleProducer); err != nil {
			return err
		}
		p := tx.CreateProduct("Widget", 100, "0xa")
		if p.ID != 0 {
			t.Fatalf("first product id = %d, want 0", p.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if !l.HasRole("0xa", domain.RoleProducer) {
		t.Fatal("grant not committed")
	}
	p, err := l.GetProduct(0)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.Name != "Widget" || p.Price != 100 || p.Status != domain.StatusCreated {
		t.Fatalf("unexpected product: %+v", p)
	}
	if len(p.StatusHistory) != 1 || p.StatusHistory[0].Status != domain.StatusCreated {
		t.Fatalf("unexpected initial history: %+v", p.StatusHistory)
	}
}

func TestLedger_Update_RollsBackOnError(t *testing.T) {
	l := newTestLedger()

	err := l.Update(func(tx *Tx) error {
		tx.CreateProduct("Widget", 100, "0xa")
		if _, err := tx.GrantRole("0xa", domain.RoleProducer); err != nil {
			return err
		}
		tx.Emit(domain.Notification{Kind: domain.NoteProductCreated, ProductID: 0, Actor: "0xa"})
		return domain.ErrInvalidState // fail after three staged writes
	})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected staged error back, got %v", err)
	}

	if _, err := l.GetProduct(0); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatal("product leaked out of a failed transaction")
	}
	if l.HasRole("0xa", domain.RoleProducer) {
		t.Fatal("grant leaked out of a failed transaction")
	}
	if notes := l.NotificationsAfter(0); len(notes) != 0 {
		t.Fatalf("notifications leaked out of a failed transaction: %+v", notes)
	}
}

func TestLedger_Update_RollsBackOnPanic(t *testing.T) {
	l := newTestLedger()

	func() {
		defer func() { _ = recover() }()
		_ = l.Update(func(tx *Tx) error {
			tx.CreateProduct("Widget", 100, "0xa")
			panic("boom")
		})
	}()

	if _, err := l.GetProduct(0); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatal("product leaked out of a panicked transaction")
	}

	// the lock must have been released
	if err := l.Update(func(tx *Tx) error { return nil }); err != nil {
		t.Fatalf("ledger unusable after panic: %v", err)
	}
}

func TestLedger_ConcurrentBuy_ExactlyOneWins(t *testing.T) {
	l := newTestLedger()
	if err := l.Update(func(tx *Tx) error {
		tx.CreateProduct("Widget", 100, "0xprod")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	const buyers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	losers := 0

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		buyer := domain.Account(string(rune('a' + i)))
		go func() {
			defer wg.Done()
			err := l.Update(func(tx *Tx) error {
				p, err := tx.Product(0)
				if err != nil {
					return err
				}
				if p.Status != domain.StatusCreated {
					return domain.ErrInvalidState
				}
				p.Buyer = buyer
				return p.Advance(domain.StatusSold, buyer, tx.Now())
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if errors.Is(err, domain.ErrInvalidState) {
				losers++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if losers != buyers-1 {
		t.Fatalf("losers = %d, want %d", losers, buyers-1)
	}
	p, _ := l.GetProduct(0)
	if p.Status != domain.StatusSold || p.Buyer == "" {
		t.Fatalf("final product: %+v", p)
	}
}

func TestTx_GrantRole_Duplicate(t *testing.T) {
	l := newTestLedger()

	if err := l.Update(func(tx *Tx) error {
		_, err := tx.GrantRole("0xa", domain.RoleBuyer)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	err := l.Update(func(tx *Tx) error {
		_, err := tx.GrantRole("0xa", domain.RoleBuyer)
		return err
	})
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	// a different tag on the same account is a distinct grant
	if err := l.Update(func(tx *Tx) error {
		_, err := tx.GrantRole("0xa", domain.RoleProducer)
		return err
	}); err != nil {
		t.Fatalf("second tag on same account failed: %v", err)
	}
	if got := l.RolesOf("0xa"); len(got) != 2 || got[0] != domain.RoleBuyer || got[1] != domain.RoleProducer {
		t.Fatalf("RolesOf = %v", got)
	}
}

func TestTx_AppendBid_Idempotent(t *testing.T) {
	l := newTestLedger()
	_ = l.Update(func(tx *Tx) error {
		tx.CreateProduct("Widget", 100, "0xprod")
		return nil
	})

	for i := 0; i < 3; i++ {
		var appended bool
		_ = l.Update(func(tx *Tx) error {
			appended = tx.AppendBid(0, "0xship")
			return nil
		})
		if want := i == 0; appended != want {
			t.Fatalf("attempt %d: appended = %v, want %v", i, appended, want)
		}
	}

	if bids := l.Bids(0); len(bids) != 1 || bids[0] != "0xship" {
		t.Fatalf("bids = %v", bids)
	}
}

func TestTx_RemoveBid_PreservesOrder(t *testing.T) {
	l := newTestLedger()
	_ = l.Update(func(tx *Tx) error {
		tx.CreateProduct("Widget", 100, "0xprod")
		tx.AppendBid(0, "0xs1")
		tx.AppendBid(0, "0xs2")
		tx.AppendBid(0, "0xs3")
		return nil
	})

	var removed bool
	_ = l.Update(func(tx *Tx) error {
		removed = tx.RemoveBid(0, "0xs2")
		return nil
	})
	if !removed {
		t.Fatal("RemoveBid returned false for an existing bidder")
	}

	bids := l.Bids(0)
	if len(bids) != 2 || bids[0] != "0xs1" || bids[1] != "0xs3" {
		t.Fatalf("bids after removal = %v", bids)
	}

	_ = l.Update(func(tx *Tx) error {
		removed = tx.RemoveBid(0, "0xnever")
		return nil
	})
	if removed {
		t.Fatal("RemoveBid returned true for an unknown bidder")
	}
}

func TestTx_Emit_SequenceIsDense(t *testing.T) {
	l := newTestLedger()

	for i := 0; i < 3; i++ {
		_ = l.Update(func(tx *Tx) error {
			tx.Emit(domain.Notification{Kind: domain.NoteRoleRegistered, ProductID: domain.NoProduct, Actor: "0xa"})
			return nil
		})
	}
	// a failed transaction must not consume sequence numbers
	_ = l.Update(func(tx *Tx) error {
		tx.Emit(domain.Notification{Kind: domain.NoteRoleRegistered, ProductID: domain.NoProduct, Actor: "0xa"})
		return errors.New("nope")
	})
	_ = l.Update(func(tx *Tx) error {
		tx.Emit(domain.Notification{Kind: domain.NoteRoleRegistered, ProductID: domain.NoProduct, Actor: "0xa"})
		return nil
	})

	notes := l.NotificationsAfter(0)
	if len(notes) != 4 {
		t.Fatalf("notification count = %d, want 4", len(notes))
	}
	for i, n := range notes {
		if n.Seq != int64(i)+1 {
			t.Fatalf("seq at %d = %d, want %d", i, n.Seq, i+1)
		}
		if n.At.IsZero() {
			t.Fatalf("notification %d has zero timestamp", n.Seq)
		}
	}

	tail := l.NotificationsAfter(2)
	if len(tail) != 2 || tail[0].Seq != 3 {
		t.Fatalf("NotificationsAfter(2) = %+v", tail)
	}
}

func TestLedger_CommitHook(t *testing.T) {
	var got [][]domain.Notification
	l := newTestLedger(WithCommitHook(func(notes []domain.Notification) {
		got = append(got, notes)
	}))

	_ = l.Update(func(tx *Tx) error {
		tx.CreateProduct("Widget", 100, "0xprod")
		tx.Emit(domain.Notification{Kind: domain.NoteProductCreated, ProductID: 0, Actor: "0xprod"})
		return nil
	})
	// failed commits and note-free commits must not fire the hook
	_ = l.Update(func(tx *Tx) error {
		tx.Emit(domain.Notification{Kind: domain.NoteProductCreated, ProductID: 0, Actor: "0xprod"})
		return errors.New("nope")
	})
	_ = l.Update(func(tx *Tx) error { return nil })

	if len(got) != 1 || len(got[0]) != 1 || got[0][0].Kind != domain.NoteProductCreated {
		t.Fatalf("hook invocations = %+v", got)
	}
}

func TestLedger_CommitHook_BatchesArriveInCommitOrder(t *testing.T) {
	var seqs []int64
	l := newTestLedger(WithCommitHook(func(notes []domain.Notification) {
		// the hook runs under the commit lock, so no extra synchronisation
		for _, n := range notes {
			seqs = append(seqs, n.Seq)
		}
	}))

	const commits = 32
	var wg sync.WaitGroup
	for i := 0; i < commits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Update(func(tx *Tx) error {
				tx.Emit(domain.Notification{Kind: domain.NoteShippingRequested, ProductID: 0, Actor: "0xs"})
				return nil
			})
		}()
	}
	wg.Wait()

	if len(seqs) != commits {
		t.Fatalf("hook saw %d notifications, want %d", len(seqs), commits)
	}
	for i, seq := range seqs {
		if seq != int64(i)+1 {
			t.Fatalf("hook order broken at %d: seq %d", i, seq)
		}
	}
}

func TestLedger_Journal_ReceivesCommit(t *testing.T) {
	j := newCaptureJournal()
	l := newTestLedger(WithJournal(j))

	_ = l.Update(func(tx *Tx) error {
		if _, err := tx.GrantRole("0xa", domain.RoleShipper); err != nil {
			return err
		}
		tx.CreateProduct("Widget", 100, "0xa")
		tx.AppendBid(0, "0xa")
		tx.Emit(domain.Notification{Kind: domain.NoteShippingRequested, ProductID: 0, Actor: "0xa"})
		return nil
	})

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.grants) != 1 || len(j.prods) != 1 || len(j.notes) != 1 {
		t.Fatalf("journal writes: grants=%d prods=%d notes=%d", len(j.grants), len(j.prods), len(j.notes))
	}
	if got := j.bids[0]; len(got) != 1 || got[0] != "0xa" {
		t.Fatalf("journaled bids = %v", got)
	}
}

func TestLedger_JournalFailure_IsNotAnOperationFailure(t *testing.T) {
	j := newCaptureJournal()
	j.failAll = true
	l := newTestLedger(WithJournal(j))

	err := l.Update(func(tx *Tx) error {
		tx.CreateProduct("Widget", 100, "0xa")
		return nil
	})
	if err != nil {
		t.Fatalf("journal failure surfaced to the caller: %v", err)
	}
	if _, err := l.GetProduct(0); err != nil {
		t.Fatalf("commit lost on journal failure: %v", err)
	}
}

func TestLedger_SnapshotRestore_RoundTrip(t *testing.T) {
	l := newTestLedger()
	_ = l.Update(func(tx *Tx) error {
		_, _ = tx.GrantRole("0xp", domain.RoleProducer)
		_, _ = tx.GrantRole("0xs", domain.RoleShipper)
		p := tx.CreateProduct("Widget", 100, "0xp")
		tx.CreateProduct("Gadget", 250, "0xp")
		tx.AppendBid(p.ID, "0xs")
		tx.Emit(domain.Notification{Kind: domain.NoteProductCreated, ProductID: p.ID, Actor: "0xp"})
		return nil
	})

	restored := newTestLedger()
	if err := restored.Restore(l.Snapshot()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if !restored.HasRole("0xp", domain.RoleProducer) || !restored.HasRole("0xs", domain.RoleShipper) {
		t.Fatal("grants lost in round trip")
	}
	if bids := restored.Bids(0); len(bids) != 1 || bids[0] != "0xs" {
		t.Fatalf("bids lost in round trip: %v", bids)
	}
	if notes := restored.NotificationsAfter(0); len(notes) != 1 || notes[0].Seq != 1 {
		t.Fatalf("notes lost in round trip: %+v", notes)
	}

	// id allocation resumes after the highest restored id
	_ = restored.Update(func(tx *Tx) error {
		p := tx.CreateProduct("Doohickey", 10, "0xp")
		if p.ID != 2 {
			t.Fatalf("id after restore = %d, want 2", p.ID)
		}
		return nil
	})
}

func TestLedger_Restore_RejectsCorruptSnapshots(t *testing.T) {
	base := domain.Product{ID: 0, Name: "Widget", Price: 1, Producer: "0xp", Status: domain.StatusCreated}

	cases := []struct {
		name string
		snap Snapshot
	}{
		{"duplicate grant", Snapshot{
			Grants: []domain.RoleGrant{
				{Account: "0xa", Tag: domain.RoleBuyer},
				{Account: "0xa", Tag: domain.RoleBuyer},
			},
		}},
		{"duplicate product id", Snapshot{
			Products: []domain.Product{base, {ID: 0, Name: "Gadget", Price: 1, Producer: "0xp", Status: domain.StatusCreated}},
		}},
		{"negative product id", Snapshot{
			Products: []domain.Product{{ID: -1, Name: "Gadget", Price: 1, Producer: "0xp", Status: domain.StatusCreated}},
		}},
		{"duplicate notification seq", Snapshot{
			Notifications: []domain.Notification{
				{Seq: 1, Kind: domain.NoteProductCreated},
				{Seq: 1, Kind: domain.NoteProductPurchased},
			},
		}},
		{"non-positive notification seq", Snapshot{
			Notifications: []domain.Notification{{Seq: 0, Kind: domain.NoteProductCreated}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := newTestLedger().Restore(tc.snap); err == nil {
				t.Fatal("Restore accepted a corrupt snapshot")
			}
		})
	}
}

func TestLedger_Restore_ToleratesJournalGaps(t *testing.T) {
	mk := func(id int64) domain.Product {
		return domain.Product{ID: id, Name: "Widget", Price: 1, Producer: "0xp", Status: domain.StatusCreated}
	}
	l := newTestLedger()

	// product 1, notification seq 2 and the product behind the stray bid
	// list all lost to dropped journal writes
	err := l.Restore(Snapshot{
		Products: []domain.Product{mk(0), mk(2)},
		Bids:     map[int64][]domain.Account{7: {"0xs"}},
		Notifications: []domain.Notification{
			{Seq: 1, Kind: domain.NoteProductCreated, ProductID: 0},
			{Seq: 3, Kind: domain.NoteProductCreated, ProductID: 2},
		},
	})
	if err != nil {
		t.Fatalf("Restore rejected a gappy snapshot: %v", err)
	}

	if _, err := l.GetProduct(1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("missing product 1: got %v", err)
	}
	if got := l.Products(nil); len(got) != 2 || got[0].ID != 0 || got[1].ID != 2 {
		t.Fatalf("Products = %+v", got)
	}
	if bids := l.Bids(7); len(bids) != 0 {
		t.Fatalf("bids for a missing product survived: %v", bids)
	}

	// allocation resumes past the gaps, never inside them
	_ = l.Update(func(tx *Tx) error {
		if p := tx.CreateProduct("Gadget", 1, "0xp"); p.ID != 3 {
			t.Fatalf("id after gappy restore = %d, want 3", p.ID)
		}
		n := tx.Emit(domain.Notification{Kind: domain.NoteProductCreated, ProductID: 3, Actor: "0xp"})
		if n.Seq != 4 {
			t.Fatalf("seq after gappy restore = %d, want 4", n.Seq)
		}
		return nil
	})
}

func TestLedger_BootSurvivesDroppedJournalWrite(t *testing.T) {
	j := newCaptureJournal()
	j.failNoteSeq = 2
	l := newTestLedger(WithJournal(j))

	for i := 0; i < 3; i++ {
		if err := l.Update(func(tx *Tx) error {
			tx.Emit(domain.Notification{Kind: domain.NoteRoleRegistered, ProductID: domain.NoProduct, Actor: "0xa"})
			return nil
		}); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	j.mu.Lock()
	journaled := append([]domain.Notification(nil), j.notes...)
	j.mu.Unlock()
	if len(journaled) != 2 {
		t.Fatalf("journal holds %d notes, want 2 (seq 2 dropped)", len(journaled))
	}

	// next boot loads what the journal managed to keep
	rebooted := newTestLedger()
	if err := rebooted.Restore(Snapshot{Notifications: journaled}); err != nil {
		t.Fatalf("reboot after a dropped journal write failed: %v", err)
	}
	if notes := rebooted.NotificationsAfter(0); len(notes) != 2 || notes[1].Seq != 3 {
		t.Fatalf("restored notes = %+v", notes)
	}

	_ = rebooted.Update(func(tx *Tx) error {
		if n := tx.Emit(domain.Notification{Kind: domain.NoteRoleRegistered, ProductID: domain.NoProduct, Actor: "0xa"}); n.Seq != 4 {
			t.Fatalf("seq after reboot = %d, want 4", n.Seq)
		}
		return nil
	})
}
