package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketledger/marketledger/internal/core/domain"
)

type collectSubscriber struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (s *collectSubscriber) HandleNotification(_ context.Context, note domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, note)
	return nil
}

func (s *collectSubscriber) snapshot() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.notes...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDispatcher_DeliversToSubscribers(t *testing.T) {
	sub := &collectSubscriber{}
	d := NewDispatcher(4, zerolog.Nop(), sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.EnqueueBatch([]domain.Notification{
		{Seq: 1, Kind: domain.NoteProductCreated, ProductID: 0, Actor: "0xp"},
		{Seq: 2, Kind: domain.NoteProductPurchased, ProductID: 0, Actor: "0xb"},
		{Seq: 3, Kind: domain.NoteProductCreated, ProductID: 1, Actor: "0xp"},
	})

	waitFor(t, time.Second, func() bool { return len(sub.snapshot()) == 3 })
}

func TestDispatcher_PerProductOrdering(t *testing.T) {
	sub := &collectSubscriber{}
	d := NewDispatcher(4, zerolog.Nop(), sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	const n = 50
	notes := make([]domain.Notification, n)
	for i := range notes {
		notes[i] = domain.Notification{Seq: int64(i) + 1, Kind: domain.NoteShippingRequested, ProductID: 7}
	}
	d.EnqueueBatch(notes)

	waitFor(t, time.Second, func() bool { return len(sub.snapshot()) == n })

	// same product id, same shard: delivery order equals commit order
	got := sub.snapshot()
	for i, note := range got {
		if note.Seq != int64(i)+1 {
			t.Fatalf("delivery %d has seq %d, want %d", i, note.Seq, i+1)
		}
	}
}

func TestDispatcher_ShardIsDeterministic(t *testing.T) {
	d := NewDispatcher(8, zerolog.Nop())

	for id := int64(-1); id < 20; id++ {
		first := d.shardIndex(id)
		for i := 0; i < 10; i++ {
			if got := d.shardIndex(id); got != first {
				t.Fatalf("shard for product %d changed: %d then %d", id, first, got)
			}
		}
		if first < 0 || first >= 8 {
			t.Fatalf("shard for product %d out of range: %d", id, first)
		}
	}
}

func TestDispatcher_SubscriberErrorDoesNotStopDelivery(t *testing.T) {
	failing := SubscriberFunc(func(context.Context, domain.Notification) error {
		return context.DeadlineExceeded
	})
	sub := &collectSubscriber{}
	d := NewDispatcher(1, zerolog.Nop(), failing, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue(domain.Notification{Seq: 1, Kind: domain.NoteBidRejected, ProductID: 3})
	d.Enqueue(domain.Notification{Seq: 2, Kind: domain.NoteBidRejected, ProductID: 3})

	waitFor(t, time.Second, func() bool { return len(sub.snapshot()) == 2 })
}

func TestDispatcher_DefaultWorkerCount(t *testing.T) {
	d := NewDispatcher(0, zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("worker count = %d, want %d", len(d.workers), defaultWorkers)
	}
}
