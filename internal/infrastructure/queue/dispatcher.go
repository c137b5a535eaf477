package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketledger/marketledger/internal/api/metrics"
	"github.com/marketledger/marketledger/internal/core/domain"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Subscriber receives committed ledger notifications. Subscriber failures
// are logged and dropped: delivery is best-effort and never required for
// correctness.
type Subscriber interface {
	HandleNotification(ctx context.Context, note domain.Notification) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, note domain.Notification) error

func (f SubscriberFunc) HandleNotification(ctx context.Context, note domain.Notification) error {
	return f(ctx, note)
}

// Dispatcher fans committed notifications out to a fixed set of workers
// using consistent hashing on the product id, guaranteeing per-product
// delivery ordering.
type Dispatcher struct {
	workers     []chan domain.Notification
	subscribers []Subscriber
	log         zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger, subscribers ...Subscriber) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:     make([]chan domain.Notification, numWorkers),
		subscribers: subscribers,
		log:         log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Notification, channelBuffer)
	}
	return d
}

// Start launches the worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue routes one notification to its shard. A full shard drops the
// notification rather than blocking the committing caller.
func (d *Dispatcher) Enqueue(note domain.Notification) {
	i := d.shardIndex(note.ProductID)
	select {
	case d.workers[i] <- note:
		metrics.NotifyQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(len(d.workers[i])))
	default:
		d.log.Warn().
			Int64("seq", note.Seq).
			Int("worker_id", i).
			Msg("notification dropped, worker queue full")
	}
}

// EnqueueBatch routes each notification of a commit in order.
func (d *Dispatcher) EnqueueBatch(notes []domain.Notification) {
	for _, n := range notes {
		d.Enqueue(n)
	}
}

// shardIndex maps a product id deterministically to a worker index.
func (d *Dispatcher) shardIndex(productID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(productID, 10)))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case note, ok := <-ch:
			if !ok {
				return
			}
			metrics.NotifyQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
			d.deliver(ctx, id, note)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, workerID int, note domain.Notification) {
	start := time.Now()
	kind := string(note.Kind)
	for _, sub := range d.subscribers {
		if err := sub.HandleNotification(ctx, note); err != nil {
			kind = "error"
			d.log.Error().Err(err).
				Int64("seq", note.Seq).
				Int("worker_id", workerID).
				Msg("notification delivery failed")
		}
	}
	metrics.NotifyDeliveryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
