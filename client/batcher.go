package client

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultFlushInterval is how often the buffer is drained into one
// submission.
const DefaultFlushInterval = 30 * time.Second

// LocalStats is the optimistic view shown while batches are in flight.
type LocalStats struct {
	Global  int64
	User    int64
	Country int64
	Pending int64
}

// Batcher accumulates local click events and flushes them as one aggregated
// submission per interval. Clicks never wait on the network: Click only
// touches atomics, and the flush loop runs on its own goroutine.
//
// Delivery is at-most-once: a batch that fails to submit is logged and
// dropped, never re-added to the buffer.
type Batcher struct {
	client   *Client
	interval time.Duration

	// key identifies this batcher instance for presence heartbeats.
	key string

	pending      int64
	localGlobal  int64
	localUser    int64
	localCountry int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBatcher(client *Client, interval time.Duration) *Batcher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	batcher := &Batcher{
		client:   client,
		interval: interval,
		key:      uuid.NewString(),
		cancel:   cancel,
	}

	batcher.wg.Add(1)
	go batcher.run(ctx)
	return batcher
}

// Click records one click: the buffer and the optimistic totals update
// immediately, without any network round-trip.
func (b *Batcher) Click() {
	atomic.AddInt64(&b.pending, 1)
	atomic.AddInt64(&b.localGlobal, 1)
	atomic.AddInt64(&b.localUser, 1)
	atomic.AddInt64(&b.localCountry, 1)
}

// LocalStats returns the optimistic totals and the not-yet-flushed amount.
func (b *Batcher) LocalStats() LocalStats {
	return LocalStats{
		Global:  atomic.LoadInt64(&b.localGlobal),
		User:    atomic.LoadInt64(&b.localUser),
		Country: atomic.LoadInt64(&b.localCountry),
		Pending: atomic.LoadInt64(&b.pending),
	}
}

// Reconcile overwrites the optimistic totals with server-confirmed values,
// typically after a stats poll.
func (b *Batcher) Reconcile(global, user, country int64) {
	atomic.StoreInt64(&b.localGlobal, global)
	atomic.StoreInt64(&b.localUser, user)
	atomic.StoreInt64(&b.localCountry, country)
}

// Stop halts the flush loop and makes one final best-effort flush of
// whatever is still buffered.
func (b *Batcher) Stop() {
	b.cancel()
	b.wg.Wait()
	b.flush(context.Background())
}

func (b *Batcher) run(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.flush(ctx)
			b.heartbeat(ctx)
		}
	}
}

// flush atomically takes the buffered count and submits it as a single
// batch. The swap makes the read-and-reset indivisible against concurrent
// clicks, so no click is dropped or double-counted by the buffer itself.
func (b *Batcher) flush(ctx context.Context) {
	count := atomic.SwapInt64(&b.pending, 0)
	if count <= 0 {
		return
	}

	if _, err := b.client.SubmitBatch(ctx, count); err != nil {
		log.Printf("Batch of %d clicks lost, sync failed: %v", count, err)
	}
}

func (b *Batcher) heartbeat(ctx context.Context) {
	if _, err := b.client.Heartbeat(ctx, b.key); err != nil {
		log.Printf("Heartbeat failed: %v", err)
	}
}
