// Package bus implements the broadcast queue: a bounded
// ring of PublishEnvelope values shared by one producer and many
// consumers, each tracked by an independent Cursor.
package bus

import (
	"container/ring"
	"sync"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/message"
)

// Bus is a capacity-bounded, single-producer/many-consumer broadcast
// queue. The newest Capacity items are retained; older ones are evicted.
// Slow subscribers are never blocked by publishers — they are resynced to
// the tail and told how many items they missed.
type Bus struct {
	mu       sync.Mutex
	capacity int
	log      zerolog.Logger

	// seq is the sequence number of the next item to be published.
	// Items are stored at r.Value keyed implicitly by position in the
	// ring; slot carries the absolute sequence number so cursors can
	// compute lag.
	seq    int64
	oldest int64 // sequence number of the oldest retained item
	head   *ring.Ring
	count  int // number of live slots currently populated

	subscribers int
	closed      bool
	notify      chan struct{} // closed and replaced on every publish/close
}

type slot struct {
	seq int64
	pe  message.PublishEnvelope
}

// New creates a Bus with the given ring capacity (must be >= 1).
func New(capacity int, log zerolog.Logger) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	b := &Bus{
		capacity: capacity,
		head:     ring.New(capacity),
		log:      log,
		notify:   make(chan struct{}),
	}
	return b
}

// Cursor is a per-subscriber position in the bus. It is a plain value, not
// a back-reference, and is safe to copy.
type Cursor struct {
	next int64
}

// Subscribe atomically joins the bus. The returned cursor begins at the
// next item to be published; it never observes items already on the ring
// at join time.
func (b *Bus) Subscribe() Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers++
	return Cursor{next: b.seq}
}

// Unsubscribe leaves the bus, decrementing the live-subscriber count used
// for Publish's best-effort reporting.
func (b *Bus) Unsubscribe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers > 0 {
		b.subscribers--
	}
}

// Publish enqueues pe and returns the number of live subscribers observed
// at enqueue time. Succeeds even with zero subscribers.
func (b *Bus) Publish(pe message.PublishEnvelope) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head.Value = slot{seq: b.seq, pe: pe}
	b.head = b.head.Next()
	b.seq++
	if b.count < b.capacity {
		b.count++
	} else {
		b.oldest++
	}
	n := b.subscribers
	close(b.notify)
	b.notify = make(chan struct{})
	return n
}

// Len reports approximate queue occupancy for reporting purposes.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Result is the outcome of a Recv call.
type Result struct {
	PE     message.PublishEnvelope
	Lagged int  // > 0 if the consumer skipped this many items to resync
	Closed bool // true if the bus was closed; PE and Lagged are invalid
}

// Recv blocks until an item is available for cur, the bus is closed, or
// done fires. On success it returns the next item and an advanced cursor.
// If cur lagged behind the oldest retained item, it resynchronizes to the
// tail and reports how many items were skipped.
func (b *Bus) Recv(cur Cursor, done <-chan struct{}) (Result, Cursor) {
	b.mu.Lock()
	for {
		if b.closed {
			b.mu.Unlock()
			return Result{Closed: true}, cur
		}
		if cur.next < b.oldest {
			skipped := b.seq - cur.next
			cur.next = b.seq
			b.mu.Unlock()
			return Result{Lagged: int(skipped)}, cur
		}
		if cur.next < b.seq {
			pe, ok := b.at(cur.next)
			b.mu.Unlock()
			if !ok {
				// Raced with eviction between the lag check and the
				// read; report lag and let the caller retry.
				return Result{Lagged: 1}, Cursor{next: cur.next + 1}
			}
			return Result{PE: pe}, Cursor{next: cur.next + 1}
		}

		// Nothing new yet; wait for a publish, a close, or cancellation.
		notify := b.notify
		b.mu.Unlock()
		select {
		case <-notify:
		case <-done:
			return Result{Closed: true}, cur
		}
		b.mu.Lock()
	}
}

// at returns the envelope stored at absolute sequence seq, if still
// retained. Caller must hold b.mu.
func (b *Bus) at(seq int64) (message.PublishEnvelope, bool) {
	if seq < b.oldest || seq >= b.seq {
		return message.PublishEnvelope{}, false
	}
	// Walk back from head: head points at the next write slot, i.e. one
	// past the most recently written (b.seq-1). The item at absolute
	// sequence `seq` is (b.seq-1-seq) steps behind the most recent.
	back := int(b.seq - 1 - seq)
	r := b.head.Move(-1 - back)
	s, ok := r.Value.(slot)
	if !ok || s.seq != seq {
		return message.PublishEnvelope{}, false
	}
	return s.pe, true
}

// Close shuts the bus down; all blocked and future Recv calls return
// Closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}
