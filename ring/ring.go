// Package ring implements the session's bounded, sequence-addressed event
// log: a fixed-capacity circular buffer of immutable event handles, the
// single authority for event ordering in a session.
//
// The capacity-masking scheme (power-of-two size, index = seq & (cap-1))
// follows the same approach as the rate-limiter ring buffer this module's
// ambient stack otherwise draws on; unlike that buffer, this one supports
// a single writer with many concurrent readers, so it trades the other's
// lock-free design for a plain sync.RWMutex.
package ring

import (
	"fmt"
	"sync"

	"github.com/cruciblehq/sessionkernel/event"
	"github.com/cruciblehq/sessionkernel/internal/logging"
)

// OverflowFunc is invoked, synchronously and while the ring's write lock
// is held, with the batch of events about to fall out of the valid
// window. It must not call back into the ring that invoked it.
type OverflowFunc func(events []event.Event)

// EventRing is a fixed-capacity circular buffer of event handles,
// addressed by a monotonically increasing write sequence. The zero value
// is not usable; construct with New.
//
// One writer (the session's event loop) calls Push; any number of
// readers may concurrently call Get/Iter/Range via the RWMutex below.
type EventRing struct {
	mu          sync.RWMutex
	log         logging.Logger
	buf         []event.Event
	mask        uint64
	writeSeq    uint64
	flushedSeq  uint64
	overflow    OverflowFunc
	overflowSet bool
}

// Option configures an EventRing at construction time.
type Option func(*EventRing)

// WithLogger attaches a structured logger. The ring stores it but emits
// no log lines itself; overflow-flush failures are logged by the
// callback the caller registers.
func WithLogger(log logging.Logger) Option {
	return func(r *EventRing) { r.log = log }
}

// New creates an EventRing. capacity is rounded up to the next power of
// two (spec requirement); it must be positive.
func New(capacity int, opts ...Option) (*EventRing, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring: capacity must be positive, got %d", capacity)
	}
	cap64 := nextPowerOfTwo(uint64(capacity))
	r := &EventRing{
		log: logging.NoOp(),
		buf: make([]event.Event, cap64),
		mask: cap64 - 1,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// Capacity returns the ring's (power-of-two) capacity.
func (r *EventRing) Capacity() int {
	return int(r.mask + 1)
}

// SetOverflowCallback registers (or replaces) the overflow callback.
// Safe to call more than once; the latest registration wins.
func (r *EventRing) SetOverflowCallback(cb OverflowFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overflow = cb
	r.overflowSet = true
}

// Push appends an event, returning its write sequence. If capacity is
// exceeded, the events newly pushed out of the valid window are handed to
// the overflow callback (if any) before Push returns. Push must not be
// called from more than one goroutine at a time (spec: one writer).
func (r *EventRing) Push(e event.Event) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.writeSeq
	cap64 := r.mask + 1

	var batch []event.Event
	if seq+1 > cap64 {
		dangerEnd := seq - cap64 + 1
		if dangerEnd > r.flushedSeq {
			batch = make([]event.Event, 0, dangerEnd-r.flushedSeq)
			for s := r.flushedSeq; s < dangerEnd; s++ {
				if old := r.buf[s&r.mask]; old != nil {
					batch = append(batch, old)
				}
			}
			r.flushedSeq = dangerEnd
		}
	}

	r.buf[seq&r.mask] = e
	r.writeSeq = seq + 1

	// Invoked while the write lock is held: readers can't observe the new
	// writeSeq (and thus can't see the overwritten slots) until the
	// callback has already run. The callback must not re-enter the ring.
	if len(batch) > 0 && r.overflow != nil {
		r.overflow(batch)
	}

	return seq
}

// Get returns the event at seq if it's still within the valid window.
func (r *EventRing) Get(seq uint64) (event.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.inWindowLocked(seq) {
		return nil, false
	}
	return r.buf[seq&r.mask], true
}

func (r *EventRing) inWindowLocked(seq uint64) bool {
	cap64 := r.mask + 1
	if r.writeSeq < cap64 {
		return seq < r.writeSeq
	}
	return seq >= r.writeSeq-cap64 && seq < r.writeSeq
}

// lowSeqLocked returns the oldest sequence currently in the valid window.
// Callers must hold mu.
func (r *EventRing) lowSeqLocked() uint64 {
	cap64 := r.mask + 1
	if r.writeSeq < cap64 {
		return 0
	}
	return r.writeSeq - cap64
}

// Iter returns every event currently in the valid window, oldest first.
func (r *EventRing) Iter() []event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rangeLocked(r.lowSeqLocked(), r.writeSeq)
}

// Snapshot is an alias for Iter, named for its use as a read-only copy of
// the ring window taken ahead of compaction.
func (r *EventRing) Snapshot() []event.Event {
	return r.Iter()
}

// Range returns events with seq in [lo, hi), intersected with the
// currently valid window, oldest first.
func (r *EventRing) Range(lo, hi uint64) []event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rangeLocked(lo, hi)
}

func (r *EventRing) rangeLocked(lo, hi uint64) []event.Event {
	low := r.lowSeqLocked()
	if lo < low {
		lo = low
	}
	if hi > r.writeSeq {
		hi = r.writeSeq
	}
	if lo >= hi {
		return nil
	}
	out := make([]event.Event, 0, hi-lo)
	for s := lo; s < hi; s++ {
		out = append(out, r.buf[s&r.mask])
	}
	return out
}

// WriteSequence returns the next sequence number Push will assign.
func (r *EventRing) WriteSequence() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writeSeq
}

// FlushedSequence returns the sequence below which every event has been
// handed to the overflow callback (or marked flushed via MarkFlushed);
// the event at the returned sequence itself has not.
func (r *EventRing) FlushedSequence() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flushedSeq
}

// MarkFlushed advances the flushed sequence, e.g. after an external
// writer (the kiln) confirms it has durably persisted events up to seq.
// It never moves flushedSeq backwards.
func (r *EventRing) MarkFlushed(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq > r.flushedSeq {
		r.flushedSeq = seq
	}
}

// Len returns the number of events currently in the valid window.
func (r *EventRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.writeSeq < r.mask+1 {
		return int(r.writeSeq)
	}
	return int(r.mask + 1)
}

// IsEmpty reports whether the ring has never had an event pushed.
func (r *EventRing) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writeSeq == 0
}
