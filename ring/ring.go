// Package ring implements a lock-free single-producer/multiple-consumer
// (SPMC) broadcast ring. One producer publishes messages; any number of
// independent Readers observe the stream at their own pace. A reader
// that falls behind by more than the ring's capacity silently drops the
// skipped messages — there is no back-pressure and no replay.
//
// Producer and consumer hot fields each get their own cache line so
// false sharing cannot throttle either side. Push never fails and Read
// never dequeues — every slot is broadcast, not consumed.
package ring

import (
	"sync/atomic"

	"github.com/river-walras/spmc/message"
)

// slot is one ring element: a publication sequence number plus the
// message most recently written at this position. Padded to 128 bytes
// (two 64-byte cache lines) so adjacent slots never share a line.
type slot struct {
	seq     uint64
	payload message.Message
	_       [32]byte // pad slot out to a cache-line multiple (128 bytes)
}

// Ring is a fixed-capacity, power-of-two broadcast buffer. Capacity must
// be a power of two so `idx % capacity` lowers to a bitmask.
type Ring struct {
	_        [64]byte // isolate writeIdx from whatever precedes the Ring in memory
	writeIdx uint64   // monotonic publish counter; producer-owned only
	_        [56]byte // pad writeIdx out to its own 128-byte region

	mask uint64
	buf  []slot
}

// errCapacity reports a non-power-of-two or non-positive capacity.
type errCapacity int

func (e errCapacity) Error() string {
	return "ring: capacity must be a positive power of two"
}

// New allocates a Ring with the given capacity, which must be a positive
// power of two.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, errCapacity(capacity)
	}
	return &Ring{
		mask: uint64(capacity - 1),
		buf:  make([]slot, capacity),
	}, nil
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Push publishes val. Called by exactly one producer thread; concurrent
// callers corrupt the ring. This is not enforced here — see hub.Producer
// for the single-acquire guard that keeps it true in practice.
//
// Push never blocks and never fails.
func (r *Ring) Push(val *message.Message) {
	newSeq := r.writeIdx + 1
	s := &r.buf[newSeq&r.mask]

	s.payload = *val
	atomic.StoreUint64(&s.seq, newSeq) // publication fence (release)
	atomic.StoreUint64(&r.writeIdx, newSeq)
}

// WriteIdx returns the most recently published sequence number. Used by
// Reader construction to learn the initial cursor.
func (r *Ring) WriteIdx() uint64 {
	return atomic.LoadUint64(&r.writeIdx)
}

// NewReader returns a Reader positioned to observe only future messages
// (sequence > the ring's current writeIdx). History is never replayed to
// a newly constructed Reader.
func (r *Ring) NewReader() Reader {
	return Reader{r: r, nextIdx: atomic.LoadUint64(&r.writeIdx) + 1}
}

// Reader is a small, by-value cursor over one Ring, owned by exactly one
// consumer goroutine. It is cheap to copy, not thread-safe across
// goroutines, and carries no storage beyond a pointer and a cursor.
type Reader struct {
	r       *Ring
	nextIdx uint64
}

// Valid reports whether this Reader is bound to a Ring.
func (rd Reader) Valid() bool { return rd.r != nil }

// Read returns the next available message, or false if none is ready
// yet. If the producer has lapped this reader, Read does not jump
// straight to the producer's current position: it advances only to
// whatever sequence currently occupies the reader's own next slot,
// which after a multi-lap gap is itself some more recent publication
// than the one the reader was waiting for, not necessarily the latest.
// The messages in between are dropped, with no signal to the caller
// beyond the gap in sequence numbers; repeated calls to Read converge
// on the producer's current position one slot at a time.
//
// Read re-checks seq after copying the payload (a "sequence sandwich")
// and discards the result if the producer overwrote the slot mid-copy,
// rather than relying solely on a later tag comparison to reject a
// torn-but-matching-tag payload.
func (rd *Reader) Read() (message.Message, bool) {
	s := &rd.r.buf[rd.nextIdx&rd.r.mask]

	observed := atomic.LoadUint64(&s.seq)
	if int64(observed-rd.nextIdx) < 0 {
		return message.Message{}, false // nothing new yet
	}

	local := s.payload // copy before the sandwich re-check

	if atomic.LoadUint64(&s.seq) != observed {
		return message.Message{}, false // producer overwrote mid-copy; try again next call
	}

	rd.nextIdx = observed + 1
	return local, true
}

// ReadLast repeatedly reads until empty and returns the last non-empty
// value observed, for consumers that only care about the newest sample.
func (rd *Reader) ReadLast() (message.Message, bool) {
	var last message.Message
	ok := false
	for {
		m, got := rd.Read()
		if !got {
			return last, ok
		}
		last, ok = m, true
	}
}
