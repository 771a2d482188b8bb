// Package hub layers typed market-data fan-out on top of package ring.
// One Hub owns exactly one ring.Ring; any number of subscribers register
// a tag filter and a callback, each driven by its own goroutine with its
// own Reader. Subscriber bookkeeping is protected by a mutex that is
// never held across ring I/O — only around the subscriber map itself.
package hub

import (
	"sync"

	"github.com/river-walras/spmc/internal/bufutil"
	"github.com/river-walras/spmc/internal/obslog"
	"github.com/river-walras/spmc/message"
	"github.com/river-walras/spmc/ring"
)

// Callback is invoked once per delivered message whose tag matches the
// subscriber's filter. It runs on that subscriber's own worker
// goroutine; a panic inside Callback is recovered and logged so one bad
// subscriber cannot take down its worker.
type Callback func(tag message.Tag, fields map[string]any)

// subscriber is the Hub's private bookkeeping record for one
// registration. It outlives its worker goroutine's lifetime requirement
// by construction: unsubscribe/StopAll join the worker before erasing
// the entry from subs.
type subscriber struct {
	id         int
	wantedTag  message.Tag
	callback   Callback
	reader     ring.Reader
	running    chan struct{} // closed to signal the worker to stop
	workerDone chan struct{} // closed by the worker when it has exited
}

// Hub owns one Ring and the set of currently registered subscribers.
type Hub struct {
	ring *ring.Ring

	mu            sync.Mutex
	subs          map[int]*subscriber
	nextID        int
	producerTaken bool
}

// New constructs a Hub around a freshly allocated Ring of the given
// capacity (must be a power of two).
func New(capacity int) (*Hub, error) {
	r, err := ring.New(capacity)
	if err != nil {
		return nil, err
	}
	return &Hub{
		ring: r,
		subs: make(map[int]*subscriber),
	}, nil
}

// Subscribe registers cb to be invoked for every future message whose
// tag equals wantedTag, and returns an id usable with Unsubscribe.
// History is not replayed: the new subscriber's reader starts at the
// ring's current writeIdx + 1.
func (h *Hub) Subscribe(wantedTag message.Tag, cb Callback) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	sub := &subscriber{
		id:         id,
		wantedTag:  wantedTag,
		callback:   cb,
		reader:     h.ring.NewReader(),
		running:    make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	h.subs[id] = sub

	go runWorker(sub)

	return id
}

// Unsubscribe stops and joins subscriber id's worker, then removes it
// from the subscriber map. It is idempotent: unsubscribing an id that
// doesn't exist (or was already removed) is a no-op.
//
// The Hub's mutex is held across the join: callbacks must not call back
// into the Hub, or Unsubscribe/Subscribe/StopAll from within a callback
// will deadlock.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	stopAndJoin(sub)
	delete(h.subs, id)
}

// StopAll stops and joins every subscriber's worker and clears the
// subscriber map. Safe to call more than once.
func (h *Hub) StopAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		stopAndJoin(sub)
	}
	h.subs = make(map[int]*subscriber)
}

// SubscriberCount returns the number of currently registered
// subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func stopAndJoin(sub *subscriber) {
	select {
	case <-sub.running:
		// already signaled (defensive; shouldn't happen under mu)
	default:
		close(sub.running)
	}
	<-sub.workerDone
	obslog.DropMessage("unsubscribe", "subscriber "+bufutil.Itoa(sub.id)+" joined")
}
