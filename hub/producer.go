package hub

import (
	"errors"

	"github.com/river-walras/spmc/message"
)

// ErrProducerTaken is returned by Hub.Producer on every call after the
// first. Exactly one Producer can ever be obtained from a Hub; holding a
// *Producer is the only proof the ring's single-writer invariant holds,
// since the ring itself has no way to detect a second concurrent writer.
var ErrProducerTaken = errors.New("hub: producer already obtained")

// Producer is the thin façade an external injector uses to deposit
// values into the Hub's ring. It has no state of its own beyond a
// pointer back to the Hub's ring; all synchronization is the ring's
// single-writer discipline.
type Producer struct {
	ring interface {
		Push(*message.Message)
	}
}

// Producer returns the Hub's single Producer handle. Calling it more
// than once returns ErrProducerTaken — the caller that wins is the only
// one allowed to publish, and must itself serialize its own calls to Add
// if it is used from more than one goroutine (the ring still assumes,
// and does not enforce, a single writer).
func (h *Hub) Producer() (*Producer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.producerTaken {
		return nil, ErrProducerTaken
	}
	h.producerTaken = true
	return &Producer{ring: h.ring}, nil
}

// Add publishes msg. Never blocks, never fails.
func (p *Producer) Add(msg message.Message) {
	p.ring.Push(&msg)
}

// AddKline publishes a Kline variant.
func (p *Producer) AddKline(d message.KlineData) {
	m := message.NewKline(d)
	p.ring.Push(&m)
}

// AddTrade publishes a Trade variant.
func (p *Producer) AddTrade(d message.TradeData) {
	m := message.NewTrade(d)
	p.ring.Push(&m)
}

// AddBookL1 publishes a BookL1 variant.
func (p *Producer) AddBookL1(d message.BookL1Data) {
	m := message.NewBookL1(d)
	p.ring.Push(&m)
}

// AddTradeBatch publishes a sequence of Trade variants in order. Useful
// for an injector that decodes a batch of records (e.g. a REST
// backfill) and wants to push them all without interleaving with other
// producer calls.
func (p *Producer) AddTradeBatch(ds []message.TradeData) {
	for i := range ds {
		p.AddTrade(ds[i])
	}
}

// AddKlineBatch publishes a sequence of Kline variants in order.
func (p *Producer) AddKlineBatch(ds []message.KlineData) {
	for i := range ds {
		p.AddKline(ds[i])
	}
}

// AddBookL1Batch publishes a sequence of BookL1 variants in order.
func (p *Producer) AddBookL1Batch(ds []message.BookL1Data) {
	for i := range ds {
		p.AddBookL1(ds[i])
	}
}
