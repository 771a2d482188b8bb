// ring_test.go — correctness validation for the SPMC broadcast ring:
// constructor validation, basic publish/observe, wraparound, sequence
// monotonicity, no duplication, the drop bound on lap, and
// subscribe-future-only.
package ring_test

import (
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/river-walras/spmc/message"
	"github.com/river-walras/spmc/ring"
)

// seededPrice derives a reproducible pseudo-random price from seed so
// stress tests get varied-looking data without a non-deterministic RNG:
// the same seed always produces the same sequence of prices, which
// keeps a failing run reproducible.
func seededPrice(seed byte) float64 {
	sum := sha3.Sum256([]byte{seed})
	raw := uint64(sum[0])<<8 | uint64(sum[1])
	return 10000 + float64(raw%50000)/100
}

func tradeAt(i int) message.Message {
	return message.NewTrade(message.TradeData{
		Timestamp: int64(i),
		Price:     50000 + float64(i%100),
		Quantity:  1,
	})
}

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	for _, bad := range []int{0, -1, 3, 100, 513} {
		if _, err := ring.New(bad); err == nil {
			t.Fatalf("New(%d): expected error, got nil", bad)
		}
	}
}

func TestNewAcceptsPowerOfTwo(t *testing.T) {
	r, err := ring.New(512)
	if err != nil {
		t.Fatalf("New(512): %v", err)
	}
	if r.Cap() != 512 {
		t.Fatalf("Cap() = %d, want 512", r.Cap())
	}
}

func TestReadEmptyReturnsFalse(t *testing.T) {
	r, _ := ring.New(8)
	rd := r.NewReader()
	if _, ok := rd.Read(); ok {
		t.Fatal("Read() on empty ring returned ok=true")
	}
}

// TestSequenceMonotonicity checks that successive Read() calls return
// strictly increasing sequences. All 1000 pushes land before the first
// Read, so the ring has 1024 slots to hold them all without lapping.
func TestSequenceMonotonicity(t *testing.T) {
	r, _ := ring.New(1024)
	rd := r.NewReader()

	for i := 0; i < 1000; i++ {
		m := tradeAt(i)
		r.Push(&m)
	}

	var last int64 = -1
	count := 0
	for {
		m, ok := rd.Read()
		if !ok {
			break
		}
		td, _ := m.AsTrade()
		if td.Timestamp <= last {
			t.Fatalf("non-monotonic: got %d after %d", td.Timestamp, last)
		}
		last = td.Timestamp
		count++
	}
	if count != 1000 {
		t.Fatalf("delivered %d, want 1000 (no drops expected at this rate)", count)
	}
}

// TestNoDuplication checks that no published message is ever delivered twice.
func TestNoDuplication(t *testing.T) {
	r, _ := ring.New(512)
	rd := r.NewReader()

	for i := 0; i < 2000; i++ {
		m := tradeAt(i)
		r.Push(&m)
	}

	seen := make(map[int64]bool)
	for {
		m, ok := rd.Read()
		if !ok {
			break
		}
		td, _ := m.AsTrade()
		if seen[td.Timestamp] {
			t.Fatalf("duplicate delivery of timestamp %d", td.Timestamp)
		}
		seen[td.Timestamp] = true
	}
}

// TestDropOnLap checks that a reader which never reads until the
// producer has lapped it several times sees the drop, then catches up
// and eventually reaches the producer's current position.
//
// Catch-up is not an instant jump to the newest value: each successful
// Read only advances to whatever sequence currently occupies the
// reader's own next slot, which after a multi-lap gap is itself an
// older publication, not the latest one. So a lapped reader delivers a
// short run of its most recent publications (one per remaining Read
// call) before the sequence check reports "nothing new" again — it
// does not deliver everything that was published, and it does not
// resync in a single call either.
func TestDropOnLap(t *testing.T) {
	const capacity = 64
	r, _ := ring.New(capacity)
	rd := r.NewReader()

	total := capacity*3 + 5
	for i := 0; i < total; i++ {
		m := tradeAt(i)
		r.Push(&m)
	}

	delivered := 0
	var last int64 = -1
	for {
		m, ok := rd.Read()
		if !ok {
			break
		}
		td, _ := m.AsTrade()
		last = td.Timestamp
		delivered++
	}

	if delivered == 0 {
		t.Fatal("expected at least one message after lapping")
	}
	if delivered >= total {
		t.Fatalf("delivered %d of %d pushed; lapping should have dropped some", delivered, total)
	}
	if last != int64(total-1) {
		t.Fatalf("last delivered message = %d, want %d (catch-up must eventually reach the latest publication)", last, total-1)
	}
}

// TestSubscribeFutureOnly checks that a reader created after k messages
// never observes sequence <= k.
func TestSubscribeFutureOnly(t *testing.T) {
	r, _ := ring.New(512)

	for i := 0; i < 500; i++ {
		m := tradeAt(i)
		r.Push(&m)
	}

	rd := r.NewReader()

	for i := 500; i < 1000; i++ {
		m := tradeAt(i)
		r.Push(&m)
	}

	count := 0
	for {
		m, ok := rd.Read()
		if !ok {
			break
		}
		td, _ := m.AsTrade()
		if td.Timestamp < 500 {
			t.Fatalf("late subscriber observed pre-subscription message %d", td.Timestamp)
		}
		count++
	}
	if count != 500 {
		t.Fatalf("delivered %d messages, want 500", count)
	}
}

// TestReadLastSkipsToNewest exercises the ReadLast convenience that
// reads until empty and returns the most recently published value.
func TestReadLastSkipsToNewest(t *testing.T) {
	r, _ := ring.New(512)
	rd := r.NewReader()

	for i := 0; i < 10; i++ {
		m := tradeAt(i)
		r.Push(&m)
	}

	m, ok := rd.ReadLast()
	if !ok {
		t.Fatal("ReadLast: expected a value")
	}
	td, _ := m.AsTrade()
	if td.Timestamp != 9 {
		t.Fatalf("ReadLast = %d, want 9", td.Timestamp)
	}
	if _, ok := rd.Read(); ok {
		t.Fatal("expected no further messages after ReadLast drained the ring")
	}
}

// TestSeededFixtureIsReproducible exercises the fixture generator used
// by TestMultiReaderWithSeededPrices: the same seed byte must always
// reproduce the same price.
func TestSeededFixtureIsReproducible(t *testing.T) {
	a := seededPrice(7)
	b := seededPrice(7)
	if a != b {
		t.Fatalf("seededPrice(7) = %v then %v, want identical", a, b)
	}
	if seededPrice(7) == seededPrice(8) {
		t.Fatal("different seeds produced the same price (suspiciously weak fixture)")
	}
}

// TestMultiReaderWithSeededPrices exercises fan-out with varied,
// reproducible price data rather than a monotonic counter, closer to
// what a real multi-symbol feed looks like.
func TestMultiReaderWithSeededPrices(t *testing.T) {
	r, _ := ring.New(256)
	readers := []ring.Reader{r.NewReader(), r.NewReader(), r.NewReader()}

	const n = 200
	for i := 0; i < n; i++ {
		var td message.TradeData
		td.Timestamp = int64(i)
		td.Price = seededPrice(byte(i))
		td.Quantity = 1
		m := message.NewTrade(td)
		r.Push(&m)
	}

	for ri := range readers {
		count := 0
		for {
			_, ok := readers[ri].Read()
			if !ok {
				break
			}
			count++
		}
		if count != n {
			t.Fatalf("reader %d delivered %d, want %d", ri, count, n)
		}
	}
}
