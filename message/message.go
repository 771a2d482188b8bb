// Package message defines the tagged union of market-data records that
// flow through the ring and the hub. Each variant is a plain, fixed-size
// record so a Message can be copied by value in and out of a ring slot
// with no allocation and no indirection.
package message

import "unsafe"

// Tag identifies which variant a Message currently holds. Values are
// stable and append-only: renumbering is a breaking change to every
// subscriber that filters by tag.
type Tag uint8

const (
	Kline   Tag = 0
	Trade   Tag = 1
	BookL1  Tag = 2
	numTags     = 3
)

func (t Tag) String() string {
	if t >= numTags {
		return "unknown"
	}
	switch t {
	case Kline:
		return "kline"
	case Trade:
		return "trade"
	case BookL1:
		return "book_l1"
	default:
		return "unknown"
	}
}

// Symbol is a fixed 32-byte, C-style zero-terminated trading-pair name.
// Names longer than 31 bytes are truncated on Set; String stops at the
// first zero byte or 32 bytes, whichever comes first.
type Symbol [32]byte

// Set copies s into the buffer, truncating to 31 bytes and always
// leaving a trailing zero so the buffer stays C-string compatible.
func (sym *Symbol) Set(s string) {
	n := copy(sym[:len(sym)-1], s)
	sym[n] = 0
	for i := n + 1; i < len(sym); i++ {
		sym[i] = 0
	}
}

// String decodes up to the first zero byte, or all 32 bytes if none is
// found. No allocation beyond the returned string's own backing array.
func (sym *Symbol) String() string {
	n := 0
	for n < len(sym) && sym[n] != 0 {
		n++
	}
	return string(sym[:n])
}

// KlineData is one OHLCV bar.
type KlineData struct {
	Timestamp int64 // nanoseconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Symbol    Symbol
}

// TradeData is one executed trade print.
type TradeData struct {
	Timestamp     int64 // nanoseconds
	Price         float64
	Quantity      float64
	Symbol        Symbol
	IsBuyerMaker  bool
}

// BookL1 is a top-of-book snapshot.
type BookL1Data struct {
	Timestamp  int64 // nanoseconds
	BidPrice   float64
	BidQty     float64
	AskPrice   float64
	AskQty     float64
	Symbol     Symbol
}

// payloadSize is the widest variant; Message's storage is sized to hold
// any one of them plus the discriminant tag.
const payloadSize = unsafe.Sizeof(KlineData{})

// Message is the discriminated union stored in each ring slot. Only one
// of the typed views is valid at a time, selected by Tag.
type Message struct {
	Tag     Tag
	_       [7]byte // pad so Kline/Trade/BookL1 start 8-byte aligned
	storage [payloadSize]byte
}

// NewKline builds a Message holding a Kline variant.
func NewKline(d KlineData) Message {
	var m Message
	m.Tag = Kline
	*(*KlineData)(unsafe.Pointer(&m.storage)) = d
	return m
}

// NewTrade builds a Message holding a Trade variant.
func NewTrade(d TradeData) Message {
	var m Message
	m.Tag = Trade
	*(*TradeData)(unsafe.Pointer(&m.storage)) = d
	return m
}

// NewBookL1 builds a Message holding a BookL1 variant.
func NewBookL1(d BookL1Data) Message {
	var m Message
	m.Tag = BookL1
	*(*BookL1Data)(unsafe.Pointer(&m.storage)) = d
	return m
}

// AsKline returns the Kline view and true if Tag == Kline.
func (m *Message) AsKline() (KlineData, bool) {
	if m.Tag != Kline {
		return KlineData{}, false
	}
	return *(*KlineData)(unsafe.Pointer(&m.storage)), true
}

// AsTrade returns the Trade view and true if Tag == Trade.
func (m *Message) AsTrade() (TradeData, bool) {
	if m.Tag != Trade {
		return TradeData{}, false
	}
	return *(*TradeData)(unsafe.Pointer(&m.storage)), true
}

// AsBookL1 returns the BookL1 view and true if Tag == BookL1.
func (m *Message) AsBookL1() (BookL1Data, bool) {
	if m.Tag != BookL1 {
		return BookL1Data{}, false
	}
	return *(*BookL1Data)(unsafe.Pointer(&m.storage)), true
}

// Timestamp returns the nanosecond timestamp common to every variant,
// without needing the caller to switch on Tag first.
func (m *Message) Timestamp() int64 {
	switch m.Tag {
	case Kline:
		d, _ := m.AsKline()
		return d.Timestamp
	case Trade:
		d, _ := m.AsTrade()
		return d.Timestamp
	case BookL1:
		d, _ := m.AsBookL1()
		return d.Timestamp
	default:
		return 0
	}
}

// Fields returns a shallow map of the variant's scalar fields plus the
// decoded symbol string, for callbacks that want to inspect a message
// without switching on Tag and calling the typed accessor themselves.
func (m *Message) Fields() map[string]any {
	switch m.Tag {
	case Kline:
		d, _ := m.AsKline()
		return map[string]any{
			"timestamp": d.Timestamp,
			"open":      d.Open,
			"high":      d.High,
			"low":       d.Low,
			"close":     d.Close,
			"volume":    d.Volume,
			"symbol":    d.Symbol.String(),
		}
	case Trade:
		d, _ := m.AsTrade()
		return map[string]any{
			"timestamp":      d.Timestamp,
			"price":          d.Price,
			"quantity":       d.Quantity,
			"symbol":         d.Symbol.String(),
			"is_buyer_maker": d.IsBuyerMaker,
		}
	case BookL1:
		d, _ := m.AsBookL1()
		return map[string]any{
			"timestamp":  d.Timestamp,
			"bid_price":  d.BidPrice,
			"bid_qty":    d.BidQty,
			"ask_price":  d.AskPrice,
			"ask_qty":    d.AskQty,
			"symbol":     d.Symbol.String(),
		}
	default:
		return nil
	}
}
