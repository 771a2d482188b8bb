// Package feedparse turns a raw ticker JSON frame into a message.Message
// without encoding/json, allocating only a small key needle and the
// extracted field text per lookup, using the same SWAR (SIMD-within-a-register)
// byte-scanning idiom as the log-field scanner it is adapted from:
// advance eight bytes at a time looking for a key's quote-colon
// boundary, then hand-roll the decimal/integer parse on the slice that
// follows instead of reflecting through encoding/json.
package feedparse

import (
	"errors"

	"github.com/river-walras/spmc/message"
)

var (
	ErrMissingSymbol = errors.New("feedparse: missing symbol field")
	ErrMissingPrice  = errors.New("feedparse: missing price field")
	ErrBadNumber     = errors.New("feedparse: malformed numeric field")
)

// ParseTrade extracts {"symbol":"...","price":"...","qty":"...","ts":N}
// from a flat (non-nested) JSON object and builds a Trade message. It
// tolerates any field order and ignores unknown fields; each field is
// located by its own scan of the buffer.
func ParseTrade(frame []byte) (message.Message, error) {
	symbol, okSym := findString(frame, "symbol")
	if !okSym {
		return message.Message{}, ErrMissingSymbol
	}
	priceStr, okPrice := findString(frame, "price")
	if !okPrice {
		priceStr, okPrice = findNumber(frame, "price")
	}
	if !okPrice {
		return message.Message{}, ErrMissingPrice
	}
	price, err := parseFloat(priceStr)
	if err != nil {
		return message.Message{}, err
	}

	qtyStr, okQty := findString(frame, "qty")
	if !okQty {
		qtyStr, okQty = findNumber(frame, "qty")
	}
	var qty float64
	if okQty {
		qty, err = parseFloat(qtyStr)
		if err != nil {
			return message.Message{}, err
		}
	}

	ts, _ := findInt(frame, "ts")

	var d message.TradeData
	d.Timestamp = ts
	d.Price = price
	d.Quantity = qty
	d.Symbol.Set(symbol)
	return message.NewTrade(d), nil
}

// ParseBookL1 extracts {"symbol":"...","bid":N,"ask":N,"bidSize":N,"askSize":N,"ts":N}.
func ParseBookL1(frame []byte) (message.Message, error) {
	symbol, okSym := findString(frame, "symbol")
	if !okSym {
		return message.Message{}, ErrMissingSymbol
	}
	bid, _ := parseFieldFloat(frame, "bid")
	ask, _ := parseFieldFloat(frame, "ask")
	bidSize, _ := parseFieldFloat(frame, "bidSize")
	askSize, _ := parseFieldFloat(frame, "askSize")
	ts, _ := findInt(frame, "ts")

	var d message.BookL1Data
	d.Timestamp = ts
	d.BidPrice = bid
	d.BidQty = bidSize
	d.AskPrice = ask
	d.AskQty = askSize
	d.Symbol.Set(symbol)
	return message.NewBookL1(d), nil
}

func parseFieldFloat(frame []byte, key string) (float64, bool) {
	s, ok := findString(frame, key)
	if !ok {
		s, ok = findNumber(frame, key)
	}
	if !ok {
		return 0, false
	}
	v, err := parseFloat(s)
	return v, err == nil
}

// findString locates "key":"value" and returns value, scanning eight
// bytes at a time for the key's leading quote the way the adapted
// scanner hunts for topic-field boundaries in a log line.
func findString(buf []byte, key string) (string, bool) {
	needle := make([]byte, 0, len(key)+3)
	needle = append(needle, '"')
	needle = append(needle, key...)
	needle = append(needle, '"', ':')

	idx := indexSWAR(buf, needle)
	if idx < 0 {
		return "", false
	}
	i := idx + len(needle)
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	if i >= len(buf) || buf[i] != '"' {
		return "", false
	}
	i++
	start := i
	for i < len(buf) && buf[i] != '"' {
		if buf[i] == '\\' {
			i++
		}
		i++
	}
	if i >= len(buf) {
		return "", false
	}
	return string(buf[start:i]), true
}

// findNumber locates "key":123.45 (an unquoted JSON number) and returns
// its raw text.
func findNumber(buf []byte, key string) (string, bool) {
	needle := make([]byte, 0, len(key)+3)
	needle = append(needle, '"')
	needle = append(needle, key...)
	needle = append(needle, '"', ':')

	idx := indexSWAR(buf, needle)
	if idx < 0 {
		return "", false
	}
	i := idx + len(needle)
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	start := i
	for i < len(buf) && (isDigit(buf[i]) || buf[i] == '-' || buf[i] == '+' || buf[i] == '.' || buf[i] == 'e' || buf[i] == 'E') {
		i++
	}
	if i == start {
		return "", false
	}
	return string(buf[start:i]), true
}

func findInt(buf []byte, key string) (int64, bool) {
	s, ok := findNumber(buf, key)
	if !ok {
		return 0, false
	}
	var n int64
	neg := false
	i := 0
	if len(s) > 0 && s[0] == '-' {
		neg = true
		i = 1
	}
	for ; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, false
		}
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// indexSWAR scans buf eight bytes at a time, checking the first byte of
// needle against each lane before falling back to a byte-by-byte match
// — the same two-phase "wide scan, narrow confirm" shape as the
// original field scanner, generalized from a fixed Ethereum log-topic
// key to an arbitrary short needle.
func indexSWAR(buf, needle []byte) int {
	if len(needle) == 0 || len(needle) > len(buf) {
		return -1
	}
	first := needle[0]
	i := 0
	for ; i+8 <= len(buf); i += 8 {
		word := buf[i : i+8]
		lanes := uint64(0)
		for j := 0; j < 8; j++ {
			if word[j] == first {
				lanes |= 1 << uint(j)
			}
		}
		if lanes == 0 {
			continue
		}
		for j := 0; j < 8; j++ {
			if lanes&(1<<uint(j)) != 0 && matchAt(buf, i+j, needle) {
				return i + j
			}
		}
	}
	for ; i < len(buf); i++ {
		if buf[i] == first && matchAt(buf, i, needle) {
			return i
		}
	}
	return -1
}

func matchAt(buf []byte, at int, needle []byte) bool {
	if at+len(needle) > len(buf) {
		return false
	}
	for k := 0; k < len(needle); k++ {
		if buf[at+k] != needle[k] {
			return false
		}
	}
	return true
}

// parseFloat hand-rolls a decimal parse (sign, integer part, fractional
// part) without going through strconv's general-purpose path, matching
// the allocation budget of the rest of the scan.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, ErrBadNumber
	}
	i := 0
	neg := false
	if s[i] == '-' {
		neg = true
		i++
	} else if s[i] == '+' {
		i++
	}

	var intPart float64
	sawDigit := false
	for i < len(s) && isDigit(s[i]) {
		intPart = intPart*10 + float64(s[i]-'0')
		i++
		sawDigit = true
	}

	var frac float64
	if i < len(s) && s[i] == '.' {
		i++
		scale := 0.1
		for i < len(s) && isDigit(s[i]) {
			frac += float64(s[i]-'0') * scale
			scale /= 10
			i++
			sawDigit = true
		}
	}

	if !sawDigit || i != len(s) {
		return 0, ErrBadNumber
	}

	v := intPart + frac
	if neg {
		v = -v
	}
	return v, nil
}
