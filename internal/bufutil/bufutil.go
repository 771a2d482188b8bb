// Package bufutil holds small byte/string helpers; Itoa is used by the
// hub, obslog and cmd/hubdemo packages.
package bufutil

import "unsafe"

// B2s converts a []byte to a string without allocation. The caller must
// not mutate b for as long as the returned string is alive.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Itoa renders an int without fmt, for the logging paths in
// internal/obslog. Its only allocation is the returned string.
//
//go:nosplit
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
