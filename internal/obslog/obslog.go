// Package obslog is the hub's cold-path logger: zero-allocation,
// unformatted, and intentionally minimal. It must never be called from
// the ring's hot path (Push/Read) — only from cold paths such as
// unsubscribe joins, callback-panic recovery, and cmd/hubdemo's startup,
// feed-error and shutdown messages.
package obslog

import (
	"os"

	"github.com/river-walras/spmc/internal/bufutil"
)

// DropMessage logs a cold-path informational line: "<prefix>: <message>".
//
//go:nosplit
//go:inline
func DropMessage(prefix, message string) {
	write(prefix + ": " + message + "\n")
}

// DropError logs a cold-path error line, or just the prefix if err is
// nil (used as a cheap trace tag).
//
//go:nosplit
//go:inline
func DropError(prefix string, err error) {
	if err != nil {
		write(prefix + ": " + err.Error() + "\n")
		return
	}
	write(prefix + "\n")
}

// DropPanic logs a recovered callback panic. Subscriber id is included
// so operators can correlate with subscriber_count() / unsubscribe
// calls without a formatted stack trace on the hot path.
//
//go:nosplit
func DropPanic(subscriberID int, recovered any) {
	write("subscriber " + bufutil.Itoa(subscriberID) + " callback panic: ")
	switch v := recovered.(type) {
	case error:
		write(v.Error())
	case string:
		write(v)
	default:
		write("(unprintable panic value)")
	}
	write("\n")
}

//go:nosplit
func write(s string) {
	os.Stderr.WriteString(s)
}
