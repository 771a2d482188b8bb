package hub

import (
	"time"

	"github.com/river-walras/spmc/internal/obslog"
	"github.com/river-walras/spmc/message"
)

// backoff is the fixed sleep applied when a subscriber's reader finds
// nothing new. It is intentionally flat rather than adaptive (no
// hot-spin-then-yield escalation): with many independent subscriber
// goroutines sharing the CPU, a flat sleep keeps worst-case wake latency
// bounded and predictable instead of letting any one subscriber's
// backoff curve depend on how busy the machine happens to be.
const backoff = time.Microsecond

// runWorker is the per-subscriber consumer loop, spawned once by
// Subscribe and joined once by stopAndJoin. It looks up nothing under
// the Hub's mutex on every iteration — sub is captured once at spawn
// time and is guaranteed to outlive the loop because Unsubscribe/StopAll
// join the goroutine before erasing it from the subscriber map.
func runWorker(sub *subscriber) {
	defer close(sub.workerDone)

	for {
		select {
		case <-sub.running:
			return
		default:
		}

		msg, ok := sub.reader.Read()
		if !ok {
			time.Sleep(backoff)
			continue
		}

		if msg.Tag != sub.wantedTag {
			continue // wrong variant, skip without invoking the callback
		}

		dispatch(sub, &msg)
	}
}

// dispatch invokes the subscriber's callback, recovering and logging any
// panic so the worker loop survives a misbehaving callback.
func dispatch(sub *subscriber, msg *message.Message) {
	defer func() {
		if r := recover(); r != nil {
			obslog.DropPanic(sub.id, r)
		}
	}()
	sub.callback(sub.wantedTag, msg.Fields())
}
