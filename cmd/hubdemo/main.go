// ════════════════════════════════════════════════════════════════════════════════════════════════
// Market Data Hub - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Main Entry Point & System Orchestration
//
// Description:
//   System orchestration with phased initialization and clean separation of concerns.
//   Bootstrap → Memory Optimization → Production Event Processing
//
// Architecture:
//   - Phase 0: Load configuration
//   - Phase 1: Construct the hub, ring and reconcile store
//   - Phase 2: Memory cleanup before entering the production loop
//   - Phase 3: Dial the live feed (if configured) and run until signaled to stop
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"net/url"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"
	"time"

	"github.com/river-walras/spmc/config"
	"github.com/river-walras/spmc/feed"
	"github.com/river-walras/spmc/feedparse"
	"github.com/river-walras/spmc/hub"
	"github.com/river-walras/spmc/internal/bufutil"
	"github.com/river-walras/spmc/internal/obslog"
	"github.com/river-walras/spmc/message"
	"github.com/river-walras/spmc/reconcile"
)

func main() {
	// PHASE 0: Load configuration.
	cfgPath := os.Getenv("SPMC_CONFIG")
	var cfg config.Config
	if cfgPath != "" {
		loaded, err := config.LoadFile(cfgPath)
		if err != nil {
			obslog.DropError("CONFIG_ERROR", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	obslog.DropMessage("INIT", "ring capacity "+bufutil.Itoa(cfg.RingCapacity))

	// PHASE 1: Bootstrap the hub and its supporting infrastructure.
	h, err := hub.New(cfg.RingCapacity)
	if err != nil {
		obslog.DropError("HUB_ERROR", err)
		os.Exit(1)
	}

	var store *reconcile.Store
	if cfg.ReconcileDBPath != "" {
		store, err = reconcile.Open(cfg.ReconcileDBPath)
		if err != nil {
			obslog.DropError("RECONCILE_ERROR", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	producer, err := h.Producer()
	if err != nil {
		obslog.DropError("PRODUCER_ERROR", err)
		os.Exit(1)
	}

	registerDemoSubscribers(h, store)

	setupSignalHandling(h)

	// PHASE 2: Memory cleanup and optimization for production.
	runtime.GC()
	runtime.GC() // double GC to ensure thorough cleanup
	rtdebug.FreeOSMemory()

	// PHASE 3: Production event processing.
	if cfg.FeedURL != "" {
		runFeedLoop(cfg, producer)
		return
	}

	obslog.DropMessage("READY", "no feed_url configured, idling with no producer activity")
	select {}
}

// registerDemoSubscribers wires one illustrative Trade subscriber so the
// hub is never running with zero consumers. When the reconcile store is
// configured, it records a snapshot every 1000 deliveries; it writes its
// delivered count into both Produced and Delivered, so the recorded
// dropped count is always 0.
func registerDemoSubscribers(h *hub.Hub, store *reconcile.Store) {
	var delivered int64
	h.Subscribe(message.Trade, func(tag message.Tag, fields map[string]any) {
		delivered++
		if store != nil && delivered%1000 == 0 {
			store.Record(reconcile.Snapshot{SubscriberID: 0, Produced: delivered, Delivered: delivered})
		}
	})
}

// runFeedLoop dials cfg.FeedURL and forwards every trade frame it
// receives into producer, reconnecting on error with a short backoff —
// mirroring the "infinite reconnection loop" shape used for continuous
// event processing against a flaky upstream socket.
func runFeedLoop(cfg config.Config, producer *hub.Producer) {
	for {
		u, err := url.Parse(cfg.FeedURL)
		if err != nil {
			obslog.DropError("FEED_URL_ERROR", err)
			return
		}
		addr := u.Host
		if u.Port() == "" {
			addr = u.Host + ":443"
		}
		path := u.Path
		if path == "" {
			path = "/"
		}

		conn, err := feed.Dial(addr, u.Hostname(), path)
		if err != nil {
			obslog.DropError("FEED_DIAL_ERROR", err)
			time.Sleep(time.Second)
			continue
		}

		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				obslog.DropError("FEED_READ_ERROR", err)
				break
			}
			msg, err := feedparse.ParseTrade(frame)
			if err != nil {
				continue // malformed frame, skip rather than abort the connection
			}
			producer.Add(msg)
		}

		conn.Close()
		time.Sleep(time.Second)
	}
}

// setupSignalHandling stops the hub cleanly on SIGINT/SIGTERM so every
// subscriber worker is joined before the process exits.
func setupSignalHandling(h *hub.Hub) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		obslog.DropMessage("SHUTDOWN", "stopping all subscribers")
		h.StopAll()
		os.Exit(0)
	}()
}
