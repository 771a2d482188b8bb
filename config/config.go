// Package config loads hub/ring/feed/reconcile settings from JSON using
// github.com/sugawarayuuta/sonnet, a drop-in encoding/json replacement,
// rather than the standard library's encoding/json.
package config

import (
	"io"
	"os"
	"time"

	"github.com/sugawarayuuta/sonnet"
)

// Config holds every tunable the hub, ring, feed and reconcile packages
// need at startup. Zero values are not valid; call Default() or Load()
// rather than constructing one directly.
type Config struct {
	// RingCapacity is the broadcast ring's fixed slot count. Must be a
	// power of two; 512 is a reasonable default for a single-machine hub.
	RingCapacity int `json:"ring_capacity"`

	// BackoffMicros is a flat consumer sleep, in microseconds, for when a
	// Read finds nothing new. The hub package does not read it: its
	// worker loop always sleeps a fixed 1µs.
	BackoffMicros int `json:"backoff_micros"`

	// ReconcileDBPath is the sqlite file the reconcile package opens to
	// persist per-subscriber produced/delivered/dropped counters. Empty
	// disables reconciliation persistence.
	ReconcileDBPath string `json:"reconcile_db_path"`

	// FeedURL is the market-data WebSocket endpoint the feed package
	// dials. Empty means no live feed is started (e.g. test/demo mode
	// driving the Producer directly).
	FeedURL string `json:"feed_url"`

	// FeedSymbols is a list of symbols for the feed's subscription. It is
	// decoded but not used: cmd/hubdemo sends no subscription message, so
	// the feed delivers whatever the endpoint streams.
	FeedSymbols []string `json:"feed_symbols"`
}

// Backoff returns BackoffMicros as a time.Duration.
func (c Config) Backoff() time.Duration {
	return time.Duration(c.BackoffMicros) * time.Microsecond
}

// Default returns a conservative starting point: a 512-slot ring, 1µs
// backoff, no persistence, no live feed.
func Default() Config {
	return Config{
		RingCapacity:  512,
		BackoffMicros: 1,
	}
}

// Load decodes a Config from r, filling in any field the JSON document
// omits from Default().
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := sonnet.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile opens path and decodes it with Load.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(f)
}
