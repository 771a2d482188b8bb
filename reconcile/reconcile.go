// Package reconcile persists per-subscriber produced/delivered/dropped
// counters to sqlite so operators can reconcile message-count drift
// after the fact. The ring itself never surfaces a drop signal to a
// reader; this package is the external observer that makes drops
// auditable by comparing snapshots over time.
package reconcile

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS subscriber_counts (
	subscriber_id INTEGER NOT NULL,
	observed_at   INTEGER NOT NULL,
	produced      INTEGER NOT NULL,
	delivered     INTEGER NOT NULL,
	dropped       INTEGER NOT NULL,
	PRIMARY KEY (subscriber_id, observed_at)
);
`

// Store wraps a sqlite-backed audit log of subscriber counters.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the audit table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot is one point-in-time observation of a subscriber's counters.
// It has no dropped field: Record stores Produced - Delivered as the
// dropped count and Latest returns that count alongside the Snapshot.
// Record does not check that the difference is non-negative.
type Snapshot struct {
	SubscriberID int
	Produced     int64
	Delivered    int64
}

// Record persists one Snapshot, computing Dropped = Produced - Delivered.
func (s *Store) Record(snap Snapshot) error {
	dropped := snap.Produced - snap.Delivered
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO subscriber_counts
			(subscriber_id, observed_at, produced, delivered, dropped)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.SubscriberID, time.Now().UnixNano(), snap.Produced, snap.Delivered, dropped,
	)
	return err
}

// Latest returns the most recent recorded snapshot for subscriberID, or
// ok=false if none has been recorded yet.
func (s *Store) Latest(subscriberID int) (snap Snapshot, dropped int64, ok bool, err error) {
	row := s.db.QueryRow(
		`SELECT produced, delivered, dropped FROM subscriber_counts
		 WHERE subscriber_id = ? ORDER BY observed_at DESC LIMIT 1`,
		subscriberID,
	)
	snap.SubscriberID = subscriberID
	if scanErr := row.Scan(&snap.Produced, &snap.Delivered, &dropped); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return Snapshot{}, 0, false, nil
		}
		return Snapshot{}, 0, false, scanErr
	}
	return snap, dropped, true, nil
}
