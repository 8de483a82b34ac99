package broker

import (
	"time"

	"github.com/onnwee/reddit-broker/internal/metrics"
)

const (
	// ledgerTTL is how long an unseen response queue stays tracked.
	ledgerTTL = 24 * time.Hour
	// sweepInterval is how often the dispatch loop trims the ledger.
	sweepInterval = time.Hour
)

type ledgerEntry struct {
	version  float64
	lastSeen time.Time
}

// Ledger tracks the highest accepted version per response queue so stale
// client sessions can be dropped. It lives entirely inside the dispatch
// loop's execution context; no locking.
type Ledger struct {
	entries map[string]*ledgerEntry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: map[string]*ledgerEntry{}}
}

// Check runs the version step for one packet. A queue seen for the first
// time is recorded (created=true so the caller can declare it). A version
// below the recorded one is stale unless the packet carries ignore_version;
// stale packets do not refresh last_seen. Otherwise the version advances when
// greater and the entry is touched.
func (l *Ledger) Check(queue string, version float64, ignoreVersion bool, now time.Time) (created, stale bool) {
	entry, ok := l.entries[queue]
	if !ok {
		l.entries[queue] = &ledgerEntry{version: version, lastSeen: now}
		metrics.LedgerSize.Set(float64(len(l.entries)))
		return true, false
	}
	if version < entry.version && !ignoreVersion {
		return false, true
	}
	if version > entry.version {
		entry.version = version
	}
	entry.lastSeen = now
	return false, false
}

// Version returns the recorded version for a queue; used by tests.
func (l *Ledger) Version(queue string) (float64, bool) {
	entry, ok := l.entries[queue]
	if !ok {
		return 0, false
	}
	return entry.version, true
}

// Sweep evicts entries unseen for the ledger TTL and returns how many were
// dropped.
func (l *Ledger) Sweep(now time.Time) int {
	evicted := 0
	for queue, entry := range l.entries {
		if now.Sub(entry.lastSeen) >= ledgerTTL {
			delete(l.entries, queue)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.LedgerEvictions.Add(float64(evicted))
		metrics.LedgerSize.Set(float64(len(l.entries)))
	}
	return evicted
}

// Len returns the number of tracked response queues.
func (l *Ledger) Len() int { return len(l.entries) }
