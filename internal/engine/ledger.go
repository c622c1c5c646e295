package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"statuswatch/internal/model"
)

type LedgerState string

const (
	StateQuiet      LedgerState = "quiet"
	StateFired      LedgerState = "fired"
	StateSuppressed LedgerState = "suppressed"
)

// Fingerprint is a stable hash of (component, severity, category) used to
// deduplicate repeated alerts for the same underlying condition. The category
// is the triggering rule name, not the rendered message, so wording changes
// never break dedup.
func Fingerprint(component string, severity model.Severity, category string) string {
	h := sha256.Sum256([]byte(strings.Join([]string{component, string(severity), category}, "|")))
	return hex.EncodeToString(h[:])
}

type ledgerEntry struct {
	state    LedgerState
	lastSent time.Time
}

// Ledger tracks per-fingerprint alert state and last-sent times. It is an
// injected object, constructed fresh per engine (or test), never package
// state. Lookups and inserts are atomic relative to each other so two
// detections of the same fingerprint cannot both fire.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*ledgerEntry)}
}

// Fire reports whether an alert for the fingerprint should be emitted now.
// A quiet fingerprint, or one last sent more than minInterval ago, moves to
// Fired and is stamped; a re-trigger inside the interval moves to Suppressed.
func (l *Ledger) Fire(fp string, now time.Time, minInterval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[fp]
	if !ok || entry.state == StateQuiet {
		l.entries[fp] = &ledgerEntry{state: StateFired, lastSent: now}
		return true
	}
	if now.Sub(entry.lastSent) >= minInterval {
		entry.state = StateFired
		entry.lastSent = now
		return true
	}
	entry.state = StateSuppressed
	return false
}

// Quiet clears fired/suppressed state for a fingerprint once the underlying
// condition no longer holds. The last-sent timestamp is dropped with it.
func (l *Ledger) Quiet(fp string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, fp)
}

func (l *Ledger) State(fp string) LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.entries[fp]; ok {
		return entry.state
	}
	return StateQuiet
}

// Export snapshots fingerprint -> last_sent for persistence.
func (l *Ledger) Export() map[string]time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]time.Time, len(l.entries))
	for fp, entry := range l.entries {
		out[fp] = entry.lastSent
	}
	return out
}

// Restore rehydrates last-sent times from persisted history. Restored
// fingerprints resume in Fired state so the re-alert interval still applies
// across a restart.
func (l *Ledger) Restore(entries map[string]time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for fp, ts := range entries {
		l.entries[fp] = &ledgerEntry{state: StateFired, lastSent: ts}
	}
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
