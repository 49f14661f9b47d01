package event

import (
	"sort"
	"sync"
)

// Log is the append-only, totally ordered event history. It is the canonical
// record: ledger balances and order state are caches rebuildable from it.
//
// Appends happen only inside the exchange's critical section; reads may run
// concurrently and return copies, so callers always see a consistent snapshot.
type Log struct {
	mu      sync.RWMutex
	entries []Envelope
}

func NewLog() *Log {
	return &Log{}
}

// Append adds an envelope to the log. Envelopes arrive in sequence order
// because the single writer assigns sequences under its lock.
func (l *Log) Append(env Envelope) {
	l.mu.Lock()
	l.entries = append(l.entries, env)
	l.mu.Unlock()
}

// ReadAll returns a copy of the full log in order.
func (l *Log) ReadAll() []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Envelope, len(l.entries))
	copy(out, l.entries)
	return out
}

// ReadSince returns a copy of all envelopes with Sequence > cursor.
// ReadSince(0) is equivalent to ReadAll.
func (l *Log) ReadSince(cursor uint64) []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Sequences are dense but need not start at 1: a log populated after
	// a snapshot restore begins at the restore point.
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Sequence > cursor
	})
	if i == len(l.entries) {
		return nil
	}

	out := make([]Envelope, len(l.entries)-i)
	copy(out, l.entries[i:])
	return out
}

// Len returns the number of entries.
func (l *Log) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.entries))
}
