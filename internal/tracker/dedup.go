package tracker

import (
	"sync"
	"time"
)

// dedupSize is the fixed size of the direct-mapped duplicate-reception
// table (spec §4.7).
const dedupSize = 1024

// DedupTTL is how long an (addr, timestamp) pair suppresses an exact
// duplicate reception, matching the ICAO cache TTL.
const DedupTTL = 60 * time.Second

type dedupEntry struct {
	addr      uint32
	timestamp uint64
	expires   time.Time
	used      bool
}

// dedupTable is a small fixed-size single-slot-per-hash table used to
// reject exact-duplicate receptions of the same message within the TTL
// window. A hash collision simply evicts whatever occupies that slot (no
// probing to a second slot), so the table never grows and never blocks.
type dedupTable struct {
	mu      sync.Mutex
	entries [dedupSize]dedupEntry
}

func newDedupTable() *dedupTable {
	return &dedupTable{}
}

func dedupHash(addr uint32, timestamp uint64) uint32 {
	h := addr*2654435761 ^ uint32(timestamp) ^ uint32(timestamp>>32)
	return h % dedupSize
}

// SeenAndRecord reports whether (addr, timestamp) was already recorded
// within the TTL window, and records it (or refreshes its expiry) either
// way. A collision with an unrelated, still-live entry evicts that entry
// rather than probing further: false positives (treating a fresh message
// as a dup) are unacceptable, but an occasional false negative (failing to
// catch a dup because its slot got reused) only costs one duplicate
// dispatch, which downstream sinks must already tolerate.
func (d *dedupTable) SeenAndRecord(addr uint32, timestamp uint64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := dedupHash(addr, timestamp)
	e := &d.entries[idx]

	if e.used && e.addr == addr && e.timestamp == timestamp && now.Before(e.expires) {
		e.expires = now.Add(DedupTTL)
		return true
	}

	e.addr = addr
	e.timestamp = timestamp
	e.expires = now.Add(DedupTTL)
	e.used = true
	return false
}
