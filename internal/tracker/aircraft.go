// Package tracker implements the per-aircraft state table, CPR-backed
// position decoding, stale pruning, and message dispatch (spec §4.7).
//
// Grounded on the teacher's mode_s.Sky (mutex-guarded map[addr]*Aircraft,
// RemoveStaleAircrafts sweep) generalized from a single flat struct with
// raw CPR ints to the richer Aircraft data model spec §3 calls for, with
// CPR math delegated to internal/cpr instead of being inlined.
package tracker

import (
	"time"

	"github.com/regentag/go1090/internal/modes"
)

// cprSlot remembers the most recent frame of one parity (even or odd)
// received for an aircraft, for pairing in global CPR decode.
type cprSlot struct {
	frame cprFrameValue
	time  time.Time
	nuc   int
	valid bool
}

type cprFrameValue struct {
	Lat, Lon int
}

// Aircraft is a tracker entry keyed by 24-bit ICAO (or derived) address
// (spec §3).
type Aircraft struct {
	Addr     uint32
	AddrType modes.AddrType

	SeenFirst time.Time
	SeenLast  time.Time

	SeenAltitude time.Time
	SeenSpeed    time.Time
	SeenPos      time.Time

	Altitude    int
	AltitudeHAE int
	Speed       float64
	Heading     float64
	VertRate    int

	Lat, Lon float64
	HavePos  bool
	PosNUC   int

	evenCPR, oddCPR cprSlot

	Callsign string
	Squawk   int
	Category int

	Messages         int64
	ModeACount       int64
	ModeCCount       int64
	GlobalDistOK     int64
	GlobalDistChecks int64

	sigLevels [4]float64
	sigCount  int
	sigIdx    int

	// Show is opaque UI-presentation state the core never reads.
	Show any
}

// AddSignalLevel records one demodulated preamble signal level into the
// 4-entry ring buffer (spec §3).
func (a *Aircraft) AddSignalLevel(level float64) {
	a.sigLevels[a.sigIdx] = level
	a.sigIdx = (a.sigIdx + 1) % len(a.sigLevels)
	if a.sigCount < len(a.sigLevels) {
		a.sigCount++
	}
}

// MeanSignalLevel averages the recorded signal levels, or 0 if none.
func (a *Aircraft) MeanSignalLevel() float64 {
	if a.sigCount == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < a.sigCount; i++ {
		sum += a.sigLevels[i]
	}
	return sum / float64(a.sigCount)
}
