package tracker

import (
	"sync"
	"time"

	"github.com/regentag/go1090/internal/cpr"
	"github.com/regentag/go1090/internal/modes"
)

// StaleTTL is how long an aircraft is kept after its last reception before
// RemoveStale prunes it (spec §4.7).
const StaleTTL = 60 * time.Second

// maxPairAgeForGlobal bounds how old the other frame of an even/odd pair
// may be for global CPR decode to be attempted (spec §4.6's "10 second
// window").
const maxPairAgeForGlobal = 10 * time.Second

// maxLocalDecodeDistanceNM rejects a local-decode fix that lands
// implausibly far from the aircraft's own last known position.
const maxLocalDecodeDistanceNM = 300.0

// Sink receives a (message, aircraft-snapshot) pair every time a message
// updates tracked state. Sinks run synchronously on the dispatching
// goroutine and must not block; slow consumers should buffer internally.
type Sink func(msg *modes.Message, ac *Aircraft)

// Tracker owns the live aircraft table and dispatches decoded messages into
// it (spec §4.7). It holds no package-level state; every field is
// instance-owned so multiple Trackers (e.g. in tests) never interfere.
//
// Grounded on the teacher's mode_s.Sky (sync.Mutex-guarded
// map[uint32]*Aircraft with a periodic stale sweep), generalized to
// RWMutex (reads vastly outnumber writes once a dispatch loop is running),
// with CPR pairing/position math moved out to internal/cpr and duplicate
// suppression moved out to dedupTable.
type Tracker struct {
	mu       sync.RWMutex
	aircraft map[uint32]*Aircraft

	dedup *dedupTable
	Stats Stats

	haveHome         bool
	homeLat, homeLon float64
	maxDistNM        float64

	sinks []Sink
}

// New constructs an empty Tracker. If haveHome is true, homeLat/homeLon
// seed local CPR decode for aircraft never yet seen with a global fix, and
// maxDistNM (if > 0) rejects any decoded position farther than that from
// home.
func New(haveHome bool, homeLat, homeLon, maxDistNM float64) *Tracker {
	return &Tracker{
		aircraft:  make(map[uint32]*Aircraft),
		dedup:     newDedupTable(),
		haveHome:  haveHome,
		homeLat:   homeLat,
		homeLon:   homeLon,
		maxDistNM: maxDistNM,
	}
}

// AddSink registers a dispatch sink. Not safe to call concurrently with
// Update.
func (tr *Tracker) AddSink(s Sink) {
	tr.sinks = append(tr.sinks, s)
}

// findOrCreate returns the Aircraft for addr, creating and registering a
// fresh entry under its own AddrType priority rules if none exists yet.
func (tr *Tracker) findOrCreate(addr uint32, addrType modes.AddrType, now time.Time) *Aircraft {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	ac, ok := tr.aircraft[addr]
	if !ok {
		ac = &Aircraft{
			Addr:      addr,
			AddrType:  addrType,
			SeenFirst: now,
		}
		tr.aircraft[addr] = ac
		return ac
	}

	// Never downgrade address-type confidence (spec §3): only a message
	// with a higher-priority AddrType than what's already recorded gets to
	// raise it; a lower-priority message still has its fields merged in
	// below, just without touching AddrType.
	if addrType > ac.AddrType {
		ac.AddrType = addrType
	}
	return ac
}

// Update applies one decoded message to the tracker: it finds or creates
// the owning aircraft, merges in whatever fields the message carries,
// performs CPR pairing/decode when the message carries a position, and
// fires all registered sinks. now is passed in rather than read from
// time.Now so tests can drive the clock deterministically.
func (tr *Tracker) Update(msg *modes.Message, now time.Time) *Aircraft {
	if msg.ICAO == 0 {
		return nil
	}

	if dup := tr.dedup.SeenAndRecord(msg.ICAO, msg.TimestampMsg, now); dup {
		tr.Stats.DupDropped.Add(1)
		return nil
	}

	ac := tr.findOrCreate(msg.ICAO, msg.AddrType, now)

	tr.mu.Lock()
	defer tr.mu.Unlock()

	ac.SeenLast = now
	ac.Messages++

	if msg.Signal > 0 {
		ac.AddSignalLevel(msg.Signal)
	}

	if msg.AddrType == modes.AddrModeAC {
		if msg.IsModeC {
			tr.Stats.ModeCCount.Add(1)
			ac.ModeCCount++
		} else {
			tr.Stats.ModeACount.Add(1)
			ac.ModeACount++
		}
	}

	if msg.Has(modes.FlagAltitude) {
		ac.Altitude = msg.Altitude
		ac.SeenAltitude = now
	}
	if msg.Has(modes.FlagIdentity) {
		ac.Squawk = msg.Squawk
	}
	if msg.Has(modes.FlagCallsign) {
		ac.Callsign = msg.Callsign
	}
	if msg.Has(modes.FlagCategory) {
		ac.Category = msg.Category
	}
	if msg.Has(modes.FlagVelocity) {
		ac.Speed = msg.Speed
		ac.Heading = msg.Heading
		ac.VertRate = msg.VertRate
		ac.SeenSpeed = now
	}

	if msg.Has(modes.FlagCPR) {
		tr.applyCPR(ac, msg, now)
	}

	for _, sink := range tr.sinks {
		snap := *ac
		sink(msg, &snap)
	}

	return ac
}

// applyCPR pairs the message's CPR frame against the aircraft's other-
// parity slot for global decode, falling back to local decode against the
// aircraft's own last fix or the receiver's home position. Caller must
// hold tr.mu.
func (tr *Tracker) applyCPR(ac *Aircraft, msg *modes.Message, now time.Time) {
	frame := cpr.Frame{Lat: msg.CPRLat, Lon: msg.CPRLon}
	slot := cprSlot{frame: cprFrameValue{Lat: frame.Lat, Lon: frame.Lon}, time: now, nuc: msg.NUCp, valid: true}

	var mine, other *cprSlot
	if msg.CPROdd {
		mine, other = &ac.oddCPR, &ac.evenCPR
	} else {
		mine, other = &ac.evenCPR, &ac.oddCPR
	}

	decoded := false
	pairedOK := other.valid && now.Sub(other.time) <= maxPairAgeForGlobal
	if pairedOK {
		evenFrame, oddFrame := frame, cpr.Frame{Lat: other.frame.Lat, Lon: other.frame.Lon}
		if msg.CPROdd {
			evenFrame, oddFrame = oddFrame, evenFrame
		}
		lat, lon, ok := cpr.GlobalDecode(evenFrame, oddFrame, msg.CPROdd)
		if ok {
			if tr.withinRange(ac, lat, lon) {
				ac.Lat, ac.Lon = lat, lon
				ac.HavePos = true
				ac.PosNUC = msg.NUCp
				ac.SeenPos = now
				ac.GlobalDistOK++
				tr.Stats.CPRGlobalOK.Add(1)
				decoded = true
			} else {
				tr.Stats.CPRRejectedDistance.Add(1)
			}
			ac.GlobalDistChecks++
		} else {
			tr.Stats.CPRRejectedZone.Add(1)
		}
	} else if other.valid {
		tr.Stats.CPRGlobalSkipped.Add(1)
	}

	*mine = slot

	if !decoded {
		tr.tryLocalDecode(ac, frame, msg.CPROdd, now)
	}
}

// tryLocalDecode attempts single-frame CPR recovery against the aircraft's
// own last fix, or the receiver's home position if it has none yet.
// Caller must hold tr.mu.
func (tr *Tracker) tryLocalDecode(ac *Aircraft, frame cpr.Frame, odd bool, now time.Time) {
	refLat, refLon, haveRef := ac.Lat, ac.Lon, ac.HavePos
	if !haveRef {
		if !tr.haveHome {
			return
		}
		refLat, refLon, haveRef = tr.homeLat, tr.homeLon, true
	}
	if !haveRef {
		return
	}

	lat, lon := cpr.LocalDecode(frame, odd, refLat, refLon)
	if ac.HavePos && cpr.DistanceNM(refLat, refLon, lat, lon) > maxLocalDecodeDistanceNM {
		tr.Stats.CPRRejectedDistance.Add(1)
		return
	}
	if tr.haveHome && tr.maxDistNM > 0 && cpr.DistanceNM(tr.homeLat, tr.homeLon, lat, lon) > tr.maxDistNM {
		tr.Stats.CPRRejectedDistance.Add(1)
		return
	}

	ac.Lat, ac.Lon = lat, lon
	ac.HavePos = true
	ac.SeenPos = now
	tr.Stats.CPRLocalOK.Add(1)
}

// withinRange checks a freshly globally-decoded position against the
// receiver's configured max range, if any. Caller must hold tr.mu.
func (tr *Tracker) withinRange(ac *Aircraft, lat, lon float64) bool {
	if !tr.haveHome || tr.maxDistNM <= 0 {
		return true
	}
	return cpr.DistanceNM(tr.homeLat, tr.homeLon, lat, lon) <= tr.maxDistNM
}

// RemoveStale prunes every aircraft whose last reception is older than
// StaleTTL relative to now.
func (tr *Tracker) RemoveStale(now time.Time) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	removed := 0
	for addr, ac := range tr.aircraft {
		if now.Sub(ac.SeenLast) > StaleTTL {
			delete(tr.aircraft, addr)
			removed++
		}
	}
	return removed
}

// Snapshot returns a shallow copy of every tracked aircraft, safe for a
// reader (e.g. the UI or an SBS sink) to range over without holding the
// tracker's lock.
func (tr *Tracker) Snapshot() []Aircraft {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make([]Aircraft, 0, len(tr.aircraft))
	for _, ac := range tr.aircraft {
		out = append(out, *ac)
	}
	return out
}

// Len returns the number of currently tracked aircraft.
func (tr *Tracker) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.aircraft)
}
