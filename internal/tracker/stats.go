package tracker

import "sync/atomic"

// Stats holds the runtime anomaly/outcome counters spec §7 asks for,
// incremented only from the thread that owns the action (the consumer/
// dispatch thread) and published via relaxed atomics for any reader.
type Stats struct {
	PreambleOK            atomic.Int64
	DemodRejectedUnknown  atomic.Int64
	CRCBad                atomic.Int64
	CRCFixed              atomic.Int64
	DupDropped            atomic.Int64
	CPRGlobalOK           atomic.Int64
	CPRLocalOK            atomic.Int64
	CPRGlobalSkipped      atomic.Int64
	CPRRejectedZone       atomic.Int64
	CPRRejectedDistance   atomic.Int64
	ModeACount            atomic.Int64
	ModeCCount            atomic.Int64
	SamplesDropped        atomic.Int64
	DiscontinuousBuffers  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats for consumers that can't
// hold atomic.Int64 values directly (e.g. JSON encoders).
type StatsSnapshot struct {
	PreambleOK           int64
	DemodRejectedUnknown int64
	CRCBad               int64
	CRCFixed             int64
	DupDropped           int64
	CPRGlobalOK          int64
	CPRLocalOK           int64
	CPRGlobalSkipped     int64
	CPRRejectedZone      int64
	CPRRejectedDistance  int64
	ModeACount           int64
	ModeCCount           int64
	SamplesDropped       int64
	DiscontinuousBuffers int64
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PreambleOK:           s.PreambleOK.Load(),
		DemodRejectedUnknown: s.DemodRejectedUnknown.Load(),
		CRCBad:               s.CRCBad.Load(),
		CRCFixed:             s.CRCFixed.Load(),
		DupDropped:           s.DupDropped.Load(),
		CPRGlobalOK:          s.CPRGlobalOK.Load(),
		CPRLocalOK:           s.CPRLocalOK.Load(),
		CPRGlobalSkipped:     s.CPRGlobalSkipped.Load(),
		CPRRejectedZone:      s.CPRRejectedZone.Load(),
		CPRRejectedDistance:  s.CPRRejectedDistance.Load(),
		ModeACount:           s.ModeACount.Load(),
		ModeCCount:           s.ModeCCount.Load(),
		SamplesDropped:       s.SamplesDropped.Load(),
		DiscontinuousBuffers: s.DiscontinuousBuffers.Load(),
	}
}
