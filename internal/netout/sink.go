// Package netout implements the optional external sinks (SPEC_FULL.md
// §11/§12): an SBS/BaseStation text feed and a NATS publish sink. Neither
// is part of the receive path's core contract (spec §1's Non-goals keep
// "network wire formats for downstream consumers" out of scope for the
// core itself); both attach to internal/tracker.Tracker the same way the
// teacher's gocui UI redraw did, via tracker.Sink, so adding a sink never
// touches the dispatch loop.
package netout

import (
	"github.com/charmbracelet/log"

	"github.com/regentag/go1090/internal/modes"
	"github.com/regentag/go1090/internal/tracker"
)

// queueDepth bounds each sink's internal buffer; a sink that falls behind
// drops the oldest queued update and counts it rather than applying
// backpressure to the dispatch loop (spec §11's "never blocks dispatch").
const queueDepth = 1024

// update is one message/aircraft pair queued for a sink's writer goroutine.
type update struct {
	msg *modes.Message
	ac  *tracker.Aircraft
}

// forwarder is the shared bounded-queue-plus-drop-counter plumbing both
// sinks in this package use.
type forwarder struct {
	ch      chan update
	dropped int64
	logger  *log.Logger
	name    string
}

func newForwarder(name string, logger *log.Logger) *forwarder {
	return &forwarder{
		ch:     make(chan update, queueDepth),
		logger: logger,
		name:   name,
	}
}

// Sink implements tracker.Sink: non-blocking enqueue, drop-oldest on
// backpressure.
func (f *forwarder) Sink(msg *modes.Message, ac *tracker.Aircraft) {
	u := update{msg: msg, ac: ac}
	select {
	case f.ch <- u:
	default:
		select {
		case <-f.ch:
			f.dropped++
		default:
		}
		select {
		case f.ch <- u:
		default:
		}
	}
}

// Dropped returns the number of updates dropped for backpressure so far.
func (f *forwarder) Dropped() int64 { return f.dropped }
