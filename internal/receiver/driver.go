// Package receiver wires together the converter, FIFO pool, one of the
// three demodulators, the Mode S framer, and the aircraft tracker into a
// running producer/consumer pair (spec §5, §6).
//
// Grounded on the teacher's rtl_adsb.StartReceive (a background goroutine
// scanning an io.Reader/subprocess stdout, invoking a handler per parsed
// message, returning a stop function), generalized from "subprocess stdout
// scanner" to "any io.Reader of raw IQ bytes" so file replay, rtl_tcp-style
// streaming, and the teacher's own subprocess shape all share one driver.
package receiver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regentag/go1090/internal/convert"
	"github.com/regentag/go1090/internal/demod"
	"github.com/regentag/go1090/internal/fifo"
	"github.com/regentag/go1090/internal/modes"
	"github.com/regentag/go1090/internal/tracker"
)

// acquireTimeout and dequeueTimeout bound how long the producer/consumer
// wait on the FIFO per spec §4.3's acquire/dequeue contracts, so both
// loops notice a Pool.Halt (from Run's own shutdown or an external caller)
// promptly instead of blocking
// forever on a pool that will never produce more work.
const (
	acquireTimeout = 500 * time.Millisecond
	dequeueTimeout = 500 * time.Millisecond
)

// Driver owns one FIFO pool, one converter, and one demodulator and runs
// the producer (read+convert+enqueue) and consumer (dequeue+demod+decode+
// dispatch) loops spec §5 describes as two threads bridged solely by the
// FIFO.
type Driver struct {
	Pool   *fifo.Pool
	Conv   convert.Converter
	Demod  demod.Demodulator
	ICAO   *modes.ICAOCache
	Track  *tracker.Tracker
	Logger *log.Logger

	FixErrors  bool
	Aggressive bool

	// SampleRate is the configured source rate in samples/sec, used only to
	// turn a stalled-Acquire duration into an estimated dropped-sample
	// count for the next buffer's DISCONTINUOUS accounting.
	SampleRate int

	rawBuf []byte
}

// New constructs a Driver from its already-initialized collaborators. It
// holds no package-level state; every Driver is independently runnable
// (matching the teacher's instance-owned Decoder/Sky pattern).
func New(pool *fifo.Pool, conv convert.Converter, dm demod.Demodulator, icao *modes.ICAOCache, track *tracker.Tracker, logger *log.Logger, sampleRate int) *Driver {
	return &Driver{
		Pool:       pool,
		Conv:       conv,
		Demod:      dm,
		ICAO:       icao,
		Track:      track,
		Logger:     logger,
		SampleRate: sampleRate,
	}
}

// Run drives both loops until r returns an error (including io.EOF) or ctx
// is cancelled, then halts the pool so any in-flight consumer unblocks.
// The producer runs on the calling goroutine; the consumer runs on a
// background goroutine until Run returns.
func (d *Driver) Run(ctx context.Context, r io.Reader) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.consume(ctx)
	}()

	err := d.produce(ctx, r)
	d.Pool.Halt()
	<-done
	return err
}

// produce fills buffers from r via the configured converter and enqueues
// them, respecting the overlap handoff contract (spec §4.3): it only ever
// writes into the region after Overlap, leaving the leading Overlap
// samples for fifo.Pool.Enqueue to fill in from its saved scratch.
func (d *Driver) produce(ctx context.Context, r io.Reader) error {
	bytesPerSample := d.Conv.BytesPerSample()

	var stallStart time.Time
	var stalled bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf, ok := d.Pool.Acquire(acquireTimeout)
		if !ok {
			if d.Pool.Halted() {
				return nil
			}
			if !stalled {
				stallStart = time.Now()
				stalled = true
			}
			continue
		}

		if stalled {
			dropped := int(time.Since(stallStart).Seconds() * float64(d.SampleRate))
			buf.Flags |= fifo.FlagDiscontinuous
			buf.Dropped = dropped
			d.Track.Stats.DiscontinuousBuffers.Add(1)
			d.Track.Stats.SamplesDropped.Add(int64(dropped))
			stalled = false
		}

		newSamples := buf.TotalLength - buf.Overlap
		needBytes := newSamples * bytesPerSample
		if cap(d.rawBuf) < needBytes {
			d.rawBuf = make([]byte, needBytes)
		}
		raw := d.rawBuf[:needBytes]

		n, err := io.ReadFull(r, raw)
		if n > 0 {
			got := n / bytesPerSample
			// Convert appends into buf.Data's own backing array when its
			// capacity allows (the common case, since buffers are sized
			// once at pool init); the copy is a safety net for the rare
			// case a Converter had to grow its own return slice instead.
			converted, stats := d.Conv.Convert(raw[:got*bytesPerSample], buf.Data[buf.Overlap:buf.Overlap])
			copy(buf.Data[buf.Overlap:], converted)
			buf.ValidLength = buf.Overlap + got
			buf.MeanLevel, buf.MeanPower = stats.MeanLevel, stats.MeanPower
			buf.SampleTimestamp = uint64(time.Now().UnixNano() / 1000 * 12) // placeholder monotone clock until a real SDR clock is wired in
			buf.SysTimestamp = time.Now().UnixMilli()
		}

		if err != nil && err != io.EOF {
			d.Logger.Error("receiver: read error", "err", err)
			if !buf.Discontinuous() {
				d.Track.Stats.DiscontinuousBuffers.Add(1)
			}
			buf.Flags |= fifo.FlagDiscontinuous
		}

		if enqErr := d.Pool.Enqueue(buf); enqErr != nil {
			return fmt.Errorf("receiver: enqueue: %w", enqErr)
		}

		if err == io.EOF {
			return io.EOF
		}
		if err != nil {
			return err
		}
	}
}

// consume dequeues buffers, runs them through the configured demodulator,
// decodes each candidate, and dispatches confirmed messages to the
// tracker, until the pool halts.
func (d *Driver) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		buf, ok := d.Pool.Dequeue(dequeueTimeout)
		if !ok {
			if d.Pool.Halted() {
				return
			}
			continue
		}

		d.Demod.Demod(buf, d.handleCandidate)
		d.Pool.Release(buf)
	}
}

func (d *Driver) handleCandidate(rm demod.RawMessage) {
	now := time.Now()
	d.Track.Stats.PreambleOK.Add(1)

	if rm.ModeAC {
		msg := &modes.Message{
			AddrType:     modes.AddrModeAC,
			ICAO:         modes.NonICAO | uint32(rm.ModeACCode),
			Signal:       rm.Signal,
			IsModeC:      rm.IsModeC,
			TimestampMsg: rm.SampleTimestamp,
		}
		msg.Squawk = rm.ModeACCode
		msg.Flags |= modes.FlagIdentity
		d.Track.Update(msg, now)
		return
	}

	msg, err := modes.Decode(rm.Data, d.ICAO, d.FixErrors, d.Aggressive)
	if err != nil {
		d.Logger.Debug("receiver: frame decode rejected", "err", err)
		d.Track.Stats.DemodRejectedUnknown.Add(1)
		return
	}
	if !msg.CRCOK {
		d.Track.Stats.CRCBad.Add(1)
		return
	}
	if msg.ErrorBits > 0 {
		d.Track.Stats.CRCFixed.Add(1)
	}
	msg.Signal = rm.Signal
	msg.TimestampMsg = rm.SampleTimestamp
	msg.SysTimestampMsg = rm.SysTimestamp

	d.Track.Update(msg, now)
}
