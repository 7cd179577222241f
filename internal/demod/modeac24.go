package demod

import (
	"math"

	"github.com/regentag/go1090/internal/fifo"
)

// clockUnitsPerSample is the virtual 60 MHz clock spec §4.4.1 uses to
// express sub-sample timing: 60 MHz is the LCM of the 2.4 MHz sample rate
// and the Mode A/C bit rate (one bit every 1.45us, about 0.69 MHz), so both
// land on integer clock ticks.
const clockUnitsPerSample = 60_000_000 / 2_400_000 // 25

// modeACBitPeriodClocks is one Mode A/C bit period (1.45us) expressed
// in 60 MHz virtual-clock units.
const modeACBitPeriodClocks = 87

// f1f2SpacingClocks is the F1-F2 framing pulse spacing, 18 bit periods:
// 12 data bits (A1-4/B1-4/C1-4/D1-4) plus the two mandated quiet cells and
// the four bits of dead time the framing pulses themselves occupy,
// matching the 20-cell layout decodeModeACBits walks.
const f1f2SpacingClocks = modeACBitPeriodClocks * 18

// ModeAC demodulates Mode A/C replies at 2.4 MS/s (spec §4.4.1): a pair of
// framing pulses F1/F2 spaced 26.1us (18 bit periods) apart, within a
// 20-cell window (2 framing + 2 quiet + 12 data + 4 unused/guard).
type ModeAC struct{}

// NewModeAC returns a ready-to-use Mode A/C demodulator.
func NewModeAC() *ModeAC { return &ModeAC{} }

func (d *ModeAC) Demod(buf *fifo.MagBuf, cb Callback) {
	m := buf.Data
	mlen := buf.ValidLength - buf.Overlap

	for s := 1; s < mlen; s++ {
		if s+2 >= len(m) {
			break
		}
		if !(m[s-1] < m[s] && m[s+2] < m[s]) {
			continue // not a rising edge into a quiet zone
		}

		f1Clock, f1Level, ok := subSamplePhase(m, s)
		if !ok {
			continue
		}

		f2Clock := f1Clock + f1f2SpacingClocks
		f2Idx := f2Clock / clockUnitsPerSample
		if f2Idx-1 < 0 || f2Idx+2 >= len(m) {
			continue
		}
		if !(m[f2Idx-1] < m[f2Idx] && m[f2Idx+2] < m[f2Idx]) {
			continue
		}

		_, f2Level, ok := subSamplePhase(m, f2Idx)
		if !ok {
			continue
		}

		mid := math.Sqrt(f1Level * f2Level)
		// No separate 6dB signal-to-noise check is made: a candidate needs
		// only an F2 partner 26.1us away passing the same rising-edge test,
		// and both thresholds below are derived from the two pulse levels.
		sigThreshold := mid / math.Sqrt2
		noiseThreshold := mid / (2 * math.Sqrt2)

		code, ok := decodeModeACBits(m, f1Clock, sigThreshold, noiseThreshold)
		if !ok {
			continue
		}

		cb(RawMessage{
			ModeAC:          true,
			ModeACCode:      code,
			Signal:          mid,
			SampleTimestamp: buf.SampleTimestamp + uint64(f2Idx),
			SysTimestamp:    buf.SysTimestamp,
		})
	}
}

// subSamplePhase estimates the sub-sample clock position of a framing
// pulse at sample index s from the energy ratio between m[s] and m[s+1]
// (spec §4.4.1 step 2), returning the pulse's 60 MHz clock tick and its
// level, taken as m[s] itself (not interpolated).
func subSamplePhase(m []uint16, s int) (clock int, level float64, ok bool) {
	if s+1 >= len(m) {
		return 0, 0, false
	}
	a, b := float64(m[s]), float64(m[s+1])
	if a+b <= 0 {
		return 0, 0, false
	}
	frac := b / (a + b)
	clock = s*clockUnitsPerSample + int(frac*clockUnitsPerSample)
	level = a
	return clock, level, true
}

// decodeModeACBits walks the 20 bit cells starting at the F1 framing pulse
// and assembles the 12-bit identity code (four octal digits; no SPI or X
// bit is decoded), requiring the two framing bits
// on, the two quiet bits off, and no noisy/uncertain cells (spec §4.4.1
// step 5). Bit order on the wire is C1 A1 C2 A2 C4 A4 B1 D1 B2 D2 B4 D4,
// which decodeModeACBits reorders into the canonical ABCD nibble layout
// before returning.
func decodeModeACBits(m []uint16, f1Clock int, sigThreshold, noiseThreshold float64) (int, bool) {
	// 20 cells of one bit period (87 clock units) each, starting at F1.
	const bitPeriodClocks = 87
	levels := make([]float64, 20)
	for i := 0; i < 20; i++ {
		clock := f1Clock + i*bitPeriodClocks
		idx := clock / clockUnitsPerSample
		if idx < 0 || idx >= len(m) {
			return 0, false
		}
		levels[i] = float64(m[idx])
	}

	// Cells 0 and 18 are the F1/F2 framing pulses (must be "on"); cells 5
	// and 13 are mandated quiet cells (must be "off"); the remainder carry
	// the 12 data bits (cell 19 is an unused guard).
	isOn := func(l float64) bool { return l >= sigThreshold }
	isOff := func(l float64) bool { return l <= noiseThreshold }

	if !isOn(levels[0]) || !isOn(levels[18]) {
		return 0, false
	}
	if !isOff(levels[5]) || !isOff(levels[13]) {
		return 0, false
	}

	dataCells := []int{1, 2, 3, 4, 6, 7, 8, 9, 10, 11, 12, 14}
	var bits [12]bool
	for i, cell := range dataCells {
		l := levels[cell]
		switch {
		case isOn(l):
			bits[i] = true
		case isOff(l):
			bits[i] = false
		default:
			return 0, false // noisy/uncertain bit
		}
	}

	// bits order: C1 A1 C2 A2 C4 A4 B1 D1 B2 D2 B4 D4
	c1, a1, c2, a2, c4, a4 := bits[0], bits[1], bits[2], bits[3], bits[4], bits[5]
	b1, d1, b2, d2, b4, d4 := bits[6], bits[7], bits[8], bits[9], bits[10], bits[11]

	toBit := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	a := toBit(a4)<<2 | toBit(a2)<<1 | toBit(a1)
	b := toBit(b4)<<2 | toBit(b2)<<1 | toBit(b1)
	c := toBit(c4)<<2 | toBit(c2)<<1 | toBit(c1)
	dNibble := toBit(d4)<<2 | toBit(d2)<<1 | toBit(d1)

	// Canonical ABCD reply code: four octal digits A B C D.
	code := a<<9 | b<<6 | c<<3 | dNibble
	return code, true
}
