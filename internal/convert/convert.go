// Package convert turns raw SDR sample bytes into normalized 16-bit
// magnitudes, selecting among format-specific implementations the way the
// teacher's single modesChecksum-adjacent "pick one function pointer at
// init" pattern worked, generalized here to a capability-matched registry
// (spec §4.2, §4.9 "function pointer per converter" design note).
package convert

import (
	"fmt"
	"math"

	"github.com/regentag/go1090/internal/magnitude"
)

// Format identifies the wire sample format produced by the SDR driver.
type Format int

const (
	FormatUC8 Format = iota
	FormatSC16
	FormatSC16Q11
)

func (f Format) String() string {
	switch f {
	case FormatUC8:
		return "UC8"
	case FormatSC16:
		return "SC16"
	case FormatSC16Q11:
		return "SC16Q11"
	default:
		return "unknown"
	}
}

// Stats are the block-level statistics a converter reports alongside the
// converted samples.
type Stats struct {
	MeanLevel float64
	MeanPower float64
}

// Converter turns one block of raw samples into magnitudes, appending to
// out (which must have capacity for len(raw)/bytesPerSample samples) and
// returning it along with block statistics. Implementations that hold DC
// filter state are not safe for concurrent use by more than one stream;
// callers construct one Converter per stream.
type Converter interface {
	Convert(raw []byte, out []uint16) ([]uint16, Stats)
	BytesPerSample() int
}

type registryRow struct {
	format       Format
	filterDC     bool
	computePower bool
	new          func(sampleRate float64) Converter
}

// registry is consulted in order; the first row whose format matches and
// whose capabilities are a superset of what's requested is selected.
var registry = []registryRow{
	{FormatUC8, false, false, func(float64) Converter { return &uc8Table{} }},
	{FormatUC8, false, true, func(float64) Converter { return &uc8TablePower{} }},
	{FormatUC8, true, true, func(sr float64) Converter { return newFloatConverter(sr, 127.5, 127.5) }},
	{FormatSC16, false, false, func(float64) Converter { return &sc16Linear{} }},
	{FormatSC16, true, true, func(sr float64) Converter { return newFloatConverter(sr, 32768, 32768) }},
	{FormatSC16Q11, true, true, func(sr float64) Converter { return newFloatConverter(sr, 2048, 2048) }},
}

// Select returns the first converter matching format whose capabilities
// cover filterDC/computePower, constructed for the given sample rate (used
// by the DC-blocking float paths). It fails with a descriptive error if no
// row matches, per spec §4.2's init-failure contract.
func Select(format Format, filterDC, computePower bool, sampleRate float64) (Converter, error) {
	for _, row := range registry {
		if row.format != format {
			continue
		}
		if filterDC && !row.filterDC {
			continue
		}
		if computePower && !row.computePower {
			continue
		}
		return row.new(sampleRate), nil
	}
	return nil, fmt.Errorf("convert: no converter for format=%s filterDC=%v computePower=%v", format, filterDC, computePower)
}

// uc8Table is the straight LUT path: no DC removal, no power metering.
type uc8Table struct{}

func (c *uc8Table) BytesPerSample() int { return 2 }

func (c *uc8Table) Convert(raw []byte, out []uint16) ([]uint16, Stats) {
	n := len(raw) / 2
	out = ensureCap(out, n)
	for i := 0; i < n; i++ {
		out[i] = magnitude.Lookup(raw[2*i], raw[2*i+1])
	}
	return out, Stats{}
}

// uc8TablePower is the LUT path plus a running mean-power accumulator.
type uc8TablePower struct{}

func (c *uc8TablePower) BytesPerSample() int { return 2 }

func (c *uc8TablePower) Convert(raw []byte, out []uint16) ([]uint16, Stats) {
	n := len(raw) / 2
	out = ensureCap(out, n)
	var sumLevel, sumPower float64
	for i := 0; i < n; i++ {
		m := magnitude.Lookup(raw[2*i], raw[2*i+1])
		out[i] = m
		norm := float64(m) / 65535.0
		sumLevel += norm
		sumPower += norm * norm
	}
	stats := Stats{}
	if n > 0 {
		stats.MeanLevel = sumLevel / float64(n)
		stats.MeanPower = sumPower / float64(n)
	}
	return out, stats
}

// sc16Linear is SC16's piecewise-linear approximation of sqrt(I^2+Q^2),
// good to within about 1% over two breakpoints, avoiding a sqrt per
// sample for the integer/no-DC/no-power path.
type sc16Linear struct{}

func (c *sc16Linear) BytesPerSample() int { return 4 }

func (c *sc16Linear) Convert(raw []byte, out []uint16) ([]uint16, Stats) {
	n := len(raw) / 4
	out = ensureCap(out, n)
	for i := 0; i < n; i++ {
		iSample := int16(uint16(raw[4*i]) | uint16(raw[4*i+1])<<8)
		qSample := int16(uint16(raw[4*i+2]) | uint16(raw[4*i+3])<<8)
		out[i] = sc16LinearMag(iSample, qSample)
	}
	return out, Stats{}
}

// sc16LinearMag approximates hypot(i, q) using piecewise alpha-max
// plus-beta-min coefficients, scaled so that full-scale int16
// input maps to full-scale uint16 magnitude.
func sc16LinearMag(i, q int16) uint16 {
	ai, aq := math.Abs(float64(i)), math.Abs(float64(q))
	mx, mn := ai, aq
	if mn > mx {
		mx, mn = mn, mx
	}

	var mag float64
	switch {
	case mx == 0:
		mag = 0
	case mn <= mx*0.2: // thin ellipse: max dominates
		mag = 0.9975*mx + 0.0990*mn
	case mn <= mx*0.6:
		mag = 0.9386*mx + 0.3660*mn
	default:
		mag = 0.7894*mx + 0.6201*mn
	}

	mag = mag / 32768.0 * 65535.0
	if mag > 65535 {
		mag = 65535
	}
	return uint16(mag)
}

// floatConverter implements the UC8/SC16/SC16Q11 float paths: per-sample
// demean into [-1,1], a single-pole DC-blocking IIR with independent state
// for I and Q (owned by the instance, not global, per spec §4.9), then
// magnitude with clamping and optional power accumulation.
type floatConverter struct {
	scaleI, scaleQ float64 // divisor to bring raw samples to [-1,1]
	offsetI        float64 // not set or read; the UC8 127.5 offset is applied inside decodeIQ
	b, a           float64 // DC-block IIR coefficients
	z1I, z1Q       float64
	bytesPerSample int
	decodeIQ       func(raw []byte, i int) (float64, float64)
}

func newFloatConverter(sampleRate, scale, offset float64) *floatConverter {
	b := math.Exp(-2 * math.Pi / sampleRate)
	fc := &floatConverter{
		scaleI: scale,
		scaleQ: scale,
		b:      b,
		a:      1 - b,
	}
	if offset != 0 {
		// UC8: unsigned bytes centered on 127.5.
		fc.bytesPerSample = 2
		fc.decodeIQ = func(raw []byte, i int) (float64, float64) {
			return (float64(raw[2*i]) - 127.5) / 127.5, (float64(raw[2*i+1]) - 127.5) / 127.5
		}
		return fc
	}
	// Signed 16-bit formats (SC16 full scale or SC16Q11 Q11 fixed point).
	fc.bytesPerSample = 4
	fc.decodeIQ = func(raw []byte, i int) (float64, float64) {
		iSample := int16(uint16(raw[4*i]) | uint16(raw[4*i+1])<<8)
		qSample := int16(uint16(raw[4*i+2]) | uint16(raw[4*i+3])<<8)
		return float64(iSample) / scale, float64(qSample) / scale
	}
	return fc
}

func (c *floatConverter) BytesPerSample() int { return c.bytesPerSample }

func (c *floatConverter) Convert(raw []byte, out []uint16) ([]uint16, Stats) {
	n := len(raw) / c.bytesPerSample
	out = ensureCap(out, n)

	var sumLevel, sumPower float64
	for i := 0; i < n; i++ {
		di, dq := c.decodeIQ(raw, i)

		c.z1I = c.b*c.z1I + c.a*di
		c.z1Q = c.b*c.z1Q + c.a*dq
		fi := di - c.z1I
		fq := dq - c.z1Q

		mag := math.Sqrt(fi*fi + fq*fq)
		if mag > 1 {
			mag = 1
		}
		out[i] = uint16(mag * 65535.0)

		sumLevel += mag
		sumPower += mag * mag
	}

	stats := Stats{}
	if n > 0 {
		stats.MeanLevel = sumLevel / float64(n)
		stats.MeanPower = sumPower / float64(n)
	}
	return out, stats
}

func ensureCap(out []uint16, n int) []uint16 {
	if cap(out) < n {
		return make([]uint16, n)
	}
	return out[:n]
}
