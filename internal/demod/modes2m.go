package demod

import (
	"github.com/regentag/go1090/internal/fifo"
	"github.com/regentag/go1090/internal/modes"
)

// ModeS2M demodulates Mode S at 2.0 MS/s: each bit occupies exactly two
// samples (spec §4.4.2). It is the default/reference rate: slower SDRs
// (2.0 MS/s) get one sample pair per bit, no sub-bit correlation needed.
type ModeS2M struct {
	// MaxErrorBits caps how many ambiguous ("a==b") bit cells a candidate
	// may have before its payload is re-sliced through phase enhancement
	// instead of being used as first sliced.
	MaxErrorBits int
}

// NewModeS2M returns a ready-to-use demodulator with the spec's default
// error tolerance.
func NewModeS2M() *ModeS2M {
	return &ModeS2M{MaxErrorBits: 5}
}

// dfKnownGoodMask has a bit set for every Downlink Format that can
// legitimately appear on the wire (spec §4.4.2: 0,4,5,11,16..22,24).
const dfKnownGoodMask uint32 = 0x017F0831

// Demod implements Demodulator for the 2.0 MS/s path.
func (d *ModeS2M) Demod(buf *fifo.MagBuf, cb Callback) {
	m := buf.Data
	mlen := buf.ValidLength - buf.Overlap

	for j := 0; j < mlen; j++ {
		if j+10 >= len(m) {
			break
		}
		if !d.matchPreamble(m, j) {
			continue
		}

		sigLevel := (m[j] + m[j+2] + m[j+7] + m[j+9]) / 4
		start := j + 16 // preamble is 8 bits (16 samples) long

		bits, errs, ok := sliceBits(m, start, modes.ShortBits)
		if !ok {
			continue
		}

		if errs[0:5].count() > 0 {
			// DF field itself was ambiguous; not worth decoding further.
			continue
		}

		df := bitsToByte(bits[:8]) >> 3
		wireBits := messageLenForDF(int(df))
		if wireBits > modes.ShortBits {
			bits, errs, ok = sliceBits(m, start, wireBits)
			if !ok {
				continue
			}
		}

		totalErrs := errs[:wireBits].count()
		data := packBits(bits[:wireBits])

		if totalErrs > d.MaxErrorBits {
			if enhanced, ok := phaseEnhance(m, j, start, wireBits); ok {
				data = enhanced
			} else {
				continue
			}
		}

		fixKnownGoodDF(data)

		cb(RawMessage{
			Data:            data,
			Bits:            wireBits,
			Signal:          float64(sigLevel),
			SampleTimestamp: buf.SampleTimestamp + uint64(j),
			SysTimestamp:    buf.SysTimestamp,
		})
	}
}

// matchPreamble applies the nine strict sample-ordering inequalities of
// the Mode S preamble shape plus the "stay below the running high
// reference" quiet-zone check for bit cells 4-5 and 11-14 (spec §4.4.2).
func (d *ModeS2M) matchPreamble(m []uint16, j int) bool {
	if !(m[j] > m[j+1] &&
		m[j+1] < m[j+2] &&
		m[j+2] > m[j+3] &&
		m[j+3] < m[j] &&
		m[j+4] < m[j] &&
		m[j+5] < m[j] &&
		m[j+6] < m[j] &&
		m[j+7] > m[j+8] &&
		m[j+8] < m[j+9]) {
		return false
	}

	high := (m[j] + m[j+2] + m[j+7] + m[j+9]) / 6
	for _, k := range []int{4, 5, 11, 12, 13, 14} {
		if j+k >= len(m) {
			return false
		}
		if m[j+k] >= high {
			return false
		}
	}
	return true
}

func messageLenForDF(df int) int {
	switch df {
	case 0, 4, 5, 11:
		return modes.ShortBits
	default:
		return modes.LongBits
	}
}

type errCounts []bool

func (e errCounts) count() int {
	n := 0
	for _, b := range e {
		if b {
			n++
		}
	}
	return n
}

// sliceBits decodes up to want bits starting at sample offset start,
// comparing the two samples of each bit cell: a>b is 1, a<b is 0, a==b is
// an ambiguous bit recorded in errs. ok is false if the buffer doesn't
// have enough samples for want bits.
func sliceBits(m []uint16, start, want int) (bits []int, errs errCounts, ok bool) {
	if start+2*want > len(m) {
		return nil, nil, false
	}
	bits = make([]int, want)
	errs = make(errCounts, want)
	for i := 0; i < want; i++ {
		a, b := m[start+2*i], m[start+2*i+1]
		switch {
		case a > b:
			bits[i] = 1
		case a < b:
			bits[i] = 0
		default:
			errs[i] = true
		}
	}
	return bits, errs, true
}

func bitsToByte(bits []int) byte {
	var v byte
	for _, b := range bits {
		v = v<<1 | byte(b)
	}
	return v
}

// fixKnownGoodDF checks the DF field against the bitmask of legitimate
// Downlink Formats and, if it falls outside, flips the lowest DF bit whose
// toggle lands inside the mask (spec §4.4.2). It applies to any out-of-mask
// DF: Demod drops candidates with an ambiguous DF bit before this point, so
// no DF bit reaches here as a guess.
func fixKnownGoodDF(data []byte) {
	df := int(data[0]) >> 3
	if dfKnownGoodMask&(1<<uint(df)) != 0 {
		return
	}
	for bit := 3; bit < 8; bit++ {
		toggled := data[0] ^ (1 << uint(bit))
		if dfKnownGoodMask&(1<<uint(toggled>>3)) != 0 {
			data[0] = toggled
			return
		}
	}
}

// phaseEnhance retries a payload that failed bit-slicing by classifying
// the preamble as "early" or "late" (energy leaked from an adjacent bit)
// and rescaling the adjacent sample of every bit cell in a private copy,
// per spec §4.4.5. The original buffer m is never modified.
func phaseEnhance(m []uint16, preambleStart, payloadStart, wireBits int) ([]byte, bool) {
	if preambleStart+11 >= len(m) {
		return nil, false
	}

	onTime := float64(m[preambleStart]) + float64(m[preambleStart+2]) +
		float64(m[preambleStart+7]) + float64(m[preambleStart+9])

	var early float64
	if preambleStart > 0 {
		early = float64(m[preambleStart-1]) + float64(m[preambleStart+3]) +
			float64(m[preambleStart+6]) + float64(m[preambleStart+10])
	}
	late := float64(m[preambleStart+1]) + float64(m[preambleStart+3]) +
		float64(m[preambleStart+6]) + float64(m[preambleStart+10])

	if onTime <= 0 {
		return nil, false
	}

	var scale float64
	isLate := late > early
	if isLate {
		scale = 1 - late/(late+onTime)
	} else {
		scale = 1 + early/(early+onTime)
	}

	if payloadStart+2*wireBits > len(m) {
		return nil, false
	}
	cp := make([]uint16, 2*wireBits)
	copy(cp, m[payloadStart:payloadStart+2*wireBits])

	for i := 0; i < wireBits; i++ {
		idx := 2 * i
		var adj int
		if isLate {
			adj = idx + 1
		} else {
			adj = idx
		}
		cp[adj] = uint16(float64(cp[adj]) * scale)
	}

	bits := make([]int, wireBits)
	for i := 0; i < wireBits; i++ {
		a, b := cp[2*i], cp[2*i+1]
		if a > b {
			bits[i] = 1
		}
	}
	return packBits(bits), true
}
