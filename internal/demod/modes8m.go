package demod

import (
	"github.com/regentag/go1090/internal/fifo"
	"github.com/regentag/go1090/internal/modes"
)

// searchBack and searchAhead bound the phase-alignment scan the 8 MS/s
// demodulator performs around a detected peak (spec §4.4.3).
const (
	searchBack  = 4
	searchAhead = 12
)

const samplesPerBit8M = 8

// ModeS8M demodulates Mode S at 8.0 MS/s using a sliding 56-bit
// correlation across eight sub-phases per bit period rather than the
// direct two-samples-per-bit slicing the 2.0 MS/s path uses (spec §4.4.3).
type ModeS8M struct {
	noiseLongTerm float64
}

// NewModeS8M returns a ready-to-use demodulator.
func NewModeS8M() *ModeS8M {
	return &ModeS8M{noiseLongTerm: 1}
}

func (d *ModeS8M) Demod(buf *fifo.MagBuf, cb Callback) {
	m := buf.Data
	mlen := buf.ValidLength - buf.Overlap

	diff := make([]int32, len(m))
	for j := 0; j+4 < len(m); j++ {
		diff[j] = int32(m[j]) - int32(m[j+4])
	}

	windowBits := modes.ShortBits + modes.LongBits // 168

	for j := 0; j < mlen; j += samplesPerBit8M {
		phaseSums := make([]int64, samplesPerBit8M)
		for phase := 0; phase < samplesPerBit8M; phase++ {
			phaseSums[phase] = d.phaseSum(diff, j+phase, windowBits)
		}

		maxPhase, maxSum := 0, int64(0)
		for phase, sum := range phaseSums {
			if sum > maxSum {
				maxSum, maxPhase = sum, phase
			}
		}

		threshold := int64(1.5 * d.noiseLongTerm * float64(windowBits))
		if maxSum <= threshold {
			d.updateNoiseEstimate(phaseSums)
			continue
		}

		start := j + maxPhase
		shortBest := d.pickPeak(diff, start, modes.ShortBits)
		longBest := d.pickPeak(diff, start, modes.LongBits)

		d.tryCandidates(m, start, shortBest, modes.ShortBits, buf, cb)
		d.tryCandidates(m, start, longBest, modes.LongBits, buf, cb)

		d.updateNoiseEstimate(phaseSums)
	}
}

// phaseSum rolls up |diff| over bits bit periods starting at sample
// offset start, one sample per bit (1-bit spacing per spec §4.4.3).
func (d *ModeS8M) phaseSum(diff []int32, start, bits int) int64 {
	var sum int64
	for b := 0; b < bits; b++ {
		idx := start + b*samplesPerBit8M
		if idx >= len(diff) {
			break
		}
		v := diff[idx]
		if v < 0 {
			v = -v
		}
		sum += int64(v)
	}
	return sum
}

// pickPeak finds the best-aligned bit-period offset (within
// ±searchBack/searchAhead of start) for a candidate of the given bit
// length, by summed |diff| magnitude.
func (d *ModeS8M) pickPeak(diff []int32, start, bits int) int {
	best, bestSum := start, int64(-1)
	for off := -searchBack; off <= searchAhead; off++ {
		cand := start + off*samplesPerBit8M
		if cand < 0 {
			continue
		}
		sum := d.phaseSum(diff, cand, bits)
		if sum > bestSum {
			bestSum, best = sum, cand
		}
	}
	return best
}

// updateNoiseEstimate folds the lowest observed phase sum into a slow
// exponential long-term noise floor estimate.
func (d *ModeS8M) updateNoiseEstimate(phaseSums []int64) {
	min := phaseSums[0]
	for _, s := range phaseSums[1:] {
		if s < min {
			min = s
		}
	}
	sample := float64(min) / float64(modes.ShortBits+modes.LongBits)
	d.noiseLongTerm = d.noiseLongTerm*0.999 + sample*0.001
}

// tryCandidates decodes bit-slices at start±(searchBack..searchAhead) bit
// periods, scores each with the shared CRC-based scorer, and emits the
// best-scoring alignment (spec §4.4.3/4.4.4).
func (d *ModeS8M) tryCandidates(m []uint16, start, alignedStart, bits int, buf *fifo.MagBuf, cb Callback) {
	bestScore := modes.ScoreReject
	var bestData []byte
	var bestIdx int

	for off := -searchBack; off <= searchAhead; off++ {
		idx := alignedStart + off*samplesPerBit8M
		if idx < 0 || idx+bits*samplesPerBit8M > len(m) {
			continue
		}
		data := sliceBits8M(m, idx, bits)
		score := modes.Score(data, bits)
		if score > bestScore {
			bestScore, bestData, bestIdx = score, data, idx
		}
	}

	if bestData == nil || bestScore == modes.ScoreReject {
		return
	}

	sig := float64(m[start])
	if start+2 < len(m) {
		sig = (float64(m[start]) + float64(m[start+2])) / 2
	}

	cb(RawMessage{
		Data:            bestData,
		Bits:            bits,
		Signal:          sig,
		SampleTimestamp: buf.SampleTimestamp + uint64(bestIdx),
		SysTimestamp:    buf.SysTimestamp,
	})
}

// sliceBits8M decodes bits starting at sample offset start by summing
// three consecutive diff samples per bit and taking the sign (spec
// §4.4.3), rather than the direct two-sample comparison the 2.0 MS/s path
// uses.
func sliceBits8M(m []uint16, start, bits int) []byte {
	out := make([]int, bits)
	for i := 0; i < bits; i++ {
		base := start + i*samplesPerBit8M
		var sum int64
		for k := 0; k < 3 && base+k+4 < len(m); k++ {
			sum += int64(m[base+k]) - int64(m[base+k+4])
		}
		if sum > 0 {
			out[i] = 1
		}
	}
	return packBits(out)
}
