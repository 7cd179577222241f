package demod

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regentag/go1090/internal/fifo"
	"github.com/regentag/go1090/internal/modes"
)

func samplesFromBits(preamble []uint16, bits []byte, nbits int) []uint16 {
	out := append([]uint16{}, preamble...)
	for i := 0; i < nbits; i++ {
		byteIdx := i / 8
		bitIdx := uint(7 - i%8)
		bit := (bits[byteIdx] >> bitIdx) & 1
		if bit == 1 {
			out = append(out, 800, 50)
		} else {
			out = append(out, 50, 800)
		}
	}
	return out
}

func cleanPreamble() []uint16 {
	// Samples 0,2,7,9 high; everything else low, matching the inequality
	// and quiet-zone checks in matchPreamble.
	p := make([]uint16, 16)
	for i := range p {
		p[i] = 20
	}
	p[0] = 900
	p[2] = 900
	p[7] = 900
	p[9] = 900
	return p
}

func TestMatchPreambleAcceptsCleanShape(t *testing.T) {
	d := NewModeS2M()
	m := cleanPreamble()
	m = append(m, make([]uint16, 32)...)
	require.True(t, d.matchPreamble(m, 0))
}

func TestMatchPreambleRejectsFlatSignal(t *testing.T) {
	d := NewModeS2M()
	m := make([]uint16, 32)
	for i := range m {
		m[i] = 100
	}
	require.False(t, d.matchPreamble(m, 0))
}

func TestModeS2MDemodFindsCleanDF11(t *testing.T) {
	msg := make([]byte, modes.ShortBits/8)
	msg[0] = 11 << 3 // DF11, CA=0, leaves a zero ICAO/CRC tail

	data := samplesFromBits(cleanPreamble(), msg, modes.ShortBits)
	data = append(data, make([]uint16, 32)...) // padding for look-ahead

	buf := &fifo.MagBuf{
		Data:        data,
		ValidLength: len(data),
		TotalLength: len(data),
		Overlap:     16,
	}

	var got []RawMessage
	d := NewModeS2M()
	d.Demod(buf, func(m RawMessage) { got = append(got, m) })

	require.NotEmpty(t, got)
	require.Equal(t, modes.ShortBits, got[0].Bits)
	require.Equal(t, byte(11<<3), got[0].Data[0])
}

func TestFixKnownGoodDFTogglesBadGuess(t *testing.T) {
	data := []byte{byte(3 << 3), 0, 0, 0, 0, 0, 0} // DF3 is not in the known-good mask
	fixKnownGoodDF(data)
	df := int(data[0]) >> 3
	require.NotEqual(t, 3, df)
}

func TestSliceBitsReportsAmbiguousCells(t *testing.T) {
	m := []uint16{100, 100, 900, 50}
	bits, errs, ok := sliceBits(m, 0, 2)
	require.True(t, ok)
	require.True(t, errs[0])
	require.Equal(t, 1, bits[1])
}
