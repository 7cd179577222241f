package receiver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHexTextAcceptsTeacherFormat(t *testing.T) {
	data, ok := ParseHexText("*8D4840D6202CC371C32CE0576098;")
	require.True(t, ok)
	require.Len(t, data, 14)
	require.Equal(t, byte(0x8D), data[0])
}

func TestParseHexTextRejectsMissingPunctuation(t *testing.T) {
	_, ok := ParseHexText("8D4840D6202CC371C32CE0576098")
	require.False(t, ok)
}

func TestParseHexTextAcceptsShortForm(t *testing.T) {
	data, ok := ParseHexText("*02E19838B5B9AA;")
	require.True(t, ok)
	require.Len(t, data, 7)
}

func TestDecodeHexPayloadRejectsOddLength(t *testing.T) {
	_, ok := decodeHexPayload("ABCDE")
	require.False(t, ok)
}

func TestParseBeastLineDecodesModeSLongFrame(t *testing.T) {
	payload := make([]byte, 14)
	for i := range payload {
		payload[i] = byte(i)
	}

	frame := []byte{beastEsc, beastModeSLong}
	frame = append(frame, 0, 0, 0, 0, 0, 1) // timestamp = 1
	frame = append(frame, 0x80)             // signal
	frame = append(frame, payload...)

	got, consumed, ok := ParseBeastLine(frame)
	require.True(t, ok)
	require.Equal(t, len(frame), consumed)
	require.Equal(t, uint64(1), got.Timestamp)
	require.Equal(t, payload, got.Data)
}

func TestParseBeastLineEscapesDoubled0x1A(t *testing.T) {
	payload := make([]byte, 14)
	payload[3] = beastEsc // will be doubled on the wire

	frame := []byte{beastEsc, beastModeSLong}
	frame = append(frame, 0, 0, 0, 0, 0, 0)
	frame = append(frame, 0)
	for i, b := range payload {
		frame = append(frame, b)
		if b == beastEsc {
			frame = append(frame, beastEsc) // escape it
		}
		_ = i
	}

	got, _, ok := ParseBeastLine(frame)
	require.True(t, ok)
	require.Equal(t, payload, got.Data)
}

func TestParseBeastLineIncompleteReturnsNotOK(t *testing.T) {
	_, _, ok := ParseBeastLine([]byte{beastEsc, beastModeSLong, 0, 0})
	require.False(t, ok)
}
