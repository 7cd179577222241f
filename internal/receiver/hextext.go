package receiver

import (
	"encoding/hex"

	"github.com/regentag/go1090/internal/demod"
)

// decodeHexPayload decodes a bare hex string (14 or 28 hex digits, i.e. a
// 56- or 112-bit Mode S message) with no framing punctuation, used by
// CSVReplay where the delimiter is the CSV comma rather than '*'/';'.
func decodeHexPayload(hexstr string) ([]byte, bool) {
	switch len(hexstr) {
	case 14, 28:
	default:
		return nil, false
	}
	data, err := hex.DecodeString(hexstr)
	if err != nil {
		return nil, false
	}
	return data, true
}

// rawMessageFrom wraps an already-demodulated payload as a demod.RawMessage
// so it can be handed to Driver.handleCandidate exactly like a live
// detection, with ts (CSV seconds) converted to the same 1/12MHz sample
// timestamp unit the live demodulators use.
func rawMessageFrom(data []byte, bits int, ts float64) demod.RawMessage {
	return demod.RawMessage{
		Data:            data,
		Bits:            bits,
		SampleTimestamp: uint64(ts * 12_000_000),
	}
}

// ParseHexText parses one line of the teacher's rtl_adsb wire format,
// "*112233445566778899AABBCCDDEE;" (14 bytes/28 hex digits, always padded
// to the 112-bit wire length regardless of the message's real DF),
// grounded directly on rtl_adsb.parseADSB/isValidMsgText, widened per spec
// §6 to also accept a 14-hex-digit (56-bit) short-form line.
func ParseHexText(line string) ([]byte, bool) {
	if len(line) < 2 || line[0] != '*' {
		return nil, false
	}
	end := len(line) - 1
	if line[end] != ';' {
		return nil, false
	}
	body := line[1:end]
	switch len(body) {
	case 14, 28:
	default:
		return nil, false
	}
	data, err := hex.DecodeString(body)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Beast message type markers, per the de facto Mode S Beast binary
// protocol (escaped 0x1a frame start byte).
const (
	beastEsc        = 0x1a
	beastModeAC     = '1'
	beastModeSShort = '2'
	beastModeSLong  = '3'
)

// BeastFrame is one de-escaped Beast-format frame: a 1-byte type marker, a
// 6-byte big-endian timestamp (1/12MHz units, matching internal clock
// convention), a signal-level byte, and the Mode A/C or Mode S payload.
type BeastFrame struct {
	Type      byte
	Timestamp uint64
	Signal    byte
	Data      []byte
}

// ParseBeastLine consumes one Beast frame (including its 0x1a start byte
// and 0x1a-escaped payload) from buf, returning the parsed frame and the
// number of bytes consumed. ok is false if buf doesn't yet hold a
// complete frame (the caller should read more and retry), matching the
// streaming-parser shape spec §6's external-interfaces section expects
// for a TCP Beast feed.
func ParseBeastLine(buf []byte) (frame BeastFrame, consumed int, ok bool) {
	if len(buf) < 2 || buf[0] != beastEsc {
		return BeastFrame{}, 0, false
	}

	payloadLen := 0
	switch buf[1] {
	case beastModeAC:
		payloadLen = 2
	case beastModeSShort:
		payloadLen = 7
	case beastModeSLong:
		payloadLen = 14
	default:
		return BeastFrame{}, 0, false
	}

	// Total unescaped wire length: type byte + 6 timestamp + 1 signal +
	// payload, each 0x1a byte in that run doubled on the wire.
	wireLen := 1 + 6 + 1 + payloadLen
	raw := make([]byte, 0, wireLen)
	i := 2 // skip the frame's own leading 0x1a and type byte already read
	raw = append(raw, buf[1])

	for len(raw) < wireLen {
		if i >= len(buf) {
			return BeastFrame{}, 0, false
		}
		b := buf[i]
		if b == beastEsc {
			if i+1 >= len(buf) {
				return BeastFrame{}, 0, false
			}
			if buf[i+1] == beastEsc {
				raw = append(raw, beastEsc)
				i += 2
				continue
			}
			// An unescaped 0x1a starts the next frame: this one was short.
			return BeastFrame{}, 0, false
		}
		raw = append(raw, b)
		i++
	}

	var ts uint64
	for _, b := range raw[1:7] {
		ts = ts<<8 | uint64(b)
	}

	return BeastFrame{
		Type:      raw[0],
		Timestamp: ts,
		Signal:    raw[7],
		Data:      append([]byte(nil), raw[8:]...),
	}, i, true
}
