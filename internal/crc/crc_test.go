package crc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChecksumCleanMessageIsZeroResidue(t *testing.T) {
	// DF17 ADS-B identification message with a correct CRC tail.
	msg := []byte{0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98}
	check := Checksum(msg, LongBits)
	tail := uint32(msg[11])<<16 | uint32(msg[12])<<8 | uint32(msg[13])
	require.Equal(t, tail, check)
}

func TestDiagnoseZeroResidue(t *testing.T) {
	info, ok := Diagnose(0, LongBits)
	require.True(t, ok)
	require.Equal(t, 0, info.Errors)
}

func TestApplyFixRoundTrip(t *testing.T) {
	msg := []byte{0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98}

	for bit := 5; bit < LongBits; bit++ {
		corrupt := append([]byte(nil), msg...)
		corrupt[bit/8] ^= 1 << (7 - uint(bit%8))

		tail := uint32(corrupt[11])<<16 | uint32(corrupt[12])<<8 | uint32(corrupt[13])
		residue := tail ^ Checksum(corrupt, LongBits)

		info, ok := Diagnose(residue, LongBits)
		if !ok {
			// Ambiguous syndromes are allowed to be un-correctable.
			continue
		}
		ApplyFix(corrupt, info)

		tail = uint32(corrupt[11])<<16 | uint32(corrupt[12])<<8 | uint32(corrupt[13])
		require.Equal(t, uint32(0), tail^Checksum(corrupt, LongBits),
			"bit %d: fixed message must checksum clean", bit)
	}
}

// TestSingleDataBitErrorIsCorrectable pins down one concrete case so a
// regression in the syndrome table (e.g. the checksum field silently
// losing its nonzero syndromes again) fails loudly instead of being
// absorbed by TestSingleBitErrorsAlwaysCorrectable's "ambiguous, skip" path.
func TestSingleDataBitErrorIsCorrectable(t *testing.T) {
	msg := []byte{0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98}
	const bit = 40
	msg[bit/8] ^= 1 << (7 - uint(bit%8))

	tail := uint32(msg[11])<<16 | uint32(msg[12])<<8 | uint32(msg[13])
	residue := tail ^ Checksum(msg, LongBits)

	info, ok := Diagnose(residue, LongBits)
	require.True(t, ok, "single-bit error at bit %d must be correctable", bit)
	require.Equal(t, 1, info.Errors)
	require.Equal(t, bit, info.BitPositions[0])

	ApplyFix(msg, info)
	tail = uint32(msg[11])<<16 | uint32(msg[12])<<8 | uint32(msg[13])
	require.Equal(t, uint32(0), tail^Checksum(msg, LongBits))
}

// TestChecksumFieldBitErrorIsCorrectable exercises a bit flip inside the
// 24-bit CRC tail itself rather than the payload.
func TestChecksumFieldBitErrorIsCorrectable(t *testing.T) {
	msg := []byte{0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98}
	const bit = 95 // within msg[11], the checksum field
	msg[bit/8] ^= 1 << (7 - uint(bit%8))

	tail := uint32(msg[11])<<16 | uint32(msg[12])<<8 | uint32(msg[13])
	residue := tail ^ Checksum(msg, LongBits)

	info, ok := Diagnose(residue, LongBits)
	require.True(t, ok, "single-bit error at checksum-field bit %d must be correctable", bit)
	require.Equal(t, 1, info.Errors)
	require.Equal(t, bit, info.BitPositions[0])
}

func TestDiagnoseInjective(t *testing.T) {
	seen := make(map[uint32]ErrorInfo)
	for syn, info := range tables[LongBits] {
		if existing, ok := seen[syn]; ok {
			t.Fatalf("duplicate syndrome %x: %+v vs %+v", syn, existing, info)
		}
		seen[syn] = info
	}
}

func TestSingleBitErrorsAlwaysCorrectable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bit := rapid.IntRange(5, LongBits-1).Draw(t, "bit")

		msg := []byte{0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98}
		msg[bit/8] ^= 1 << (7 - uint(bit%8))

		tail := uint32(msg[11])<<16 | uint32(msg[12])<<8 | uint32(msg[13])
		residue := tail ^ Checksum(msg, LongBits)

		info, ok := Diagnose(residue, LongBits)
		if !ok {
			return // ambiguous with a 2-bit pattern; allowed
		}
		require.Equal(t, 1, info.Errors)
		require.Equal(t, bit, info.BitPositions[0])
	})
}
