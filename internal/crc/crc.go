// Package crc implements the Mode S 24-bit CRC and its syndrome-based
// single/double bit error correction tables.
//
// The checksum itself is the same table-driven polynomial division the
// teacher repo's mode_s.modesChecksum used (one row per bit position, XOR
// the rows whose bit is set); the syndrome tables layered on top are new,
// built the way bratwurzt-rtlamr's BCH.ComputeSyndromes builds its own
// error tables: recursive expansion over bit-position combinations,
// dropping any syndrome more than one combination produces.
package crc

// Generator is the Mode S 24-bit CRC generator polynomial.
const Generator = 0xFFF409

const (
	LongBits  = 112
	ShortBits = 56
)

// checksumTable holds, for each of the 112 payload bit positions (MSB
// first), that bit's contribution to the 24-bit CRC. For 56-bit messages
// only the last 56 rows apply; the CRC's trailing 24 bits are zero rows
// since the checksum field itself never feeds back into the checksum.
var checksumTable = [112]uint32{
	0x3935ea, 0x1c9af5, 0xf1b77e, 0x78dbbf, 0xc397db, 0x9e31e9, 0xb0e2f0, 0x587178,
	0x2c38bc, 0x161c5e, 0x0b0e2f, 0xfa7d13, 0x82c48d, 0xbe9842, 0x5f4c21, 0xd05c14,
	0x682e0a, 0x341705, 0xe5f186, 0x72f8c3, 0xc68665, 0x9cb936, 0x4e5c9b, 0xd8d449,
	0x939020, 0x49c810, 0x24e408, 0x127204, 0x093902, 0x049c81, 0xfdb444, 0x7eda22,
	0x3f6d11, 0xe04c8c, 0x702646, 0x381323, 0xe3f395, 0x8e03ce, 0x4701e7, 0xdc7af7,
	0x91c77f, 0xb719bb, 0xa476d9, 0xadc168, 0x56e0b4, 0x2b705a, 0x15b82d, 0xf52612,
	0x7a9309, 0xc2b380, 0x6159c0, 0x30ace0, 0x185670, 0x0c2b38, 0x06159c, 0x030ace,
	0x018567, 0xff38b7, 0x80665f, 0xbfc92b, 0xa01e91, 0xaff54c, 0x57faa6, 0x2bfd53,
	0xea04ad, 0x8af852, 0x457c29, 0xdd4410, 0x6ea208, 0x375104, 0x1ba882, 0x0dd441,
	0xf91024, 0x7c8812, 0x3e4409, 0xe0d800, 0x706c00, 0x383600, 0x1c1b00, 0x0e0d80,
	0x0706c0, 0x038360, 0x01c1b0, 0x00e0d8, 0x00706c, 0x003836, 0x001c1b, 0xfff409,
	0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000,
	0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000,
	0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000, 0x000000,
}

// Checksum computes the 24-bit Mode S CRC over msg, which must be exactly
// bits/8 bytes. It returns the CRC itself, not the residue: the transmitted
// tail is not folded in. The trailing 24 bits (the CRC field itself) are included in
// the bit scan but their table rows are zero, so they don't perturb the
// result; callers compare the return value against the transmitted 24-bit
// tail to check for errors, or XOR against an expected value to recover an
// address field for DF0/4/5/16/20/21.
func Checksum(msg []byte, bits int) uint32 {
	var offset int
	if bits == LongBits {
		offset = 0
	} else {
		offset = LongBits - ShortBits
	}

	var crc uint32
	for j := 0; j < bits; j++ {
		byteIdx := j / 8
		bitMask := byte(1) << (7 - uint(j%8))
		if msg[byteIdx]&bitMask != 0 {
			crc ^= checksumTable[j+offset]
		}
	}
	return crc
}

// ErrorInfo describes a correctable (or rejected) CRC residue.
type ErrorInfo struct {
	Syndrome     uint32
	Errors       int // 0, 1 or 2
	BitPositions [2]int
}

// tables holds the precomputed syndrome -> correction maps, one per message
// length, built once at package init.
var tables = map[int]map[uint32]ErrorInfo{
	ShortBits: buildTable(ShortBits, 2),
	LongBits:  buildTable(LongBits, 2),
}

// Diagnose returns the correction descriptor for a CRC residue. A zero
// residue yields a zero-error descriptor. A residue outside the
// precomputed table, or one that collided with another error pattern
// during table construction, yields ok=false: diagnose must never invent a
// correction for an ambiguous syndrome.
func Diagnose(residue uint32, bits int) (ErrorInfo, bool) {
	if residue == 0 {
		return ErrorInfo{Syndrome: 0, Errors: 0}, true
	}
	info, ok := tables[bits][residue]
	return info, ok
}

// ApplyFix flips the bits named by info in msg.
func ApplyFix(msg []byte, info ErrorInfo) {
	for i := 0; i < info.Errors; i++ {
		bit := info.BitPositions[i]
		msg[bit/8] ^= 1 << (7 - uint(bit%8))
	}
}

// singleBitSyndrome returns the syndrome produced by flipping exactly one
// bit at position `bit` (0-indexed from the start of the payload) in an
// otherwise all-zero message of the given length. For a data bit this is,
// because the CRC is a linear function over GF(2), simply the
// corresponding row of checksumTable, and the syndrome of any combination
// of bit flips is the XOR of their individual single-bit syndromes.
//
// A bit inside the trailing 24-bit checksum field is not covered by
// checksumTable (those rows are zero: the field never feeds back into its
// own computation). Diagnose works against residue = tail ^ Checksum(msg),
// so flipping a checksum-field bit changes tail directly, one-for-one with
// that bit's place value in the 24-bit field, and never touches
// Checksum(msg). That syndrome is therefore a single set bit at the
// field's corresponding position, not a checksumTable row.
func singleBitSyndrome(bit, bits int) uint32 {
	if bit >= bits-24 {
		return 1 << uint(bits-1-bit)
	}
	var offset int
	if bits == LongBits {
		offset = 0
	} else {
		offset = LongBits - ShortBits
	}
	return checksumTable[bit+offset]
}

// buildTable constructs the syndrome -> correction table for a message
// length, correcting up to maxCorrect bit errors (1 or 2) per spec. Bits
// 0..4 are skipped: they encode the Downlink Format and select which table
// to consult in the first place, so correcting them here would be
// circular. Candidate patterns are generated by recursive expansion (depth
// 1..maxCorrect); any syndrome produced by more than one distinct bit
// pattern is ambiguous and removed rather than corrected. When
// maxCorrect==2, three- and four-bit combinations are also generated
// purely to detect (and discard) further collisions against the 1/2-bit
// table; they are never themselves added as corrections.
func buildTable(bits, maxCorrect int) map[uint32]ErrorInfo {
	const skipBits = 5

	table := make(map[uint32]ErrorInfo)
	ambiguous := make(map[uint32]bool)

	record := func(syn uint32, positions []int) {
		if syn == 0 {
			return
		}
		if ambiguous[syn] {
			return
		}
		if existing, ok := table[syn]; ok {
			if !samePositions(existing.BitPositions[:existing.Errors], positions) {
				delete(table, syn)
				ambiguous[syn] = true
			}
			return
		}
		var info ErrorInfo
		info.Syndrome = syn
		info.Errors = len(positions)
		copy(info.BitPositions[:], positions)
		table[syn] = info
	}

	// detect marks a syndrome as seen by a deeper (non-correctable) pattern,
	// evicting any correctable entry that collides with it.
	detect := func(syn uint32) {
		if syn == 0 {
			return
		}
		if _, ok := table[syn]; ok {
			delete(table, syn)
		}
		ambiguous[syn] = true
	}

	var expand func(start int, depth int, positions []int, syn uint32, correctable bool)
	expand = func(start int, depth int, positions []int, syn uint32, correctable bool) {
		if depth == 0 {
			if len(positions) > 0 {
				if correctable {
					record(syn, append([]int(nil), positions...))
				} else {
					detect(syn)
				}
			}
			return
		}
		for b := start; b < bits; b++ {
			expand(b+1, depth-1, append(positions, b), syn^singleBitSyndrome(b, bits), correctable)
		}
	}

	for depth := 1; depth <= maxCorrect; depth++ {
		expand(skipBits, depth, nil, 0, true)
	}

	if maxCorrect == 2 {
		for depth := maxCorrect + 1; depth <= 4; depth++ {
			expand(skipBits, depth, nil, 0, false)
		}
	}

	return table
}

func samePositions(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
