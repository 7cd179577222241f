package modes

import "github.com/regentag/go1090/internal/crc"

// Scoring constants (spec §4.4.4): infinite for a clean message, a high
// positive value for a single-bit correction, a lower positive value for a
// two-bit correction, and negative (reject) when the residue is not in the
// syndrome table at all.
const (
	ScoreNoError = 1 << 30
	ScoreOneBit  = 1000
	ScoreTwoBit  = 50
	ScoreReject  = -1
)

// Score evaluates a candidate message buffer without mutating it: computes
// the CRC residue and diagnoses it, returning the tie-breaking score used
// across all three demodulators (spec §4.4.4). bits is the candidate
// length (56 or 112); msg must be at least bits/8 bytes.
func Score(msg []byte, bits int) int {
	nbytes := bits / 8
	if len(msg) < nbytes {
		return ScoreReject
	}
	msg = msg[:nbytes]

	check := crc.Checksum(msg, bits)
	tail := uint32(msg[nbytes-3])<<16 | uint32(msg[nbytes-2])<<8 | uint32(msg[nbytes-1])
	residue := tail ^ check

	info, ok := crc.Diagnose(residue, bits)
	if !ok {
		return ScoreReject
	}
	switch info.Errors {
	case 0:
		return ScoreNoError
	case 1:
		return ScoreOneBit
	case 2:
		return ScoreTwoBit
	default:
		return ScoreReject
	}
}
