package modes

// decodeAC13 decodes the 13-bit AC altitude field used by DF0/4/16/20
// (spec §4.5), grounded directly on the teacher's decodeAC13Field.
func decodeAC13(msg []byte) (altitude, unit int) {
	mBit := msg[3] & (1 << 6)
	qBit := msg[3] & (1 << 4)

	if mBit != 0 {
		// Metric altitude: real transponders never set M=1 in practice and
		// dump1090 never implemented this branch either; left unsupported.
		return 0, UnitMeters
	}

	if qBit == 0 {
		// Gillham-coded 100ft steps (M=0, Q=0). No transponder observed in
		// the wild sets this combination (modern equipment always uses the
		// Q=1 binary encoding), and upstream dump1090 left it as a TODO too;
		// we follow suit rather than guess at an untestable bit mapping.
		return 0, UnitFeet
	}

	n := ((int(msg[2]) & 31) << 6) |
		((int(msg[3]) & 0x80) >> 2) |
		((int(msg[3]) & 0x20) >> 1) |
		(int(msg[3]) & 15)
	return n*25 - 1000, UnitFeet
}

// decodeAC12 decodes the 12-bit AC altitude field used by DF17/18 ME types
// 9-18 (airborne position, barometric altitude).
func decodeAC12(msg []byte) (altitude, unit int) {
	qBit := msg[5] & 1
	if qBit == 0 {
		return 0, UnitFeet
	}
	n := (int(msg[5]) >> 1 << 4) | (int(msg[6]) >> 4)
	return n*25 - 1000, UnitFeet
}
