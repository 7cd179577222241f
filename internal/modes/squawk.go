package modes

// decodeSquawk decodes the 13-bit Gillham-coded identity (squawk) field
// used by DF5/21, grounded on the teacher's identity-field extraction in
// DecodeModesMessage.
func decodeSquawk(msg []byte) int {
	a := ((msg[3] & 0x80) >> 5) |
		((msg[2] & 0x02) >> 0) |
		((msg[2] & 0x08) >> 3)
	b := ((msg[3] & 0x02) << 1) |
		((msg[3] & 0x08) >> 2) |
		((msg[3] & 0x20) >> 5)
	c := ((msg[2] & 0x01) << 2) |
		((msg[2] & 0x04) >> 1) |
		((msg[2] & 0x10) >> 4)
	d := ((msg[3] & 0x01) << 2) |
		((msg[3] & 0x04) >> 1) |
		((msg[3] & 0x10) >> 4)
	return int(a)<<9 | int(b)<<6 | int(c)<<3 | int(d)
}
