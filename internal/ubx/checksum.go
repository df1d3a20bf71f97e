// Package ubx implements the u-blox UBX binary frame codec: encoding,
// Fletcher-8 checksums, and a byte-driven parser state machine.
package ubx

// Checksum computes the UBX 8-bit Fletcher checksum over class, id,
// length, and payload bytes (everything between the sync bytes and the
// checksum itself).
func Checksum(data []byte) (ckA, ckB byte) {
	var a, b byte
	for _, c := range data {
		a += c
		b += a
	}
	return a, b
}

// VerifyChecksum reports whether ckA/ckB match the Fletcher checksum of data.
func VerifyChecksum(data []byte, ckA, ckB byte) bool {
	wantA, wantB := Checksum(data)
	return wantA == ckA && wantB == ckB
}
