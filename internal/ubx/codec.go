package ubx

import "encoding/binary"

// MaxPayloadLen bounds the payload length the parser will accept. Frames
// declaring a longer length are discarded without allocating a buffer for
// them, per the framing contract: oversize frames never reach Deliver.
const MaxPayloadLen = 1024

// Encode serializes msg into a complete UBX frame: sync bytes, header,
// payload, and Fletcher-8 checksum.
func Encode(msg Message) []byte {
	frame := make([]byte, 0, 8+len(msg.Payload))
	frame = append(frame, Sync1, Sync2, msg.Class, msg.ID)
	frame = appendUint16(frame, uint16(len(msg.Payload)))
	frame = append(frame, msg.Payload...)

	ckA, ckB := Checksum(frame[2:])
	frame = append(frame, ckA, ckB)
	return frame
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}
