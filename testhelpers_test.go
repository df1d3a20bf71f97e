package ubgps

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/ublox-gps/ubgps/internal/ubx"
)

// fakeClock is a manually-advanced clock for deterministic timer and
// hint-degradation tests, standing in for the teacher's fixed-step test
// clock pattern.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// decodeFrame unpacks a single complete UBX frame produced by ubx.Encode,
// for tests that need to inspect what the driver actually wrote.
func decodeFrame(t testingT, frame []byte) (class, id byte, payload []byte) {
	t.Helper()
	if len(frame) < 8 {
		t.Fatalf("frame too short: %d bytes", len(frame))
	}
	if frame[0] != ubx.Sync1 || frame[1] != ubx.Sync2 {
		t.Fatalf("bad sync bytes: %x %x", frame[0], frame[1])
	}
	class, id = frame[2], frame[3]
	length := binary.LittleEndian.Uint16(frame[4:6])
	if len(frame) < 8+int(length) {
		t.Fatalf("frame shorter than declared length %d", length)
	}
	payload = frame[6 : 6+int(length)]
	return class, id, payload
}

// testingT is the subset of *testing.T used by decodeFrame, so it can be
// called from any test file without importing "testing" twice.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// classIDStep names one expected outbound message in an init sequence
// drive loop.
type classIDStep struct{ class, id byte }

// decodeAllFrames splits buf, which may hold several concatenated UBX
// frames (Drain makes no promise about framing), into individual
// class/id/payload tuples.
func decodeAllFrames(t testingT, buf []byte) []classIDStep {
	t.Helper()
	var steps []classIDStep
	for len(buf) > 0 {
		class, id, payload := decodeFrame(t, buf)
		consumed := 8 + len(payload)
		steps = append(steps, classIDStep{class, id})
		buf = buf[consumed:]
	}
	return steps
}

func ackAckFrame(class, id byte) []byte {
	return ubx.Encode(ubx.Message{Class: ubx.ClassACK, ID: ubx.IDAckAck, Payload: []byte{class, id}})
}

func ackNakFrame(class, id byte) []byte {
	return ubx.Encode(ubx.Message{Class: ubx.ClassACK, ID: ubx.IDAckNak, Payload: []byte{class, id}})
}

func aidAlpReplyFrame() []byte {
	return ubx.Encode(ubx.Message{Class: ubx.ClassAID, ID: ubx.IDAidAlp, Payload: make([]byte, 4)})
}

// navPvtFrame builds a minimal NAV-PVT frame carrying the fields this
// driver actually decodes (DecodeNavPVT only reads offsets 20..44).
func navPvtFrame(fixType byte, latDeg1e7, lonDeg1e7, hMSLMm int32, hAccMm uint32) []byte {
	payload := make([]byte, 44)
	payload[20] = fixType
	binary.LittleEndian.PutUint32(payload[24:28], uint32(lonDeg1e7))
	binary.LittleEndian.PutUint32(payload[28:32], uint32(latDeg1e7))
	binary.LittleEndian.PutUint32(payload[32:36], uint32(hMSLMm)) // height ellipsoid, unused
	binary.LittleEndian.PutUint32(payload[36:40], uint32(hMSLMm))
	binary.LittleEndian.PutUint32(payload[40:44], hAccMm)
	return ubx.Encode(ubx.Message{Class: ubx.ClassNAV, ID: ubx.IDNavPvt, Payload: payload})
}

func alpsrvReadRequestFrame(fileID uint16, offset uint32, size uint16) []byte {
	payload := make([]byte, 9)
	payload[0] = byte(0) // AlpsrvRead
	binary.LittleEndian.PutUint16(payload[1:3], fileID)
	binary.LittleEndian.PutUint32(payload[3:7], offset)
	binary.LittleEndian.PutUint16(payload[7:9], size)
	return ubx.Encode(ubx.Message{Class: ubx.ClassAID, ID: ubx.IDAidAlpsrv, Payload: payload})
}
