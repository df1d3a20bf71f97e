package ubx

import "encoding/binary"

// FixType is the NAV-PVT fixType field.
type FixType byte

const (
	FixNone FixType = 0
	FixDeadReckoning FixType = 1
	Fix2D FixType = 2
	Fix3D FixType = 3
	FixGNSSDeadReckoning FixType = 4
	FixTimeOnly FixType = 5
)

// NavPVT is the subset of the NAV-PVT payload the driver acts on: fix
// quality and the position/accuracy fields needed to publish a Location
// and refresh the location hint.
type NavPVT struct {
	FixType   FixType
	LonDeg1e7 int32
	LatDeg1e7 int32
	HeightMm  int32 // height above ellipsoid
	HMSLMm    int32 // height above mean sea level
	HAccMm    uint32
}

// DecodeNavPVT extracts the fields this driver needs from a full NAV-PVT
// payload. The message is 92 bytes on the wire; only the fixType and
// position/accuracy fields (offsets 20, 24, 28, 32, 36, 40) are read.
func DecodeNavPVT(payload []byte) (NavPVT, bool) {
	const minLen = 44
	if len(payload) < minLen {
		return NavPVT{}, false
	}
	return NavPVT{
		FixType:   FixType(payload[20]),
		LonDeg1e7: int32(binary.LittleEndian.Uint32(payload[24:28])),
		LatDeg1e7: int32(binary.LittleEndian.Uint32(payload[28:32])),
		HeightMm:  int32(binary.LittleEndian.Uint32(payload[32:36])),
		HMSLMm:    int32(binary.LittleEndian.Uint32(payload[36:40])),
		HAccMm:    binary.LittleEndian.Uint32(payload[40:44]),
	}, true
}

// HasFix reports whether the fix type represents at least a 2D position
// solution usable for navigation/hint purposes.
func (f FixType) HasFix() bool {
	return f == Fix2D || f == Fix3D || f == FixGNSSDeadReckoning
}

// Is3D reports whether the fix type is a full 3D position solution, the
// threshold spec.md §8 scenario 1 uses for FIX_ACQUIRED.
func (f FixType) Is3D() bool {
	return f == Fix3D
}
