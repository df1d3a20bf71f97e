package ubgps

// State is one of the driver's top-level lifecycle states.
type State uint8

const (
	PowerOff State = iota
	Initialization
	ColdStart
	WarmStart
	HotStart
	FixAcquired
)

// String renders a State for logs and test failures.
func (s State) String() string {
	switch s {
	case PowerOff:
		return "PowerOff"
	case Initialization:
		return "Initialization"
	case ColdStart:
		return "ColdStart"
	case WarmStart:
		return "WarmStart"
	case HotStart:
		return "HotStart"
	case FixAcquired:
		return "FixAcquired"
	default:
		return "Unknown"
	}
}

// TargetState is an externally requested goal. SearchFix is realized as
// whichever of ColdStart/WarmStart/HotStart applies given aiding
// freshness and power state at the time the target is pursued.
type TargetState uint8

const (
	TargetPowerOff TargetState = iota
	TargetSearchFix
	TargetFixAcquired
)

func (t TargetState) String() string {
	switch t {
	case TargetPowerOff:
		return "TargetPowerOff"
	case TargetSearchFix:
		return "TargetSearchFix"
	case TargetFixAcquired:
		return "TargetFixAcquired"
	default:
		return "Unknown"
	}
}

// PowerMode is the receiver's power-management setting (CFG-RXM lpMode /
// CFG-PM2), carried in stateBlock.powerMode.
type PowerMode uint8

const (
	PowerModeFull PowerMode = iota
	PowerModeEco
	PowerModePSM
)

// stateBlock holds the driver's lifecycle bookkeeping: transition flags,
// re-entrancy depth, init progress, and the power/navigation settings in
// effect. Kept as plain fields rather than bit-packed, matching
// SPEC_FULL.md's Go port decision — clarity over the C source's packed
// bitfield layout since Go has no anonymous bitfield syntax worth fighting
// for here.
type stateBlock struct {
	powered             bool
	nmeaProtocolEnabled bool
	inStateChange       bool
	initRetryDone       bool
	isReinit            bool
	reinitCold          bool
	inSMProcess         uint8 // re-entry depth; saturates at 255
	inQueueProcess      bool

	powerMode         PowerMode
	alpsrvEnabled     bool
	navRateMs         uint16
	psmUpdatePeriodMs uint32
	psmSearchPeriodMs uint32

	initPhase      int
	initRetryCount int

	targetTimeoutID uint16
	initTimerID     uint16
	aidingTimerID   uint16
	locFilterTimerID uint16
}

// Location is a GPS fix in float degrees and metres, the same units
// locfilter.Fix uses — see aiding.Location for the 1e-7 degree /
// millimetre integer form this is converted to/from.
type Location struct {
	LatDeg    float64
	LonDeg    float64
	AltM      float64
	AccuracyM float64
	GPSTimeS  float64
}
