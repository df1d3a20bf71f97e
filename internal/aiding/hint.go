package aiding

import (
	"math"
	"time"
)

// DefaultDegradeSpeedMps is the default rate (50 km/h) a stored location
// hint's accuracy is assumed to degrade at while the receiver is powered
// off or in between fixes.
const DefaultDegradeSpeedMps = 50.0 * 1000.0 / 3600.0

// DefaultMaxAccuracyM is the largest effective accuracy, in meters, a
// hint may have and still be considered usable (100 km).
const DefaultMaxAccuracyM = 100_000.0

// MinimumNewAccuracyUnset preserves the source's
// HINT_LOCATION_MINIMUM_NEW_ACCURACY = INT_MAX convention: when a hint's
// MinimumNewAccuracy field is left at this sentinel, MaybeUpdate accepts
// every fix unconditionally instead of requiring improvement.
const MinimumNewAccuracyUnset = math.MaxInt32

// Location is a position, in the same units AID-INI uses on the wire.
type Location struct {
	LatDeg1e7  int32
	LonDeg1e7  int32
	AltMm      int32
	AccuracyMm uint32
}

// Hint is the driver's single cached location, used to seed AID-INI on
// the next cold start. It has no concept of a fix's satellite count or
// DOP; it only tracks where the receiver last believed it was and how
// stale that belief has grown.
type Hint struct {
	Present            bool
	Location           Location
	LocationTime       time.Time
	DegradeSpeedMps    float64
	MaxAccuracyM       float64
	MinimumNewAccuracy float64
}

// NewHint returns an empty, not-yet-present Hint using the given
// degrade-speed and max-accuracy thresholds (spec.md §9 Open Questions,
// exposed as Config fields by the caller rather than hardcoded here).
func NewHint(degradeSpeedMps, maxAccuracyM, minimumNewAccuracy float64) *Hint {
	return &Hint{
		DegradeSpeedMps:    degradeSpeedMps,
		MaxAccuracyM:       maxAccuracyM,
		MinimumNewAccuracy: minimumNewAccuracy,
	}
}

// EffectiveAccuracy returns the hint's accuracy in meters as of now,
// linearly degraded from its stored accuracy at DegradeSpeedMps for every
// second elapsed since LocationTime. A hint that isn't Present has
// infinite (unusable) effective accuracy.
func (h *Hint) EffectiveAccuracy(now time.Time) float64 {
	if !h.Present {
		return math.Inf(1)
	}
	elapsed := now.Sub(h.LocationTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	stored := float64(h.Location.AccuracyMm) / 1000.0
	return stored + h.DegradeSpeedMps*elapsed
}

// Usable reports whether the hint's effective accuracy is within
// MaxAccuracyM, i.e. still precise enough to be worth sending in AID-INI.
func (h *Hint) Usable(now time.Time) bool {
	return h.Present && h.EffectiveAccuracy(now) <= h.MaxAccuracyM
}

// MaybeUpdate replaces the stored hint with fix/reportedAccuracyM only if
// that is an improvement over the hint's current effective accuracy, or
// unconditionally if MinimumNewAccuracy is left at
// MinimumNewAccuracyUnset.
func (h *Hint) MaybeUpdate(now time.Time, fix Location, reportedAccuracyM float64) {
	if h.MinimumNewAccuracy != MinimumNewAccuracyUnset && h.Present {
		if reportedAccuracyM >= h.EffectiveAccuracy(now) {
			return
		}
	}
	h.Present = true
	h.Location = fix
	h.LocationTime = now
}
