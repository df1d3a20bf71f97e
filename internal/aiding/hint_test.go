package aiding

import (
	"math"
	"testing"
	"time"
)

func TestEffectiveAccuracyDegradesLinearlyOverTime(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	h := NewHint(DefaultDegradeSpeedMps, DefaultMaxAccuracyM, MinimumNewAccuracyUnset)
	h.MaybeUpdate(base, Location{AccuracyMm: 5000}, 5.0)

	acc0 := h.EffectiveAccuracy(base)
	if acc0 != 5.0 {
		t.Errorf("EffectiveAccuracy(base) = %v, want 5.0", acc0)
	}

	later := base.Add(time.Hour)
	accLater := h.EffectiveAccuracy(later)
	wantLater := 5.0 + DefaultDegradeSpeedMps*3600
	if math.Abs(accLater-wantLater) > 1e-6 {
		t.Errorf("EffectiveAccuracy(+1h) = %v, want %v", accLater, wantLater)
	}
}

func TestNotPresentHintIsUnusable(t *testing.T) {
	h := NewHint(DefaultDegradeSpeedMps, DefaultMaxAccuracyM, MinimumNewAccuracyUnset)
	if h.Usable(time.Now()) {
		t.Error("empty hint reported usable")
	}
}

func TestUsableRespectsMaxAccuracyThreshold(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	h := NewHint(DefaultDegradeSpeedMps, 100.0, MinimumNewAccuracyUnset)
	h.MaybeUpdate(base, Location{AccuracyMm: 50_000}, 50.0) // 50 m accuracy

	if !h.Usable(base) {
		t.Error("fresh 50m hint under a 100m threshold should be usable")
	}
	farFuture := base.Add(24 * time.Hour)
	if h.Usable(farFuture) {
		t.Error("hint degraded well past threshold still reported usable")
	}
}

func TestMaybeUpdateRequiresImprovementWhenThresholdSet(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	h := NewHint(DefaultDegradeSpeedMps, DefaultMaxAccuracyM, 0) // any finite threshold triggers the guard
	h.MaybeUpdate(base, Location{AccuracyMm: 10_000}, 10.0)

	worse := Location{AccuracyMm: 50_000}
	h.MaybeUpdate(base, worse, 50.0)
	if h.Location.AccuracyMm != 10_000 {
		t.Error("hint was replaced by a worse-accuracy fix")
	}

	better := Location{AccuracyMm: 2_000}
	h.MaybeUpdate(base, better, 2.0)
	if h.Location.AccuracyMm != 2_000 {
		t.Error("hint was not replaced by a better-accuracy fix")
	}
}

func TestMaybeUpdateAcceptsEveryFixWhenSentinelUnset(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	h := NewHint(DefaultDegradeSpeedMps, DefaultMaxAccuracyM, MinimumNewAccuracyUnset)
	h.MaybeUpdate(base, Location{AccuracyMm: 10_000}, 10.0)

	worse := Location{AccuracyMm: 90_000}
	h.MaybeUpdate(base, worse, 90.0)
	if h.Location.AccuracyMm != 90_000 {
		t.Error("sentinel MinimumNewAccuracy should accept every update unconditionally")
	}
}
