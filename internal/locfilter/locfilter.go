// Package locfilter smooths raw position fixes into an accuracy-weighted
// running average. Unfiltered fixes are published immediately as they
// arrive; the smoothed estimate is only recomputed and published on
// Tick, which the driver calls once per Driver.Tick — there is no
// independent ticker here and no timer-wheel entry of its own, so the
// smoothing cadence is the host's Tick cadence.
package locfilter

import "time"

// Fix is one position sample, in the same float units regardless of how
// the wire protocol packs them (the C2 codec/AID-INI senders translate
// to/from the 1e-7 degree, millimeter wire representation).
type Fix struct {
	LatDeg    float64
	LonDeg    float64
	AltM      float64
	AccuracyM float64
	Time      time.Time
}

// Filter holds the running smoothed estimate for one driver instance.
// It is not safe for concurrent use, consistent with the driver's
// single-threaded model.
type Filter struct {
	pending  *Fix
	smoothed *Fix
}

// New returns an empty Filter with no raw or smoothed fix yet.
func New() *Filter {
	return &Filter{}
}

// Observe records a new raw fix and immediately publishes it via
// publishRaw, unfiltered. The fix is queued for the next Tick, which
// folds it into the smoothed estimate.
func (f *Filter) Observe(fix Fix, publishRaw func(Fix)) {
	pending := fix
	f.pending = &pending
	if publishRaw != nil {
		publishRaw(fix)
	}
}

// Tick folds any fix observed since the last Tick into the smoothed
// estimate and publishes it via publishSmoothed. It reports whether a new
// smoothed value was produced — Tick is a no-op (spec.md §4.12's
// no-output-without-fix property) when Observe has not been called since
// the previous Tick, including when no fix has ever been observed.
func (f *Filter) Tick(publishSmoothed func(Fix)) bool {
	if f.pending == nil {
		return false
	}
	fix := *f.pending
	f.pending = nil

	if f.smoothed == nil {
		smoothed := fix
		f.smoothed = &smoothed
	} else {
		f.smoothed = merge(f.smoothed, &fix)
	}

	if publishSmoothed != nil {
		publishSmoothed(*f.smoothed)
	}
	return true
}

// merge combines prior and next weighted by the inverse of their
// accuracy (tighter accuracy carries more weight), and reports the
// combined accuracy as 1/(1/prior + 1/next) — the result is always at
// least as accurate as either input, so the prior's weight keeps growing
// and repeated similar fixes converge toward their common position
// gradually rather than at a fixed rate.
func merge(prior, next *Fix) *Fix {
	wPrior := 1.0 / accuracyOrFloor(prior.AccuracyM)
	wNext := 1.0 / accuracyOrFloor(next.AccuracyM)
	total := wPrior + wNext

	return &Fix{
		LatDeg:    (prior.LatDeg*wPrior + next.LatDeg*wNext) / total,
		LonDeg:    (prior.LonDeg*wPrior + next.LonDeg*wNext) / total,
		AltM:      (prior.AltM*wPrior + next.AltM*wNext) / total,
		AccuracyM: 1.0 / total,
		Time:      next.Time,
	}
}

// accuracyOrFloor guards against a reported accuracy of exactly zero,
// which would otherwise give that sample infinite weight.
func accuracyOrFloor(accuracyM float64) float64 {
	const floor = 1e-3
	if accuracyM < floor {
		return floor
	}
	return accuracyM
}

// Smoothed returns the current smoothed estimate, if any Tick has
// produced one.
func (f *Filter) Smoothed() (Fix, bool) {
	if f.smoothed == nil {
		return Fix{}, false
	}
	return *f.smoothed, true
}

// Reset discards both the pending raw fix and the smoothed estimate.
func (f *Filter) Reset() {
	f.pending = nil
	f.smoothed = nil
}
