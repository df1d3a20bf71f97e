package locfilter

import (
	"math"
	"testing"
)

func TestTickWithoutObserveProducesNoOutput(t *testing.T) {
	f := New()
	called := false
	if f.Tick(func(Fix) { called = true }) {
		t.Error("Tick() returned true with no observed fix")
	}
	if called {
		t.Error("publishSmoothed called despite no pending fix")
	}
}

func TestObservePublishesRawImmediately(t *testing.T) {
	f := New()
	var got Fix
	fix := Fix{LatDeg: 37.0, LonDeg: -122.0, AccuracyM: 5}
	f.Observe(fix, func(raw Fix) { got = raw })
	if got != fix {
		t.Errorf("got %+v, want %+v", got, fix)
	}
}

func TestFirstTickSmoothedEqualsRawFix(t *testing.T) {
	f := New()
	fix := Fix{LatDeg: 10, LonDeg: 20, AccuracyM: 3}
	f.Observe(fix, nil)

	var smoothed Fix
	if !f.Tick(func(s Fix) { smoothed = s }) {
		t.Fatal("Tick() returned false after Observe")
	}
	if smoothed.LatDeg != fix.LatDeg || smoothed.LonDeg != fix.LonDeg {
		t.Errorf("first smoothed fix = %+v, want it to equal raw %+v", smoothed, fix)
	}
}

func TestRepeatedTickWithoutNewObserveIsIdempotent(t *testing.T) {
	f := New()
	f.Observe(Fix{LatDeg: 1, LonDeg: 1, AccuracyM: 10}, nil)
	f.Tick(func(Fix) {})

	calls := 0
	for i := 0; i < 3; i++ {
		if f.Tick(func(Fix) { calls++ }) {
			t.Fatalf("Tick() #%d returned true without a new Observe", i)
		}
	}
	if calls != 0 {
		t.Errorf("publishSmoothed called %d times without a new fix", calls)
	}
}

func TestRepeatedFixesAtSameLocationConverge(t *testing.T) {
	f := New()
	target := Fix{LatDeg: 45.0, LonDeg: -93.0, AccuracyM: 5}

	// Seed with a noisy first fix, then converge on repeated clean ones.
	f.Observe(Fix{LatDeg: 44.0, LonDeg: -92.0, AccuracyM: 50}, nil)
	f.Tick(func(Fix) {})

	var last Fix
	for i := 0; i < 200; i++ {
		f.Observe(target, nil)
		f.Tick(func(s Fix) { last = s })
	}

	if math.Abs(last.LatDeg-target.LatDeg) > 1e-3 {
		t.Errorf("LatDeg did not converge: got %v, want near %v", last.LatDeg, target.LatDeg)
	}
	if math.Abs(last.LonDeg-target.LonDeg) > 1e-3 {
		t.Errorf("LonDeg did not converge: got %v, want near %v", last.LonDeg, target.LonDeg)
	}
}

func TestSmoothedAccuracyNeverWorseThanTighterInput(t *testing.T) {
	f := New()
	f.Observe(Fix{LatDeg: 1, LonDeg: 1, AccuracyM: 10}, nil)
	f.Tick(func(Fix) {})
	f.Observe(Fix{LatDeg: 1, LonDeg: 1, AccuracyM: 2}, nil)

	var smoothed Fix
	f.Tick(func(s Fix) { smoothed = s })
	if smoothed.AccuracyM > 2 {
		t.Errorf("smoothed accuracy %v worse than tightest input 2", smoothed.AccuracyM)
	}
}

func TestResetClearsPendingAndSmoothed(t *testing.T) {
	f := New()
	f.Observe(Fix{LatDeg: 1, LonDeg: 1, AccuracyM: 1}, nil)
	f.Tick(func(Fix) {})
	f.Reset()

	if _, ok := f.Smoothed(); ok {
		t.Error("Smoothed() returned a value after Reset")
	}
	if f.Tick(func(Fix) {}) {
		t.Error("Tick() produced output after Reset with no new Observe")
	}
}
