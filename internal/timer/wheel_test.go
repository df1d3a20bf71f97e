package timer

import "testing"

func TestSetFiresAtDeadline(t *testing.T) {
	w := New(nil)
	fired := false
	w.Set(0, 100, func(id uint16, arg any) bool {
		fired = true
		return true
	}, nil)

	w.Tick(50)
	if fired {
		t.Fatal("fired before deadline")
	}
	w.Tick(100)
	if !fired {
		t.Fatal("did not fire at deadline")
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after one-shot fire", w.Len())
	}
}

func TestRemoveIsIdempotentAndSafeForUnknownID(t *testing.T) {
	w := New(nil)
	id := w.Set(0, 10, func(uint16, any) bool { return true }, nil)
	w.Remove(id)
	w.Remove(id)   // already gone
	w.Remove(9999) // never allocated
	w.Remove(NoTimer)

	w.Tick(10)
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestIDsSkipZeroAndInUse(t *testing.T) {
	w := New(nil)
	seen := make(map[uint16]bool)
	for i := 0; i < 10; i++ {
		id := w.Set(0, 1000, func(uint16, any) bool { return false }, nil)
		if id == NoTimer {
			t.Fatal("allocated reserved NoTimer id")
		}
		if seen[id] {
			t.Fatalf("id %d reused while still live", id)
		}
		seen[id] = true
	}
}

func TestNextDeadlinePicksEarliest(t *testing.T) {
	w := New(nil)
	w.Set(0, 500, func(uint16, any) bool { return true }, nil)
	w.Set(0, 100, func(uint16, any) bool { return true }, nil)
	w.Set(0, 900, func(uint16, any) bool { return true }, nil)

	d, ok := w.NextDeadline()
	if !ok || d != 100 {
		t.Errorf("NextDeadline() = (%d, %v), want (100, true)", d, ok)
	}
}

func TestNextDeadlineEmptyWheel(t *testing.T) {
	w := New(nil)
	if _, ok := w.NextDeadline(); ok {
		t.Error("NextDeadline() on empty wheel returned ok=true")
	}
}

func TestCallbackRemovingAnotherDueTimerIsSafe(t *testing.T) {
	w := New(nil)
	var second uint16
	var secondFired bool

	first := w.Set(0, 10, func(uint16, any) bool {
		w.Remove(second)
		return true
	}, nil)
	second = w.Set(0, 10, func(uint16, any) bool {
		secondFired = true
		return true
	}, nil)
	_ = first

	w.Tick(10)
	if secondFired {
		t.Error("removed timer fired anyway")
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestCallbackReturningFalseKeepsTimerArmed(t *testing.T) {
	w := New(nil)
	calls := 0
	w.Set(0, 10, func(uint16, any) bool {
		calls++
		return false
	}, nil)

	w.Tick(10)
	w.Tick(20)
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (timer should stay armed)", calls)
	}
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1", w.Len())
	}
}
