package initseq

import "testing"

func syncPhase(name string, ok bool) Phase {
	return Phase{Name: name, Run: func(onDone func(bool, error)) error {
		onDone(ok, nil)
		return nil
	}}
}

func TestSequenceRunsPhasesInOrder(t *testing.T) {
	var order []string
	phases := []Phase{
		{Name: "a", Run: func(onDone func(bool, error)) error { order = append(order, "a"); onDone(true, nil); return nil }},
		{Name: "b", Run: func(onDone func(bool, error)) error { order = append(order, "b"); onDone(true, nil); return nil }},
	}
	s := New(phases, 0, nil)

	var done bool
	var ok bool
	s.Start(func(o bool, _ string) { done, ok = true, o })

	if !done || !ok {
		t.Fatalf("done=%v ok=%v, want true,true", done, ok)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v, want [a b]", order)
	}
}

func TestPhaseRetriesUpToLimitThenFails(t *testing.T) {
	attempts := 0
	phases := []Phase{
		{Name: "flaky", Run: func(onDone func(bool, error)) error {
			attempts++
			onDone(false, nil)
			return nil
		}},
	}
	s := New(phases, 2, nil)

	var failedPhase string
	var ok bool
	done := false
	s.Start(func(o bool, phase string) { ok, failedPhase, done = o, phase, true })

	if !done || ok {
		t.Fatalf("done=%v ok=%v, want true,false", done, ok)
	}
	if failedPhase != "flaky" {
		t.Errorf("failedPhase = %q, want %q", failedPhase, "flaky")
	}
	if attempts != 3 { // first try + 2 retries
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestPhaseSucceedsOnRetry(t *testing.T) {
	attempts := 0
	phases := []Phase{
		{Name: "sometimes", Run: func(onDone func(bool, error)) error {
			attempts++
			onDone(attempts >= 2, nil)
			return nil
		}},
	}
	s := New(phases, 2, nil)

	var ok bool
	s.Start(func(o bool, _ string) { ok = o })

	if !ok {
		t.Fatal("sequence failed despite succeeding on second attempt")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestLocalStartErrorAbortsWithoutRetry(t *testing.T) {
	attempts := 0
	boom := errFixture{}
	phases := []Phase{
		{Name: "unwritable", Run: func(onDone func(bool, error)) error {
			attempts++
			return boom
		}},
	}
	s := New(phases, 5, nil)

	var ok bool
	done := false
	s.Start(func(o bool, _ string) { ok, done = o, true })

	if !done || ok {
		t.Fatal("expected immediate failure on local start error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on synchronous start error)", attempts)
	}
}

func TestRunningReflectsLifecycle(t *testing.T) {
	s := New([]Phase{syncPhase("only", true)}, 0, nil)
	if s.Running() {
		t.Error("Running() true before Start")
	}
	s.Start(func(bool, string) {})
	if s.Running() {
		t.Error("Running() true after synchronous completion")
	}
}

type errFixture struct{}

func (errFixture) Error() string { return "local write failure" }
