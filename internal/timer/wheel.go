// Package timer implements the driver's timer wheel: monotonic scheduled
// callbacks identified by rolling 16-bit ids. There is no internal clock
// or goroutine — the host pumps time forward by calling Tick, matching
// the single-threaded, non-blocking model the rest of the driver follows.
package timer

import "github.com/ublox-gps/ubgps/internal/logging"

// NoTimer is the reserved id meaning "no live timer." It is never handed
// out by Set.
const NoTimer uint16 = 0

// Callback is invoked when a timer fires or is forced to expire. Returning
// true deletes the timer (the common case); returning false leaves the
// timer in the wheel with its past deadline, so every later Tick fires it
// again until a callback returns true or the timer is removed. A callback
// that wants a new deadline calls Set again itself.
type Callback func(id uint16, arg any) bool

type entry struct {
	deadlineMs int64
	cb         Callback
	arg        any
}

// Wheel holds the set of live timers for one driver instance.
type Wheel struct {
	entries map[uint16]*entry
	nextID  uint16
	logger  *logging.Logger
}

// New returns an empty timer wheel.
func New(logger *logging.Logger) *Wheel {
	if logger == nil {
		logger = logging.Default()
	}
	return &Wheel{
		entries: make(map[uint16]*entry),
		nextID:  1,
		logger:  logger,
	}
}

// Set arms a new timer that fires timeoutMs milliseconds after nowMs and
// returns its id. Ids are allocated from a rolling 16-bit counter that
// skips zero and any id currently in use, so up to 65535 timers can be
// live simultaneously without collision.
func (w *Wheel) Set(nowMs int64, timeoutMs uint32, cb Callback, arg any) uint16 {
	id := w.allocateID()
	w.entries[id] = &entry{
		deadlineMs: nowMs + int64(timeoutMs),
		cb:         cb,
		arg:        arg,
	}
	return id
}

func (w *Wheel) allocateID() uint16 {
	for {
		id := w.nextID
		w.nextID++
		if w.nextID == NoTimer {
			w.nextID = 1
		}
		if id == NoTimer {
			continue
		}
		if _, inUse := w.entries[id]; !inUse {
			return id
		}
	}
}

// Remove deletes a timer. It is a no-op for an id that is not live,
// including NoTimer — callers don't need to check liveness first.
// Removing a timer from inside its own callback (or another timer's,
// during the same Tick) is always safe because Tick snapshots the set of
// due ids before invoking any callback.
func (w *Wheel) Remove(id uint16) {
	if id == NoTimer {
		return
	}
	delete(w.entries, id)
}

// NextDeadline returns the earliest armed deadline, if any.
func (w *Wheel) NextDeadline() (deadlineMs int64, ok bool) {
	first := true
	for _, e := range w.entries {
		if first || e.deadlineMs < deadlineMs {
			deadlineMs = e.deadlineMs
			first = false
		}
	}
	return deadlineMs, !first
}

// Tick fires every timer whose deadline is at or before nowMs. The set of
// due ids is captured before any callback runs, so a callback that removes
// a timer (including itself, or one also due this tick) cannot cause a
// double-fire or a skipped removal — Tick re-checks liveness for each id
// immediately before invoking it.
func (w *Wheel) Tick(nowMs int64) {
	var due []uint16
	for id, e := range w.entries {
		if e.deadlineMs <= nowMs {
			due = append(due, id)
		}
	}

	for _, id := range due {
		e, ok := w.entries[id]
		if !ok {
			continue // removed by an earlier callback this tick
		}
		if e.cb(id, e.arg) {
			delete(w.entries, id)
		}
	}
}

// Len reports the number of live timers, for tests and diagnostics.
func (w *Wheel) Len() int {
	return len(w.entries)
}
