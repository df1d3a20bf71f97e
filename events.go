package ubgps

import "github.com/ublox-gps/ubgps/internal/eventbus"

// EventKind is a bitmask identifying one kind of event a caller can
// subscribe to, built directly on internal/eventbus's mask arithmetic
// (C6).
type EventKind = eventbus.Mask

// Event kinds published to external subscribers. Payload types are noted
// per constant; Publish always passes one of these as the event's data.
const (
	// EventStateChanged fires on every lifecycle transition. Payload: StateChange.
	EventStateChanged EventKind = 1 << iota
	// EventRawFix fires on every unfiltered NAV-PVT fix. Payload: Location.
	EventRawFix
	// EventSmoothedFix fires when the location filter produces a new
	// smoothed estimate. Payload: Location.
	EventSmoothedFix
	// EventTargetReached fires once the SM reaches a previously requested
	// target state. Payload: TargetState.
	EventTargetReached
	// EventTargetTimeout fires when a TARGET_STATE request's transition
	// timeout expires before the target is reached. Payload: TargetState.
	EventTargetTimeout
	// EventNMEALine fires on every assembled NMEA sentence (logging only,
	// never parsed for navigation). Payload: string.
	EventNMEALine
	// EventAlpsrvActivity fires on every ALPSRV read/write/reject.
	// Payload: AlpsrvActivity.
	EventAlpsrvActivity
	// EventError is the kind for an internal *Error surfaced to
	// subscribers instead of being returned synchronously. Payload:
	// *Error. The driver itself publishes no event of this kind; failures
	// during a transition show up as state changes and target timeouts.
	EventError

	// EventAll matches every kind above; useful for diagnostic subscribers.
	EventAll = EventStateChanged | EventRawFix | EventSmoothedFix |
		EventTargetReached | EventTargetTimeout | EventNMEALine |
		EventAlpsrvActivity | EventError
)

// StateChange is the payload of an EventStateChanged event.
type StateChange struct {
	From State
	To   State
}

// AlpsrvActivity is the payload of an EventAlpsrvActivity event.
type AlpsrvActivity struct {
	Write    bool
	Rejected bool
}

// Subscription identifies a live event subscription, returned by
// Driver.Subscribe and accepted by Driver.Unsubscribe.
type Subscription = eventbus.ID

// EventHandler receives one event: the specific kind that matched (a
// single bit of the mask passed to Subscribe) and its payload.
type EventHandler = eventbus.Handler

// Subscribe registers handler for every event kind set in mask. Use
// EventAll to receive everything.
func (d *Driver) Subscribe(mask EventKind, handler EventHandler) Subscription {
	return d.bus.Subscribe(mask, handler)
}

// Unsubscribe removes a subscription. Safe to call from inside the
// handler being removed, or any other handler, during dispatch — removal
// is deferred until the outermost Publish call unwinds (see
// internal/eventbus).
func (d *Driver) Unsubscribe(sub Subscription) {
	d.bus.Unsubscribe(sub)
}
