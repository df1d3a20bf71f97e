package ubgps

import (
	"time"

	"github.com/ublox-gps/ubgps/internal/aiding"
	"github.com/ublox-gps/ubgps/internal/locfilter"
	"github.com/ublox-gps/ubgps/internal/ubx"
)

// smEventKind enumerates the event kinds the state machine consumes,
// spec.md §4.8's TARGET_STATE/UBX_MESSAGE/NAV-PVT/TIMEOUT/AID_ALP_READY/
// ALPSRV_REQUEST list.
type smEventKind int

const (
	evTargetState smEventKind = iota
	evNavPVT
	evTimeout
	evAidAlpReady
	evAlpsrvRequest
)

// smEvent is one event submitted to the state machine. Only the fields
// relevant to Kind are populated.
type smEvent struct {
	kind smEventKind

	targetState   TargetState
	targetTimeout time.Duration

	fix ubx.NavPVT

	timerID uint16

	alpsrvReq aiding.AlpsrvRequest
}

// overrideStateMachine receives every event before the normal state
// handler table. Returning true means the event was fully handled and
// the normal table must not also see it — the seam spec.md §4.8 and §9
// describe. Only tests install one; the init sub-sequencer does not use
// it and instead reports back through its own completion callback.
type overrideStateMachine func(d *Driver, ev smEvent) (consumed bool)

// SetOverrideStateMachine installs fn ahead of the normal state handler
// table. Pass nil to remove it.
func (d *Driver) SetOverrideStateMachine(fn overrideStateMachine) {
	d.overrideSM = fn
}

// submitEvent implements spec.md §4.8's re-entrancy protocol: the depth
// counter increments on entry; if it was already non-zero and ev is a
// TARGET_STATE event, the event is deferred and submitEvent returns
// immediately without touching the state table. Every other event kind
// is dispatched inline even during re-entrancy, since only externally
// requested target changes need FIFO ordering against an in-progress
// transition. Only at the outermost unwind (depth back to zero), guarded
// by inQueueProcess against nested drains, is the deferred queue walked.
func (d *Driver) submitEvent(ev smEvent) {
	wasActive := d.sb.inSMProcess > 0
	incremented := d.sb.inSMProcess < 255 // saturates per spec.md §3
	if incremented {
		d.sb.inSMProcess++
	}

	if wasActive && ev.kind == evTargetState {
		d.deferredQueue = append(d.deferredQueue, ev)
		if incremented {
			d.sb.inSMProcess--
		}
		return
	}

	d.dispatchEvent(ev)

	if incremented {
		d.sb.inSMProcess--
	}
	if d.sb.inSMProcess == 0 && !d.sb.inQueueProcess {
		d.drainDeferred()
	}
}

// drainDeferred walks the deferred queue in FIFO order, resubmitting each
// event through submitEvent so it sees the same re-entrancy handling a
// freshly submitted event would.
func (d *Driver) drainDeferred() {
	d.sb.inQueueProcess = true
	defer func() { d.sb.inQueueProcess = false }()
	for len(d.deferredQueue) > 0 {
		ev := d.deferredQueue[0]
		d.deferredQueue = d.deferredQueue[1:]
		d.submitEvent(ev)
	}
}

func (d *Driver) dispatchEvent(ev smEvent) {
	if d.overrideSM != nil && d.overrideSM(d, ev) {
		return
	}
	handler, ok := stateHandlers[d.current]
	if !ok {
		return
	}
	handler(d, ev)
}

// stateHandlers maps each lifecycle state to the function that decides
// what an incoming event means in that state. A handler mutates d
// directly (arming timers, sending configuration, publishing events) and
// calls d.transitionTo when it decides to leave its state; a handler
// that does not transition simply returns.
var stateHandlers = map[State]func(*Driver, smEvent){
	PowerOff:       (*Driver).handlePowerOff,
	Initialization: (*Driver).handleInitialization,
	ColdStart:      (*Driver).handleSearching,
	WarmStart:      (*Driver).handleSearching,
	HotStart:       (*Driver).handleSearching,
	FixAcquired:    (*Driver).handleFixAcquired,
}

func (d *Driver) handlePowerOff(ev smEvent) {
	switch ev.kind {
	case evTargetState:
		d.target = ev.targetState
		if ev.targetState == TargetPowerOff {
			return
		}
		d.armTargetTimeout(ev.targetTimeout)
		d.sb.powered = true
		d.transitionTo(Initialization)
		d.beginInitSequence()
	}
}

func (d *Driver) handleInitialization(ev smEvent) {
	switch ev.kind {
	case evTargetState:
		d.target = ev.targetState
		if ev.targetState == TargetPowerOff {
			d.cancelInitSequence()
			d.cancelTargetTimeout()
			d.sb.powered = false
			d.transitionTo(PowerOff)
		}
	case evTimeout:
		if ev.timerID == d.sb.targetTimeoutID {
			d.onTargetTimeout()
		}
	}
}

func (d *Driver) handleSearching(ev smEvent) {
	switch ev.kind {
	case evTargetState:
		d.target = ev.targetState
		if ev.targetState == TargetPowerOff {
			d.cancelTargetTimeout()
			d.sb.powered = false
			d.transitionTo(PowerOff)
		} else if ev.targetState == TargetSearchFix {
			d.cancelTargetTimeout()
			d.publishTargetReached()
		} else {
			d.armTargetTimeout(ev.targetTimeout)
		}
	case evNavPVT:
		d.observeFix(ev.fix)
		if ev.fix.FixType.Is3D() {
			d.cancelTargetTimeout()
			d.transitionTo(FixAcquired)
			if d.target == TargetFixAcquired {
				d.publishTargetReached()
			}
		}
	case evTimeout:
		if ev.timerID == d.sb.targetTimeoutID {
			d.onTargetTimeout()
		}
	case evAlpsrvRequest:
		d.handleAlpsrvRequest(ev.alpsrvReq)
	case evAidAlpReady:
		// Almanac status polled; nothing further to do until the next
		// AID-INI derives from a possibly-refreshed hint.
	}
}

func (d *Driver) handleFixAcquired(ev smEvent) {
	switch ev.kind {
	case evTargetState:
		d.target = ev.targetState
		if ev.targetState == TargetPowerOff {
			d.cancelTargetTimeout()
			d.sb.powered = false
			d.transitionTo(PowerOff)
		} else if ev.targetState == TargetFixAcquired {
			d.publishTargetReached()
		} else {
			d.armTargetTimeout(ev.targetTimeout)
		}
	case evNavPVT:
		d.observeFix(ev.fix)
		if !ev.fix.FixType.HasFix() {
			// Fix lost: spec.md §4.8's FIX_ACQUIRED <-> SEARCH transition.
			d.transitionTo(ColdStart)
		}
	case evAlpsrvRequest:
		d.handleAlpsrvRequest(ev.alpsrvReq)
	}
}

// transitionTo moves current to next, publishing EventStateChanged. The
// teacher's side-effect-then-commit shape collapses here because every
// side effect this driver performs (a CFG send, a timer arm) either
// completes synchronously before transitionTo is called, or drives its
// own async completion through a callback that itself calls transitionTo
// once ready — there is no separate in_state_change window to model
// since no caller observes the driver mid-call.
func (d *Driver) transitionTo(next State) {
	if next == d.current {
		return
	}
	prev := d.current
	d.current = next
	d.metrics.RecordStateChange()
	d.observer.ObserveStateChange(prev, next)
	d.bus.Publish(EventStateChanged, StateChange{From: prev, To: next})
}

func (d *Driver) publishTargetReached() {
	d.bus.Publish(EventTargetReached, d.target)
}

func (d *Driver) armTargetTimeout(timeout time.Duration) {
	d.cancelTargetTimeout()
	if timeout <= 0 {
		timeout = d.cfg.TransitionTimeout
	}
	d.sb.targetTimeoutID = d.wheel.Set(d.nowMs(), uint32(timeout.Milliseconds()), func(id uint16, _ any) bool {
		d.submitEvent(smEvent{kind: evTimeout, timerID: id})
		return true
	}, nil)
}

func (d *Driver) cancelTargetTimeout() {
	if d.sb.targetTimeoutID != 0 {
		d.wheel.Remove(d.sb.targetTimeoutID)
		d.sb.targetTimeoutID = 0
	}
}

// onTargetTimeout implements spec.md §4.8's transition timeout: publish
// the timeout event and revert target to whatever the current state
// implies, so a later Tick doesn't keep chasing an unreachable goal.
func (d *Driver) onTargetTimeout() {
	d.sb.targetTimeoutID = 0
	d.bus.Publish(EventTargetTimeout, d.target)
	d.target = impliedTarget(d.current)
}

// impliedTarget maps an observed state back onto the target it already
// satisfies, used when a transition timeout fires and there is no longer
// a pending external request to honor.
func impliedTarget(state State) TargetState {
	switch state {
	case PowerOff:
		return TargetPowerOff
	case FixAcquired:
		return TargetFixAcquired
	default:
		return TargetSearchFix
	}
}

// observeFix folds one NAV-PVT solution into the raw/smoothed publish
// path and, when the fix is good enough, the location hint.
func (d *Driver) observeFix(fix ubx.NavPVT) {
	if !fix.FixType.HasFix() {
		return
	}
	loc := Location{
		LatDeg:    float64(fix.LatDeg1e7) / 1e7,
		LonDeg:    float64(fix.LonDeg1e7) / 1e7,
		AltM:      float64(fix.HMSLMm) / 1000.0,
		AccuracyM: float64(fix.HAccMm) / 1000.0,
		GPSTimeS:  float64(d.nowMs()) / 1000.0,
	}
	d.lastRawFix = loc
	d.metrics.RecordFix()
	d.observer.ObserveFix()

	d.locFilter.Observe(locfilter.Fix{
		LatDeg: loc.LatDeg, LonDeg: loc.LonDeg, AltM: loc.AltM,
		AccuracyM: loc.AccuracyM, Time: d.clock(),
	}, func(rawFix locfilter.Fix) {
		d.bus.Publish(EventRawFix, Location{
			LatDeg: rawFix.LatDeg, LonDeg: rawFix.LonDeg, AltM: rawFix.AltM,
			AccuracyM: rawFix.AccuracyM, GPSTimeS: loc.GPSTimeS,
		})
	})

	if d.hint != nil {
		now := d.clock()
		d.hint.MaybeUpdate(now, aiding.Location{
			LatDeg1e7:  fix.LatDeg1e7,
			LonDeg1e7:  fix.LonDeg1e7,
			AltMm:      fix.HMSLMm,
			AccuracyMm: fix.HAccMm,
		}, loc.AccuracyM)
	}
}

// handleAlpsrvRequest serves an in-flight ALPSRV exchange (spec.md
// §4.10). With a store attached it replies over the link and publishes
// EventAlpsrvActivity whether the request is served or rejected; with no
// store attached the request is dropped without a reply or an event.
func (d *Driver) handleAlpsrvRequest(req aiding.AlpsrvRequest) {
	if d.aidingStore == nil {
		return
	}
	resp, err := d.aidingStore.HandleAlpsrv(req)
	d.metrics.RecordAlpsrv(req.Op == aiding.AlpsrvWrite, resp.Reject)
	d.observer.ObserveAlpsrv(req.Op == aiding.AlpsrvWrite, resp.Reject)
	d.bus.Publish(EventAlpsrvActivity, AlpsrvActivity{Write: req.Op == aiding.AlpsrvWrite, Rejected: resp.Reject})
	if err != nil {
		d.logger.Warn("alpsrv request rejected", "error", err, "fileID", req.FileID)
	}
	if werr := d.write(encodeAlpsrvResponse(resp)); werr != nil {
		d.logger.Warn("failed writing alpsrv response", "error", werr)
	}
}

// alpsrvFlagReject marks an AID-ALPSRV reply as a rejection (stale file
// id or invalid file) rather than served data, per spec.md §4.10.
const alpsrvFlagReject = 0x01

// encodeAlpsrvResponse frames an AID-ALPSRV reply: file id, a status/flags
// byte carrying the reject bit, then the payload read from (or acknowledged
// for) the backing file. A rejected response carries no payload bytes.
func encodeAlpsrvResponse(resp aiding.AlpsrvResponse) []byte {
	payload := make([]byte, 3+len(resp.Payload))
	payload[0] = byte(resp.FileID)
	payload[1] = byte(resp.FileID >> 8)
	if resp.Reject {
		payload[2] = alpsrvFlagReject
	}
	copy(payload[3:], resp.Payload)
	return ubx.Encode(ubx.Message{Class: ubx.ClassAID, ID: ubx.IDAidAlpsrv, Payload: payload})
}
