package ubgps

import (
	"errors"
	"time"

	"github.com/ublox-gps/ubgps/internal/aiding"
	cfgpkg "github.com/ublox-gps/ubgps/internal/cfg"
	"github.com/ublox-gps/ubgps/internal/dispatch"
	"github.com/ublox-gps/ubgps/internal/eventbus"
	"github.com/ublox-gps/ubgps/internal/initseq"
	"github.com/ublox-gps/ubgps/internal/iostream"
	"github.com/ublox-gps/ubgps/internal/locfilter"
	"github.com/ublox-gps/ubgps/internal/logging"
	"github.com/ublox-gps/ubgps/internal/nmea"
	"github.com/ublox-gps/ubgps/internal/timer"
	"github.com/ublox-gps/ubgps/internal/ubx"
)

// Driver is one GPS receiver bound to an already-open serial file
// descriptor, the root type ported from the teacher's Device/Backend
// wiring in backend.go: the caller owns opening and configuring the fd
// (baud, parity, blocking mode at the OS level); Driver owns everything
// from the byte stream inward.
type Driver struct {
	fd int

	cfg      Config
	logger   *logging.Logger
	metrics  *Metrics
	observer Observer
	clock    func() time.Time

	bus        *eventbus.Bus
	wheel      *timer.Wheel
	parser     *ubx.Parser
	nmeaAsm    *nmea.Assembler
	dispatcher *dispatch.Dispatcher
	sender     *cfgpkg.Sender
	locFilter  *locfilter.Filter
	seq        *initseq.Sequencer

	aidingStore *aiding.Store
	hint        *aiding.Hint

	sb      stateBlock
	current State
	target  TargetState

	deferredQueue []smEvent
	overrideSM    overrideStateMachine

	lastRawFix Location
}

// Option configures a Driver at Open time.
type Option func(*Driver)

// WithConfig overrides the default Config.
func WithConfig(c Config) Option {
	return func(d *Driver) { d.cfg = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics overrides the default Metrics instance.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithObserver overrides the default metrics-backed Observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// WithClock overrides the wall clock used for timers and hint
// degradation, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.clock = now }
}

// Open binds a Driver to fd, which must already be open for reading and
// writing (the serial port itself — baud rate, parity, and blocking mode
// at the OS level — is the caller's responsibility, per spec.md §1's
// scope boundary). The fd is switched to non-blocking mode.
func Open(fd int, opts ...Option) (*Driver, error) {
	d := &Driver{
		fd:      fd,
		cfg:     DefaultConfig(),
		logger:  logging.Default(),
		metrics: NewMetrics(),
		clock:   time.Now,
		bus:     eventbus.New(),
		parser:  ubx.NewParser(),
		current: PowerOff,
		target:  TargetPowerOff,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.observer == nil {
		d.observer = NewMetricsObserver(d.metrics)
	}

	d.wheel = timer.New(d.logger)
	d.nmeaAsm = nmea.NewAssembler(d.cfg.NMEAMaxLineLen, d.logger)
	d.dispatcher = dispatch.New(d.wheel, d.handleBroadcast, d.logger)
	d.sender = cfgpkg.New(d.write, d.dispatcher, d.nowMs, d.logger)
	d.locFilter = locfilter.New()

	if err := iostream.SetNonblocking(fd, true); err != nil {
		return nil, WrapError("Open", err)
	}
	return d, nil
}

// Close releases driver-owned resources. It does not close fd — the
// caller opened it and owns its lifetime.
func (d *Driver) Close() error {
	d.metrics.Stop()
	if d.aidingStore != nil {
		return d.aidingStore.Close()
	}
	return nil
}

func (d *Driver) write(frame []byte) error {
	return iostream.WriteAll(d.fd, frame)
}

func (d *Driver) nowMs() int64 {
	return d.clock().UnixNano() / int64(time.Millisecond)
}

// AttachAiding installs an ALP store, enabling ALPSRV handling and
// AID-INI position aiding once the store holds a validated file.
func (d *Driver) AttachAiding(store *aiding.Store) {
	d.aidingStore = store
	d.sb.alpsrvEnabled = store != nil
}

// DetachAiding removes the current ALP store. Until a new one is
// attached, ALPSRV requests are dropped: no reply is written and no
// EventAlpsrvActivity is published.
func (d *Driver) DetachAiding() {
	d.aidingStore = nil
	d.sb.alpsrvEnabled = false
}

// AttachHint installs a location hint, consulted by SendAidIni on the
// next cold start and refreshed from every sufficiently good fix.
func (d *Driver) AttachHint(hint *aiding.Hint) {
	d.hint = hint
}

// SetTargetState requests the driver pursue t, arming a transition
// timeout (defaulting to Config.TransitionTimeout when timeout is zero).
// It is the external entry point matching the teacher's AddDevice /
// StartDevice control-plane calls.
func (d *Driver) SetTargetState(t TargetState, timeout time.Duration) error {
	d.submitEvent(smEvent{kind: evTargetState, targetState: t, targetTimeout: timeout})
	return nil
}

// Poll drains every byte currently available on fd, feeding it to the
// UBX codec and NMEA assembler, and routes complete UBX messages through
// the dispatcher. It never blocks — the fd was switched to non-blocking
// mode by Open.
func (d *Driver) Poll() error {
	data, err := iostream.Drain(d.fd)
	if len(data) > 0 {
		d.feed(data)
	}
	if err != nil {
		if errors.Is(err, iostream.ErrClosed) {
			d.logger.Warn("serial link closed by peer")
			return &Error{Op: "Poll", Code: ErrCodeFatalIO, Msg: err.Error(), Inner: err}
		}
		return WrapError("Poll", err)
	}
	return nil
}

func (d *Driver) feed(data []byte) {
	prevErrs, prevDiscarded := d.parser.ChecksumErrors, d.parser.Discarded
	for _, b := range data {
		if msg, ok := d.parser.Feed(b); ok {
			d.metrics.RecordFrame(false, false)
			d.observer.ObserveFrame(false, false)
			d.dispatcher.Deliver(msg)
		}
		if line, ok := d.nmeaAsm.Feed(b); ok {
			d.bus.Publish(EventNMEALine, string(line))
		}
	}
	for i := uint64(0); i < d.parser.ChecksumErrors-prevErrs; i++ {
		d.metrics.RecordFrame(true, false)
		d.observer.ObserveFrame(true, false)
	}
	for i := uint64(0); i < d.parser.Discarded-prevDiscarded; i++ {
		d.metrics.RecordFrame(false, true)
		d.observer.ObserveFrame(false, true)
	}
}

// handleBroadcast is the dispatcher's sink for inbound messages that
// don't correlate to a pending request — NAV-PVT and AID-ALPSRV arrive
// this way, since nothing calls Request for them.
func (d *Driver) handleBroadcast(msg ubx.Message) {
	switch {
	case msg.Class == ubx.ClassNAV && msg.ID == ubx.IDNavPvt:
		if fix, ok := ubx.DecodeNavPVT(msg.Payload); ok {
			d.submitEvent(smEvent{kind: evNavPVT, fix: fix})
		}
	case msg.Class == ubx.ClassAID && msg.ID == ubx.IDAidAlpsrv:
		if req, ok := decodeAlpsrvRequest(msg.Payload); ok {
			d.submitEvent(smEvent{kind: evAlpsrvRequest, alpsrvReq: req})
		}
	case msg.Class == ubx.ClassAID && msg.ID == ubx.IDAidAlp:
		d.submitEvent(smEvent{kind: evAidAlpReady})
	}
}

// decodeAlpsrvRequest parses an inbound AID-ALPSRV request: op byte,
// 16-bit file id, 32-bit offset, 16-bit size, then (for writes) the
// payload to persist.
func decodeAlpsrvRequest(payload []byte) (aiding.AlpsrvRequest, bool) {
	const headerLen = 9
	if len(payload) < headerLen {
		return aiding.AlpsrvRequest{}, false
	}
	req := aiding.AlpsrvRequest{
		Op:       aiding.AlpsrvOp(payload[0]),
		FileID:   uint16(payload[1]) | uint16(payload[2])<<8,
		Offset:   uint32(payload[3]) | uint32(payload[4])<<8 | uint32(payload[5])<<16 | uint32(payload[6])<<24,
		DataSize: uint16(payload[7]) | uint16(payload[8])<<8,
	}
	if req.Op == aiding.AlpsrvWrite {
		req.Payload = payload[headerLen:]
	}
	return req, true
}

// Tick advances the timer wheel to now, firing any due timers (init
// phase timeouts, ACK waits and the target-state transition timeout),
// then runs the location filter's smoothing step. The smoothing step runs
// on every Tick rather than on a timer of its own, so its cadence is
// whatever rate the host calls Tick at. It is the host-driven pump
// spec.md §4.4 and §5 describe — there is no internal goroutine.
func (d *Driver) Tick(now time.Time) error {
	d.wheel.Tick(now.UnixNano() / int64(time.Millisecond))
	if ok := d.locFilter.Tick(func(fix locfilter.Fix) {
		d.bus.Publish(EventSmoothedFix, Location{
			LatDeg: fix.LatDeg, LonDeg: fix.LonDeg, AltM: fix.AltM,
			AccuracyM: fix.AccuracyM, GPSTimeS: float64(now.UnixNano()) / 1e9,
		})
	}); ok {
		d.metrics.RecordFix()
	}
	return nil
}

// NextDeadline reports the earliest pending timer deadline, if any, so a
// host event loop can size its poll/select timeout.
func (d *Driver) NextDeadline() (time.Time, bool) {
	ms, ok := d.wheel.NextDeadline()
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// State reports the driver's current observed lifecycle state.
func (d *Driver) State() State {
	return d.current
}

// Target reports the currently pursued target state.
func (d *Driver) Target() TargetState {
	return d.target
}
