package ubgps

import (
	cfgpkg "github.com/ublox-gps/ubgps/internal/cfg"
	"github.com/ublox-gps/ubgps/internal/initseq"
)

// cfgNavBBRColdStart is the CFG-RST nav_bbr_mask value that discards
// every category of aiding data, used when a failed init is retried with
// a cold reset (spec.md §4.9's reinit_cold path).
const cfgNavBBRColdStart uint16 = 0xFFFF

// nmeaFamily identifies one standard NMEA sentence by class/id, disabled
// individually during the "disable_nmea" init phase (spec.md §4.9: CFG-MSG
// per family).
type nmeaFamily struct{ class, id byte }

// nmeaClass is the NMEA standard message class; the driver logs NMEA for
// diagnostics (internal/nmea) but never asks the receiver to emit it.
const nmeaClass = 0xF0

var nmeaDisableFamilies = []nmeaFamily{
	{nmeaClass, 0x00}, // GGA
	{nmeaClass, 0x01}, // GLL
	{nmeaClass, 0x02}, // GSA
	{nmeaClass, 0x03}, // GSV
	{nmeaClass, 0x04}, // RMC
	{nmeaClass, 0x05}, // VTG
}

// beginInitSequence builds and starts the ordered configuration phases
// spec.md §4.9 describes, while current is Initialization.
func (d *Driver) beginInitSequence() {
	d.seq = initseq.New(d.initPhases(), d.cfg.InitPhaseRetries, d.logger)
	d.seq.Start(func(ok bool, failedPhase string) {
		if ok {
			d.onInitSucceeded()
		} else {
			d.onInitFailed(failedPhase)
		}
	})
}

// cancelInitSequence stops an in-progress init sequence without invoking
// its completion callback, used when a TARGET_STATE(POWER_OFF) preempts
// bring-up.
func (d *Driver) cancelInitSequence() {
	if d.seq != nil {
		d.seq.Cancel()
		d.seq = nil
	}
}

func (d *Driver) initTimeoutMs() uint32 {
	return uint32(d.cfg.InitPhaseTimeout.Milliseconds())
}

func (d *Driver) initPhases() []initseq.Phase {
	phases := []initseq.Phase{
		{Name: "probe_port", Run: d.probePortPhase},
		{Name: "set_baud", Run: d.setBaudPhase},
		{Name: "disable_nmea", Run: d.disableNMEAPhase},
		{Name: "nav_rate", Run: d.navRatePhase},
		{Name: "nav5", Run: d.nav5Phase},
		{Name: "pm2", Run: d.pm2Phase},
		{Name: "rxm", Run: d.rxmPhase},
	}
	if d.cfg.SBASEnabled {
		phases = append(phases, initseq.Phase{Name: "sbas", Run: d.sbasPhase})
	}
	phases = append(phases,
		initseq.Phase{Name: "aid_ini", Run: d.aidIniPhase},
		initseq.Phase{Name: "poll_aid_alp", Run: d.pollAidAlpPhase},
	)
	return phases
}

// probePortPhase is a pass-through: the fd is already open and
// configured at the OS level by the caller (spec.md §1's scope
// boundary), so there is nothing to probe beyond the bring-up this
// sequence already performs.
func (d *Driver) probePortPhase(onDone func(ok bool, err error)) error {
	onDone(true, nil)
	return nil
}

func (d *Driver) setBaudPhase(onDone func(ok bool, err error)) error {
	params := cfgpkg.CfgPrtParams{
		PortID:       d.cfg.UARTPortID,
		Mode:         d.cfg.UARTMode,
		BaudRate:     d.cfg.UARTBaudRate,
		InProtoMask:  d.cfg.UARTInProtoMask,
		OutProtoMask: d.cfg.UARTOutProtoMask,
	}
	return d.sender.SendCfgPrt(params, d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

func (d *Driver) disableNMEAPhase(onDone func(ok bool, err error)) error {
	return d.sendNMEADisableFrom(0, onDone)
}

// sendNMEADisableFrom sends CFG-MSG(rate=0) for families[i:] in order,
// waiting for each ACK before sending the next. Only the very first send
// in the phase returns its error directly (so initseq's retry sees a
// clean local-failure abort per its PhaseFunc contract); every
// subsequent send funnels a local error through onDone instead, since
// nothing observes the return value of a call made from inside a
// dispatcher callback.
func (d *Driver) sendNMEADisableFrom(i int, onDone func(ok bool, err error)) error {
	if i >= len(nmeaDisableFamilies) {
		onDone(true, nil)
		return nil
	}
	f := nmeaDisableFamilies[i]
	return d.sender.SendCfgMsg(f.class, f.id, 0, d.initTimeoutMs(), func(ok bool, err error) {
		if !ok {
			onDone(false, err)
			return
		}
		if err := d.sendNMEADisableFrom(i+1, onDone); err != nil {
			onDone(false, err)
		}
	})
}

func (d *Driver) navRatePhase(onDone func(ok bool, err error)) error {
	return d.sender.SendCfgRate(d.cfg.NavRateMs, 1, 0, d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

func (d *Driver) nav5Phase(onDone func(ok bool, err error)) error {
	return d.sender.SendCfgNav5(d.cfg.DynModel, d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

func (d *Driver) pm2Phase(onDone func(ok bool, err error)) error {
	return d.sender.SendCfgPm2(d.cfg.PSMUpdatePeriodMs, d.cfg.PSMSearchPeriodMs, d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

func (d *Driver) rxmPhase(onDone func(ok bool, err error)) error {
	lpMode := byte(0)
	if d.sb.powerMode == PowerModePSM {
		lpMode = 1
	}
	return d.sender.SendCfgRxm(lpMode, d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

func (d *Driver) sbasPhase(onDone func(ok bool, err error)) error {
	return d.sender.SendCfgSbas(1, 0x03, 3, 0, 0, d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

// aidIniPhase derives AID-INI per spec.md §4.7: a usable location hint
// contributes position fields; wall-clock time is always sent.
func (d *Driver) aidIniPhase(onDone func(ok bool, err error)) error {
	now := d.clock()
	params := cfgpkg.AidIniParams{
		HaveTime:       true,
		UnixTime:       now.Unix(),
		NanosOfS:       int32(now.Nanosecond()),
		TimeAccuracyMs: 1000,
	}
	if d.hint != nil && d.hint.Usable(now) {
		params.HavePosition = true
		params.LatDeg1e7 = d.hint.Location.LatDeg1e7
		params.LonDeg1e7 = d.hint.Location.LonDeg1e7
		params.AltMm = d.hint.Location.AltMm
		params.AccuracyMm = uint32(d.hint.EffectiveAccuracy(now) * 1000.0)
	}
	return d.sender.SendAidIni(params, d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

func (d *Driver) pollAidAlpPhase(onDone func(ok bool, err error)) error {
	return d.sender.PollAidAlp(d.initTimeoutMs(), func(ok bool, err error) { onDone(ok, err) })
}

// onInitSucceeded picks which of ColdStart/WarmStart/HotStart realizes
// the SEARCH_FIX target (spec.md §4.8), based on aiding freshness, and
// transitions into it.
func (d *Driver) onInitSucceeded() {
	next := ColdStart
	if d.hint != nil && d.hint.Usable(d.clock()) {
		if d.sb.isReinit && !d.sb.reinitCold {
			next = HotStart
		} else {
			next = WarmStart
		}
	}
	d.sb.isReinit = false
	d.sb.reinitCold = false
	d.sb.initRetryCount = 0

	d.transitionTo(next)
	if d.target == TargetSearchFix {
		d.cancelTargetTimeout()
		d.publishTargetReached()
	}
}

// onInitFailed implements spec.md §4.9's exhaustion path: one cold-reset
// reinitialization attempt, then falling back to PowerOff.
func (d *Driver) onInitFailed(failedPhase string) {
	d.metrics.RecordConfigRetry()
	d.sb.initRetryCount++
	d.logger.Warn("initialization failed", "phase", failedPhase, "attempt", d.sb.initRetryCount)

	if d.sb.initRetryCount <= 1 {
		d.sb.isReinit = true
		d.sb.reinitCold = true
		_ = d.sender.SendCfgRst(cfgNavBBRColdStart, cfgpkg.ResetColdStart, 0, nil)
		d.beginInitSequence()
		return
	}

	d.sb.powered = false
	d.cancelTargetTimeout()
	d.transitionTo(PowerOff)
}
