// Package cfg sends UBX configuration messages (CFG-* and AID-INI) and
// optionally waits for their ACK-ACK/ACK-NAK. Each function here mirrors
// one of the teacher's typed `ctrl.Controller` senders (`AddDevice`,
// `SetParams`, `StartDevice`, ...): build a payload, encode a frame, write
// it, and — if the caller wants confirmation — register a dispatcher
// waiter keyed on the message's own class/id.
package cfg

import (
	"encoding/binary"
	"errors"

	"github.com/ublox-gps/ubgps/internal/dispatch"
	"github.com/ublox-gps/ubgps/internal/logging"
	"github.com/ublox-gps/ubgps/internal/ubx"
)

// ErrNak is passed to a ResponseFunc when the receiver answers a set
// message with ACK-NAK.
var ErrNak = errors.New("cfg: receiver returned ACK-NAK")

// ResponseFunc reports the outcome of a configuration exchange: ok is
// true only on ACK-ACK (or, for poll-style messages, a same-class/id
// reply). err is ErrNak, dispatch.ErrTimeout or dispatch.ErrCancelled; a
// write error is returned by the sending call itself and never reaches
// the ResponseFunc.
type ResponseFunc func(ok bool, err error)

// Sender writes CFG-*/AID-INI frames on a link and correlates replies
// through a Dispatcher.
type Sender struct {
	write      func(frame []byte) error
	dispatcher *dispatch.Dispatcher
	nowMs      func() int64
	logger     *logging.Logger
}

// New returns a Sender. write transmits a complete UBX frame; nowMs
// supplies the clock the dispatcher's timeouts are measured against.
func New(write func(frame []byte) error, dispatcher *dispatch.Dispatcher, nowMs func() int64, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{write: write, dispatcher: dispatcher, nowMs: nowMs, logger: logger}
}

func (s *Sender) sendAwaitingAck(msg ubx.Message, timeoutMs uint32, onResponse ResponseFunc) error {
	if err := s.write(ubx.Encode(msg)); err != nil {
		return err
	}
	if onResponse == nil {
		return nil
	}
	s.dispatcher.Request(s.nowMs(), msg.ClassID(), timeoutMs, func(reply ubx.Message, err error) {
		if err != nil {
			onResponse(false, err)
			return
		}
		if reply.Class == ubx.ClassACK && reply.ID == ubx.IDAckAck {
			onResponse(true, nil)
			return
		}
		onResponse(false, ErrNak)
	})
	return nil
}

// CfgPrtParams configures one UART port (CFG-PRT).
type CfgPrtParams struct {
	PortID       byte
	Mode         uint32
	BaudRate     uint32
	InProtoMask  uint16
	OutProtoMask uint16
}

// SendCfgPrt sends CFG-PRT.
func (s *Sender) SendCfgPrt(p CfgPrtParams, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 20)
	payload[0] = p.PortID
	binary.LittleEndian.PutUint32(payload[4:8], p.Mode)
	binary.LittleEndian.PutUint32(payload[8:12], p.BaudRate)
	binary.LittleEndian.PutUint16(payload[12:14], p.InProtoMask)
	binary.LittleEndian.PutUint16(payload[14:16], p.OutProtoMask)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgPrt, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// SendCfgMsg enables or disables periodic output of msgClass/msgID at
// the given rate (messages sent per navigation solution; 0 disables).
func (s *Sender) SendCfgMsg(msgClass, msgID, rate byte, timeoutMs uint32, onResponse ResponseFunc) error {
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgMsg, Payload: []byte{msgClass, msgID, rate}}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// SendCfgRate sets the navigation measurement rate (CFG-RATE).
func (s *Sender) SendCfgRate(rateMs, navCycles, timeRef uint16, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], rateMs)
	binary.LittleEndian.PutUint16(payload[2:4], navCycles)
	binary.LittleEndian.PutUint16(payload[4:6], timeRef)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgRate, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// ResetMode selects the CFG-RST reset behavior.
type ResetMode byte

const (
	ResetHardware      ResetMode = 0x00
	ResetControlled    ResetMode = 0x01
	ResetHotStart      ResetMode = 0x02
	ResetWarmStart     ResetMode = 0x04
	ResetColdStart     ResetMode = 0x08
	ResetGNSSOnly      ResetMode = 0x09
)

// SendCfgRst requests a receiver reset with the given navBbrMask clearing
// the classes of aiding data to discard before restart (0 preserves
// everything; the full hot/warm/cold masks are in spec.md §4.2). CFG-RST
// is rarely ACK'd by real hardware, so callers typically pass a nil
// onResponse.
func (s *Sender) SendCfgRst(navBbrMask uint16, mode ResetMode, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], navBbrMask)
	payload[2] = byte(mode)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgRst, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// SendCfgAnt configures antenna supervisor flags (CFG-ANT).
func (s *Sender) SendCfgAnt(flags, pins uint16, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], flags)
	binary.LittleEndian.PutUint16(payload[2:4], pins)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgAnt, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// SendCfgSbas enables or disables SBAS correction usage (CFG-SBAS).
func (s *Sender) SendCfgSbas(mode, usage, maxSbas, scanMode2 byte, scanMode1 uint32, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 8)
	payload[0] = mode
	payload[1] = usage
	payload[2] = maxSbas
	payload[3] = scanMode2
	binary.LittleEndian.PutUint32(payload[4:8], scanMode1)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgSbas, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// DynModel is the CFG-NAV5 dynamic platform model.
type DynModel byte

const (
	DynModelPortable   DynModel = 0
	DynModelStationary DynModel = 2
	DynModelPedestrian DynModel = 3
	DynModelAutomotive DynModel = 4
	DynModelSea        DynModel = 5
	DynModelAirborne1g DynModel = 6
)

// SendCfgNav5 sets the dynamic platform model (CFG-NAV5). Only the
// dynamic model mask/value is populated; the rest of the 36-byte payload
// is left at its zero (= "leave unchanged") value.
func (s *Sender) SendCfgNav5(model DynModel, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 36)
	binary.LittleEndian.PutUint16(payload[0:2], 0x0001) // mask: apply dynamic model only
	payload[2] = byte(model)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgNav5, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// SendCfgRxm sets the receiver power/tracking mode (CFG-RXM).
func (s *Sender) SendCfgRxm(lpMode byte, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := []byte{0x08, lpMode}
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgRxm, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// SendCfgPm2 configures power save mode parameters (CFG-PM2). Only the
// update and search periods are populated; the rest of the 44-byte
// payload is left at zero.
func (s *Sender) SendCfgPm2(updatePeriodMs, searchPeriodMs uint32, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 44)
	payload[0] = 1 // version
	binary.LittleEndian.PutUint32(payload[24:28], updatePeriodMs)
	binary.LittleEndian.PutUint32(payload[28:32], searchPeriodMs)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgPm2, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// SendCfgCfg persists or clears the receiver's configuration
// (save/clear/load masks into BBR/Flash/I2C-EEPROM, CFG-CFG).
func (s *Sender) SendCfgCfg(clearMask, saveMask, loadMask uint32, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 12)
	binary.LittleEndian.PutUint32(payload[0:4], clearMask)
	binary.LittleEndian.PutUint32(payload[4:8], saveMask)
	binary.LittleEndian.PutUint32(payload[8:12], loadMask)
	msg := ubx.Message{Class: ubx.ClassCFG, ID: ubx.IDCfgCfg, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// AidIniParams carries the optional position/time hint sent with AID-INI.
type AidIniParams struct {
	HavePosition bool
	LatDeg1e7    int32
	LonDeg1e7    int32
	AltMm        int32
	AccuracyMm   uint32

	HaveTime bool
	UnixTime int64
	NanosOfS int32
	TimeAccuracyMs uint32
}

// SendAidIni sends AID-INI, the time/position hint that seeds a cold
// start. Per spec.md §4.7, position fields are populated only when a
// usable location hint is attached; otherwise only the time fields (and
// their valid-flag bits) are set.
func (s *Sender) SendAidIni(p AidIniParams, timeoutMs uint32, onResponse ResponseFunc) error {
	payload := make([]byte, 48)
	var flags uint32

	if p.HavePosition {
		binary.LittleEndian.PutUint32(payload[0:4], uint32(p.LatDeg1e7))
		binary.LittleEndian.PutUint32(payload[4:8], uint32(p.LonDeg1e7))
		binary.LittleEndian.PutUint32(payload[8:12], uint32(p.AltMm))
		binary.LittleEndian.PutUint32(payload[12:16], p.AccuracyMm)
		flags |= 0x01 // position valid
	}
	if p.HaveTime {
		binary.LittleEndian.PutUint32(payload[24:28], uint32(p.UnixTime))
		binary.LittleEndian.PutUint32(payload[28:32], uint32(p.NanosOfS))
		binary.LittleEndian.PutUint32(payload[32:36], p.TimeAccuracyMs)
		flags |= 0x02 // time valid
	}
	binary.LittleEndian.PutUint32(payload[44:48], flags)

	msg := ubx.Message{Class: ubx.ClassAID, ID: ubx.IDAidIni, Payload: payload}
	return s.sendAwaitingAck(msg, timeoutMs, onResponse)
}

// PollAidAlp polls the receiver's current AID-ALP almanac status. The
// reply is an AID-ALP message delivered through onResponse's underlying
// dispatcher wait, not an ACK — ok is true once any reply arrives.
func (s *Sender) PollAidAlp(timeoutMs uint32, onResponse ResponseFunc) error {
	msg := ubx.Message{Class: ubx.ClassAID, ID: ubx.IDAidAlp}
	if err := s.write(ubx.Encode(msg)); err != nil {
		return err
	}
	if onResponse == nil {
		return nil
	}
	s.dispatcher.Request(s.nowMs(), msg.ClassID(), timeoutMs, func(reply ubx.Message, err error) {
		onResponse(err == nil, err)
	})
	return nil
}
