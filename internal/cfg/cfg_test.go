package cfg

import (
	"testing"

	"github.com/ublox-gps/ubgps/internal/dispatch"
	"github.com/ublox-gps/ubgps/internal/timer"
	"github.com/ublox-gps/ubgps/internal/ubx"
)

func newTestSender(t *testing.T) (*Sender, *timer.Wheel, *[]ubx.Message) {
	t.Helper()
	var written []ubx.Message
	w := timer.New(nil)
	d := dispatch.New(w, func(ubx.Message) {}, nil)
	write := func(frame []byte) error {
		p := ubx.NewParser()
		p.FeedAll(frame, func(m ubx.Message) { written = append(written, m) })
		return nil
	}
	return New(write, d, func() int64 { return 0 }, nil), w, &written
}

func TestSendCfgRateWritesWellFormedFrame(t *testing.T) {
	s, _, written := newTestSender(t)
	if err := s.SendCfgRate(1000, 1, 0, 100, nil); err != nil {
		t.Fatal(err)
	}
	if len(*written) != 1 {
		t.Fatalf("got %d frames, want 1", len(*written))
	}
	m := (*written)[0]
	if m.Class != ubx.ClassCFG || m.ID != ubx.IDCfgRate {
		t.Errorf("got class.id %02x.%02x, want CFG-RATE", m.Class, m.ID)
	}
	if len(m.Payload) != 6 {
		t.Fatalf("payload len = %d, want 6", len(m.Payload))
	}
}

func TestSendCfgMsgResolvesOnAckAck(t *testing.T) {
	s, _, _ := newTestSender(t)

	var ok bool
	var err error
	if sendErr := s.SendCfgMsg(ubx.ClassNAV, ubx.IDNavPvt, 1, 100, func(o bool, e error) {
		ok, err = o, e
	}); sendErr != nil {
		t.Fatal(sendErr)
	}

	s.dispatcher.Deliver(ubx.Message{Class: ubx.ClassACK, ID: ubx.IDAckAck, Payload: []byte{ubx.ClassCFG, ubx.IDCfgMsg}})

	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want ok=true err=nil", ok, err)
	}
}

func TestSendCfgRstResolvesOnAckNak(t *testing.T) {
	s, _, _ := newTestSender(t)

	var ok bool
	var err error
	if sendErr := s.SendCfgRst(0, ResetHotStart, 100, func(o bool, e error) { ok, err = o, e }); sendErr != nil {
		t.Fatal(sendErr)
	}

	s.dispatcher.Deliver(ubx.Message{Class: ubx.ClassACK, ID: ubx.IDAckNak, Payload: []byte{ubx.ClassCFG, ubx.IDCfgRst}})

	if ok || err != ErrNak {
		t.Fatalf("ok=%v err=%v, want ok=false err=ErrNak", ok, err)
	}
}

func TestSendCfgNoResponseCallbackSkipsDispatcherWait(t *testing.T) {
	s, _, _ := newTestSender(t)
	if err := s.SendCfgAnt(0, 0, 100, nil); err != nil {
		t.Fatal(err)
	}
	key := ubx.ClassID(ubx.ClassCFG, ubx.IDCfgAnt)
	if s.dispatcher.Pending(key) != 0 {
		t.Errorf("Pending() = %d, want 0 when onResponse is nil", s.dispatcher.Pending(key))
	}
}

func TestSendAidIniPopulatesPositionOnlyWhenRequested(t *testing.T) {
	s, _, written := newTestSender(t)
	p := AidIniParams{
		HavePosition: true,
		LatDeg1e7:    123456789,
		LonDeg1e7:    -987654321,
		AltMm:        1000,
		AccuracyMm:   5000,
	}
	if err := s.SendAidIni(p, 100, nil); err != nil {
		t.Fatal(err)
	}
	m := (*written)[0]
	if m.Class != ubx.ClassAID || m.ID != ubx.IDAidIni {
		t.Fatalf("got class.id %02x.%02x, want AID-INI", m.Class, m.ID)
	}
	flags := m.Payload[44]
	if flags&0x01 == 0 {
		t.Error("position-valid flag not set despite HavePosition=true")
	}
	if flags&0x02 != 0 {
		t.Error("time-valid flag set despite HaveTime=false")
	}
}

func TestSendCfgRateTimesOutWithoutReply(t *testing.T) {
	s, w, _ := newTestSender(t)
	var ok bool
	var err error
	if sendErr := s.SendCfgRate(1000, 1, 0, 50, func(o bool, e error) { ok, err = o, e }); sendErr != nil {
		t.Fatal(sendErr)
	}
	w.Tick(50)
	if ok || err != dispatch.ErrTimeout {
		t.Errorf("ok=%v err=%v, want ok=false err=ErrTimeout", ok, err)
	}
}
