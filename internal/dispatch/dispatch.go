// Package dispatch correlates outgoing UBX requests with their replies.
// Pending requests are kept in a per-(class,id) FIFO, mirroring how the
// receiver itself answers polls in request order. Unsolicited messages —
// anything that doesn't match a pending request — are handed to a
// broadcast sink instead, the same "owned vs. unclaimed" split the
// teacher's tag state array enforces between in-flight and unowned
// descriptors.
package dispatch

import (
	"errors"

	"github.com/ublox-gps/ubgps/internal/logging"
	"github.com/ublox-gps/ubgps/internal/timer"
	"github.com/ublox-gps/ubgps/internal/ubx"
)

// ErrTimeout is passed to a request's callback when no reply arrives
// before its deadline.
var ErrTimeout = errors.New("dispatch: request timed out")

// ErrCancelled is passed to a request's callback when Cancel is called
// before a reply or timeout.
var ErrCancelled = errors.New("dispatch: request cancelled")

// ReplyFunc is invoked exactly once per Request call: either with the
// matching reply, or with a zero-value message and a non-nil error
// (ErrTimeout or ErrCancelled).
type ReplyFunc func(msg ubx.Message, err error)

type pendingRequest struct {
	classID uint16
	timerID uint16
	onReply ReplyFunc
	done    bool
}

// Dispatcher owns the pending-request table for one UBX link.
type Dispatcher struct {
	wheel     *timer.Wheel
	pending   map[uint16][]*pendingRequest
	broadcast func(ubx.Message)
	logger    *logging.Logger
}

// New returns a Dispatcher. broadcast receives any inbound message that
// does not correlate to a pending Request; it must not be nil.
func New(wheel *timer.Wheel, broadcast func(ubx.Message), logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		wheel:     wheel,
		pending:   make(map[uint16][]*pendingRequest),
		broadcast: broadcast,
		logger:    logger,
	}
}

// Request registers interest in the next reply to classID (an
// ubx.ClassID(class, id) value) and arms a timeout. It returns a handle
// usable with Cancel. Replies to CFG-* set messages arrive as ACK-ACK or
// ACK-NAK; Deliver resolves those against the classID of the request they
// acknowledge, not the ACK's own class,id.
func (d *Dispatcher) Request(nowMs int64, classID uint16, timeoutMs uint32, onReply ReplyFunc) uint16 {
	req := &pendingRequest{classID: classID, onReply: onReply}
	req.timerID = d.wheel.Set(nowMs, timeoutMs, func(uint16, any) bool {
		d.expire(req)
		return true
	}, nil)
	d.pending[classID] = append(d.pending[classID], req)
	return req.timerID
}

// Cancel aborts a pending request identified by the handle Request
// returned. It is a no-op if the request already completed.
func (d *Dispatcher) Cancel(classID uint16, handle uint16) {
	queue := d.pending[classID]
	for i, req := range queue {
		if req.timerID == handle && !req.done {
			d.wheel.Remove(req.timerID)
			d.removeAt(classID, i)
			req.done = true
			req.onReply(ubx.Message{}, ErrCancelled)
			return
		}
	}
}

func (d *Dispatcher) expire(req *pendingRequest) {
	if req.done {
		return
	}
	queue := d.pending[req.classID]
	for i, r := range queue {
		if r == req {
			d.removeAt(req.classID, i)
			break
		}
	}
	req.done = true
	req.onReply(ubx.Message{}, ErrTimeout)
}

func (d *Dispatcher) removeAt(classID uint16, i int) {
	queue := d.pending[classID]
	queue = append(queue[:i], queue[i+1:]...)
	if len(queue) == 0 {
		delete(d.pending, classID)
	} else {
		d.pending[classID] = queue
	}
}

// Deliver routes an inbound message to the oldest pending request for its
// correlation key, or to the broadcast sink if nothing is waiting for it.
// It reports whether a pending request claimed the message.
func (d *Dispatcher) Deliver(msg ubx.Message) bool {
	key := correlationKey(msg)

	queue := d.pending[key]
	if len(queue) == 0 {
		d.broadcast(msg)
		return false
	}

	req := queue[0]
	d.removeAt(key, 0)
	d.wheel.Remove(req.timerID)
	req.done = true
	req.onReply(msg, nil)
	return true
}

func correlationKey(msg ubx.Message) uint16 {
	if msg.Class == ubx.ClassACK && len(msg.Payload) >= 2 {
		return ubx.ClassID(msg.Payload[0], msg.Payload[1])
	}
	return msg.ClassID()
}

// Pending reports how many requests are waiting on classID, for tests and
// diagnostics.
func (d *Dispatcher) Pending(classID uint16) int {
	return len(d.pending[classID])
}
