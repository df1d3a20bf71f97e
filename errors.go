// Package ubgps implements a u-blox GPS receiver driver core: the
// lifecycle state machine, UBX codec and dispatcher, and AssistNow
// Offline aiding subsystem, all driven from an already-open serial file
// descriptor supplied by the caller.
package ubgps

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured driver error with context and errno
// mapping, the same shape as the teacher's ublk *Error: an operation
// name, an error-code category, the kernel errno that produced it (if
// any), a message, and an optionally wrapped cause.
type Error struct {
	Op    string    // Operation that failed, e.g. "SendCfgRate", "Store.Reload"
	State State     // Driver state at the time of failure, PowerOff if not applicable
	Code  ErrorCode // High-level error category
	Errno syscall.Errno
	Msg   string
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("ubgps: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("ubgps: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support: two *Error values are equivalent if
// they share an error Code.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode enumerates the driver's error taxonomy (spec.md §7).
type ErrorCode string

const (
	ErrCodeTransientIO       ErrorCode = "transient I/O error"
	ErrCodeProtocolNAK       ErrorCode = "receiver returned ACK-NAK"
	ErrCodeTimeoutACK        ErrorCode = "timed out waiting for ACK"
	ErrCodeTimeoutTarget     ErrorCode = "timed out waiting for target state"
	ErrCodeAlpInvalid        ErrorCode = "ALP almanac file invalid"
	ErrCodeFatalIO           ErrorCode = "unrecoverable I/O error"
	ErrCodeInvalidParameters ErrorCode = "invalid parameters"
)

// NewError creates a structured error with no wrapped cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a structured error carrying a kernel errno.
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: code, Errno: errno, Msg: errno.Error()}
}

// WrapError wraps inner with driver context, mapping a bare syscall.Errno
// (or an already-structured *Error) onto the driver's error taxonomy the
// same way the teacher's WrapError maps kernel errnos for ublk.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if existing, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			State: existing.State,
			Code:  existing.Code,
			Errno: existing.Errno,
			Msg:   existing.Msg,
			Inner: existing.Inner,
		}
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:    op,
			Code:  mapErrnoToCode(errno),
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{Op: op, Code: ErrCodeTransientIO, Msg: inner.Error(), Inner: inner}
}

// mapErrnoToCode maps a kernel errno to a driver error code. Per spec.md
// §7, only errnos that mean the link itself is gone (EBADF, ENODEV, and
// ENXIO) are fatal; EINVAL maps to ErrCodeInvalidParameters; everything
// else — including EAGAIN, which the I/O layer normally absorbs already —
// is transient and left to the caller's retry policy.
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EBADF, syscall.ENODEV, syscall.ENXIO:
		return ErrCodeFatalIO
	case syscall.EINVAL:
		return ErrCodeInvalidParameters
	default:
		return ErrCodeTransientIO
	}
}

// IsCode reports whether err is a *Error (directly or via Unwrap) with
// the given Code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsErrno reports whether err is a *Error (directly or via Unwrap)
// carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Errno == errno
	}
	return false
}
