// Package iostream performs non-blocking reads and writes on the raw file
// descriptor of the GPS receiver's serial link. It wraps golang.org/x/sys/unix
// rather than os.File so the driver can treat EAGAIN as "nothing to do right
// now" instead of an error, which is the contract the rest of the driver's
// single-threaded poll loop depends on.
package iostream

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultReadChunk is the buffer size used by Drain for each underlying
// read(2) call.
const DefaultReadChunk = 512

// ErrClosed is returned by Drain when read(2) returns 0, indicating the
// peer end of the link has been closed. The root package maps this to
// ErrCodeFatalIO when constructing a driver-level *Error.
var ErrClosed = errors.New("iostream: link closed by peer")

// SetNonblocking toggles O_NONBLOCK on fd.
func SetNonblocking(fd int, nonblocking bool) error {
	if err := unix.SetNonblock(fd, nonblocking); err != nil {
		return fmt.Errorf("iostream: set nonblocking fd=%d: %w", fd, err)
	}
	return nil
}

// Drain reads everything currently available on fd without blocking. It
// issues read(2) in a loop, retrying on EINTR and stopping cleanly on
// EAGAIN/EWOULDBLOCK once the kernel buffer is empty. A read returning 0
// means the peer closed the link, reported as io.EOF-shaped via the
// ErrClosed sentinel error.
func Drain(fd int) ([]byte, error) {
	var out []byte
	buf := make([]byte, DefaultReadChunk)
	for {
		n, err := unix.Read(fd, buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return out, nil
		case err != nil:
			return out, fmt.Errorf("iostream: read fd=%d: %w", fd, err)
		case n == 0:
			return out, ErrClosed
		default:
			out = append(out, buf[:n]...)
			if n < len(buf) {
				// Short read: the kernel buffer is very likely drained.
				// One more call will confirm with EAGAIN on the next Drain,
				// so returning here keeps the poll loop from spinning.
				return out, nil
			}
		}
	}
}

// WriteAll writes every byte of data to fd, retrying on EINTR and on partial
// writes. It blocks the calling goroutine only for as long as the kernel
// write buffer is full; callers that cannot tolerate blocking writes should
// size their transmit buffers to the flow-control window documented in
// spec.md.
func WriteAll(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			continue
		case err != nil:
			return fmt.Errorf("iostream: write fd=%d: %w", fd, err)
		default:
			data = data[n:]
		}
	}
	return nil
}
