package ubgps

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ublox-gps/ubgps/internal/iostream"
)

// MockTransport is an in-memory, socket-backed stand-in for a real
// serial port, the same role the teacher's MockBackend plays for a
// storage backend: it gives tests a real, non-blocking file descriptor
// to hand to Open, while keeping the other end under the test's direct
// control for injecting inbound bytes and inspecting what the driver
// wrote, with call counts for assertions.
type MockTransport struct {
	// DriverFd is the end to pass to Open.
	DriverFd int
	// testFd is the end the test holds, to inject/observe traffic.
	testFd int

	mu          sync.Mutex
	injectCalls int
	drainCalls  int
}

// NewMockTransport creates a connected, non-blocking Unix socket pair and
// returns a MockTransport wrapping it. Callers must Close it when done.
func NewMockTransport() (*MockTransport, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	return &MockTransport{DriverFd: fds[0], testFd: fds[1]}, nil
}

// InjectInbound writes data on the test side of the socket pair, so the
// next Driver.Poll call will read it as if it arrived from the receiver.
func (t *MockTransport) InjectInbound(data []byte) error {
	t.mu.Lock()
	t.injectCalls++
	t.mu.Unlock()
	return iostream.WriteAll(t.testFd, data)
}

// DrainOutbound reads everything the driver has written since the last
// call, from the test side of the socket pair.
func (t *MockTransport) DrainOutbound() ([]byte, error) {
	t.mu.Lock()
	t.drainCalls++
	t.mu.Unlock()
	return iostream.Drain(t.testFd)
}

// Calls reports how many times InjectInbound/DrainOutbound have been
// called, for assertions in tests that care about call shape rather than
// just end state.
func (t *MockTransport) Calls() (inject, drain int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.injectCalls, t.drainCalls
}

// Close closes both ends of the socket pair.
func (t *MockTransport) Close() error {
	err1 := unix.Close(t.DriverFd)
	err2 := unix.Close(t.testFd)
	if err1 != nil {
		return err1
	}
	return err2
}
