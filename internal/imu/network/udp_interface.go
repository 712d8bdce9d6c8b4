package network

import (
	"net"
	"sync"
	"time"
)

// UDPSocket is the part of *net.UDPConn the listener uses.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory opens sockets. Tests substitute MockUDPSocketFactory.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory opens real sockets with net.ListenUDP.
type RealUDPSocketFactory struct{}

func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type mockRead struct {
	data []byte
	err  error
}

// MockUDPSocket is an in-memory UDPSocket. Datagrams and read errors are
// queued with Deliver and Fail and come out of ReadFromUDP in order. A read
// with nothing queued waits until the read deadline, then reports a timeout.
type MockUDPSocket struct {
	reads chan mockRead
	done  chan struct{}
	local *net.UDPAddr

	mu        sync.Mutex
	deadline  time.Time
	rcvBuf    int
	rcvBufErr error
	delivered int
	closed    bool
}

// NewMockUDPSocket returns a socket bound to 127.0.0.1:26761 with room for
// 256 queued reads.
func NewMockUDPSocket() *MockUDPSocket {
	return &MockUDPSocket{
		reads: make(chan mockRead, 256),
		done:  make(chan struct{}),
		local: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 26761},
	}
}

// Deliver queues one datagram.
func (m *MockUDPSocket) Deliver(payload []byte) {
	m.reads <- mockRead{data: append([]byte(nil), payload...)}
}

// Fail queues one read error.
func (m *MockUDPSocket) Fail(err error) {
	m.reads <- mockRead{err: err}
}

// FailSetReadBuffer makes SetReadBuffer return err.
func (m *MockUDPSocket) FailSetReadBuffer(err error) {
	m.mu.Lock()
	m.rcvBufErr = err
	m.mu.Unlock()
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	deadline := m.deadline
	m.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-m.done:
		return 0, nil, net.ErrClosed
	case <-timeout:
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	case r := <-m.reads:
		if r.err != nil {
			return 0, nil, r.err
		}
		m.mu.Lock()
		m.delivered++
		m.mu.Unlock()
		src := &net.UDPAddr{IP: net.IPv4(192, 168, 4, 2), Port: 49152}
		return copy(b, r.data), src, nil
	}
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rcvBufErr != nil {
		return m.rcvBufErr
	}
	m.rcvBuf = bytes
	return nil
}

func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	m.deadline = t
	m.mu.Unlock()
	return nil
}

func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr { return m.local }

// Delivered counts datagrams handed to a reader.
func (m *MockUDPSocket) Delivered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delivered
}

// ReadBuffer returns the last size accepted by SetReadBuffer.
func (m *MockUDPSocket) ReadBuffer() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rcvBuf
}

// IsClosed reports whether Close was called.
func (m *MockUDPSocket) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockUDPSocketFactory hands out one prepared socket, or Err.
type MockUDPSocketFactory struct {
	Socket *MockUDPSocket
	Err    error
}

func (f *MockUDPSocketFactory) ListenUDP(string, *net.UDPAddr) (UDPSocket, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Socket, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
