// Package network receives telemetry datagrams and feeds them to the device
// registry.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/spraypaint/internal/monitoring"
)

// ErrBind is returned by Start when the socket cannot be acquired. Callers
// treat it as fatal for telemetry only and keep the rest of the system up.
var ErrBind = errors.New("cannot bind telemetry socket")

// readPoll bounds how long a blocked read can delay shutdown.
const readPoll = 100 * time.Millisecond

// maxDatagram covers the largest payload we accept plus slack for future
// trailing fields.
const maxDatagram = 2048

var logf = monitoring.Component("imu")

// UDPListener owns the telemetry socket and runs the receive loop.
type UDPListener struct {
	address       string
	rcvBuf        int
	logInterval   time.Duration
	connMu        sync.RWMutex // Protects conn field
	conn          UDPSocket
	stats         PacketStatsInterface
	handler       PacketHandler
	socketFactory UDPSocketFactory
}

// UDPListenerConfig contains configuration options for the UDP listener
type UDPListenerConfig struct {
	Address       string
	RcvBuf        int
	LogInterval   time.Duration
	Stats         PacketStatsInterface
	Handler       PacketHandler
	SocketFactory UDPSocketFactory // Optional: factory for creating UDP sockets (for testing)
}

// NewUDPListener creates a new UDP listener with the provided configuration
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	var stats PacketStatsInterface
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	socketFactory := config.SocketFactory
	if socketFactory == nil {
		socketFactory = RealUDPSocketFactory{}
	}

	return &UDPListener{
		address:       config.Address,
		rcvBuf:        config.RcvBuf,
		logInterval:   logInterval,
		stats:         stats,
		handler:       config.Handler,
		socketFactory: socketFactory,
	}
}

// Start binds the socket and receives until ctx is cancelled or Close is
// called. It returns ctx.Err() on cancellation, nil after Close, and an
// error wrapping ErrBind if the socket cannot be acquired.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("%w: resolve %q: %w", ErrBind, l.address, err)
	}

	conn, err := l.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrBind, l.address, err)
	}
	l.setConn(conn)
	defer l.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	logf("UDP listener started on %s with receive buffer %d bytes", conn.LocalAddr(), l.rcvBuf)

	go l.startStatsLogging(ctx)

	buffer := make([]byte, maxDatagram)
	var deadlineErrLogged bool
	var lastReadErrLog time.Time
	var suppressedReadErrs int

	for {
		select {
		case <-ctx.Done():
			logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readPoll)); err != nil && !deadlineErrLogged {
			logf("failed to set read deadline: %v", err)
			deadlineErrLogged = true
		}

		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.stats.AddReadError()
			if time.Since(lastReadErrLog) >= l.logInterval {
				if suppressedReadErrs > 0 {
					logf("UDP read error: %v (%d more since last report)", err, suppressedReadErrs)
				} else {
					logf("UDP read error: %v", err)
				}
				lastReadErrLog = time.Now()
				suppressedReadErrs = 0
			} else {
				suppressedReadErrs++
			}
			// A socket that fails outright fails again immediately.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readPoll):
			}
			continue
		}

		if l.handler != nil {
			// Decode failures are counted by the handler and never logged
			// per packet.
			_ = l.handler.HandlePacket(buffer[:n])
		}
	}
}

// startStatsLogging periodically logs packet statistics until ctx ends.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

func (l *UDPListener) setConn(conn UDPSocket) {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	l.conn = conn
}

// LocalAddr returns the bound address, or nil before Start binds.
func (l *UDPListener) LocalAddr() net.Addr {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Close closes the socket, unblocking the receive loop.
// It is safe to call Close multiple times.
func (l *UDPListener) Close() error {
	l.connMu.Lock()
	conn := l.conn
	l.conn = nil
	l.connMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
