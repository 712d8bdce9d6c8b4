package network

import (
	"sync"
	"time"

	"github.com/banshee-data/spraypaint/internal/monitoring"
)

// PacketStatsInterface provides packet statistics management
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDropped()
	AddReadError()
	LogStats()
}

// PacketCounts is a point-in-time copy of the counters.
type PacketCounts struct {
	Packets    int64 `json:"packets"`
	Bytes      int64 `json:"bytes"`
	Dropped    int64 `json:"dropped"`
	ReadErrors int64 `json:"read_errors"`
}

// PacketStats counts datagrams seen by the receive path. Dropped counts
// packets that failed to decode.
type PacketStats struct {
	mu         sync.Mutex
	packets    int64
	bytes      int64
	dropped    int64
	readErrors int64
	lastReset  time.Time
	lastCount  int64
	logf       func(format string, v ...interface{})
}

// NewPacketStats creates a new PacketStats instance
func NewPacketStats() *PacketStats {
	return &PacketStats{
		lastReset: time.Now(),
		logf:      monitoring.Component("imu"),
	}
}

// AddPacket increments packet count and byte count
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packets++
	ps.bytes += int64(bytes)
}

// AddDropped increments dropped packet count
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.dropped++
}

// AddReadError counts a transient socket error.
func (ps *PacketStats) AddReadError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.readErrors++
}

// Counts returns the cumulative counters.
func (ps *PacketStats) Counts() PacketCounts {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return PacketCounts{
		Packets:    ps.packets,
		Bytes:      ps.bytes,
		Dropped:    ps.dropped,
		ReadErrors: ps.readErrors,
	}
}

// LogStats logs the counters accumulated since the previous call and the
// packet rate over that window, then starts a new window. Cumulative totals
// returned by Counts are not reset.
func (ps *PacketStats) LogStats() {
	ps.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(ps.lastReset).Seconds()
	ps.lastReset = now
	c := PacketCounts{Packets: ps.packets, Bytes: ps.bytes, Dropped: ps.dropped, ReadErrors: ps.readErrors}
	window := c.Packets - ps.lastCount
	ps.lastCount = c.Packets
	ps.mu.Unlock()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(window) / elapsed
	}
	ps.logf("packets=%d bytes=%d dropped=%d read_errors=%d (%.1f pkt/s since last report)",
		c.Packets, c.Bytes, c.Dropped, c.ReadErrors, rate)
}

// noopStats is a PacketStatsInterface implementation that does nothing.
// It is used as a safe default when no stats collector is provided.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddDropped()         {}
func (n *noopStats) AddReadError()       {}
func (n *noopStats) LogStats()           {}
