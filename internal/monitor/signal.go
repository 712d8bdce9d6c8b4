package monitor

import (
	"slices"
	"sync"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// SignalPoint is one gesture signal sample.
type SignalPoint struct {
	Time  float64 `json:"t"`
	Value float64 `json:"v"`
}

// SignalHistory keeps a sliding window of the gesture signal per device.
// It implements session.SignalObserver.
type SignalHistory struct {
	mu     sync.Mutex
	window float64
	series map[imu.DeviceID][]SignalPoint
	latest float64
}

// NewSignalHistory keeps the last window seconds of samples.
func NewSignalHistory(window float64) *SignalHistory {
	if window <= 0 {
		window = 10
	}
	return &SignalHistory{
		window: window,
		series: make(map[imu.DeviceID][]SignalPoint),
	}
}

// ObserveSignal records one sample.
func (h *SignalHistory) ObserveSignal(id imu.DeviceID, now, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if now > h.latest {
		h.latest = now
	}
	pts := append(h.series[id], SignalPoint{Time: now, Value: value})
	cut := 0
	for cut < len(pts) && pts[cut].Time < now-h.window {
		cut++
	}
	if cut > 0 {
		pts = slices.Delete(pts, 0, cut)
	}
	h.series[id] = pts
}

// Snapshot returns a copy of every series that has a sample inside the
// window ending at the newest observation, along with the ids in order.
func (h *SignalHistory) Snapshot() ([]imu.DeviceID, map[imu.DeviceID][]SignalPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.latest - h.window
	ids := make([]imu.DeviceID, 0, len(h.series))
	out := make(map[imu.DeviceID][]SignalPoint, len(h.series))
	for id, pts := range h.series {
		if len(pts) == 0 || pts[len(pts)-1].Time < cutoff {
			delete(h.series, id)
			continue
		}
		ids = append(ids, id)
		out[id] = slices.Clone(pts)
	}
	slices.Sort(ids)
	return ids, out
}
