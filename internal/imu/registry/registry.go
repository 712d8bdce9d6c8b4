// Package registry is the shared device table between the network receive
// path and the tick path.
//
// The receive path only calls Upsert. The tick path reads with Snapshot and
// LastSeen, closes rate windows with SampleRates and deletes idle devices with
// Remove. Every method holds the lock for one map operation or one copy and
// never calls out while holding it.
package registry

import (
	"sort"
	"sync"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// RateSmoothing is the lerp factor applied to each new rate sample.
const RateSmoothing = 0.4

// minRateWindow guards the rate division against a zero-length window.
const minRateWindow = 1e-3

// Registry maps device identity to latest fused state.
type Registry struct {
	mu      sync.Mutex
	devices map[imu.DeviceID]*imu.DeviceState
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{devices: make(map[imu.DeviceID]*imu.DeviceState)}
}

// Upsert folds a decoded sample into the device's state, creating it on
// first sight. now is the monotonic receive time in seconds.
func (r *Registry) Upsert(s imu.Sample, now float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.devices[s.DeviceID]
	if !ok {
		st = &imu.DeviceState{ID: s.DeviceID}
		r.devices[s.DeviceID] = st
	}

	st.Orientation = s.Orientation
	st.AngularVelocity = s.AngularVelocity
	st.Acceleration = s.Acceleration
	st.LastSequence = s.Sequence
	st.LastTimestampMicros = s.TimestampMicros
	st.TotalPackets++
	st.PacketsSinceRateSample++
	st.LastSeen = now
	if s.HasColor {
		st.HasColor = true
		st.Color = s.Color
	}
}

// Snapshot returns copies of all entries ordered by device id.
func (r *Registry) Snapshot() []imu.DeviceState {
	r.mu.Lock()
	out := make([]imu.DeviceState, 0, len(r.devices))
	for _, st := range r.devices {
		out = append(out, *st)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a copy of one entry.
func (r *Registry) Get(id imu.DeviceID) (imu.DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.devices[id]
	if !ok {
		return imu.DeviceState{}, false
	}
	return *st, true
}

// LastSeen returns the monotonic receive time of the device's latest packet.
func (r *Registry) LastSeen(id imu.DeviceID) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.devices[id]
	if !ok {
		return 0, false
	}
	return st.LastSeen, true
}

// Remove deletes a device. It reports whether the device was present.
func (r *Registry) Remove(id imu.DeviceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[id]
	delete(r.devices, id)
	return ok
}

// RemoveIfIdle deletes a device only if it has still not been heard from
// since cutoff. A packet that lands between the idle decision and this call
// keeps the device alive.
func (r *Registry) RemoveIfIdle(id imu.DeviceID, cutoff float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.devices[id]
	if !ok || st.LastSeen > cutoff {
		return false
	}
	delete(r.devices, id)
	return true
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// SampleRates closes every rate window that is at least interval seconds
// old, updating SmoothedRateHz and resetting the per-window counter. The
// first call for a device opens its window at now. Reports for closed
// windows are returned in device id order.
func (r *Registry) SampleRates(now, interval float64) []imu.RateReport {
	var reports []imu.RateReport

	r.mu.Lock()
	for _, st := range r.devices {
		if !st.RateWindowStarted {
			st.RateWindowStart = now
			st.RateWindowStarted = true
		}
		elapsed := now - st.RateWindowStart
		if elapsed < interval {
			continue
		}
		if elapsed < minRateWindow {
			elapsed = minRateWindow
		}
		hz := float64(st.PacketsSinceRateSample) / elapsed
		if st.SmoothedRateHz <= 0 {
			st.SmoothedRateHz = hz
		} else {
			st.SmoothedRateHz += (hz - st.SmoothedRateHz) * RateSmoothing
		}
		st.RateWindowStart = now
		st.PacketsSinceRateSample = 0

		reports = append(reports, imu.RateReport{
			ID:          st.ID,
			Sequence:    st.LastSequence,
			RateHz:      st.SmoothedRateHz,
			Orientation: st.Orientation,
		})
	}
	r.mu.Unlock()

	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports
}
