// Package gesture turns a continuous per-device signal into discrete fire
// decisions with a threshold and a cooldown.
package gesture

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// Detector holds the last fire time per device. It is owned by the tick
// context and is not safe for concurrent use.
type Detector struct {
	threshold float64
	cooldown  float64
	lastFire  map[imu.DeviceID]float64
}

// NewDetector creates a detector. threshold is compared against the signal
// magnitude and cooldown is in seconds; both comparisons are inclusive.
func NewDetector(threshold, cooldown float64) *Detector {
	return &Detector{
		threshold: threshold,
		cooldown:  cooldown,
		lastFire:  make(map[imu.DeviceID]float64),
	}
}

// Evaluate reports whether id fires at now. It fires when manual is set or
// signal >= threshold, and now - lastFire >= cooldown. A device that has
// never fired is always outside its cooldown. Firing records now.
func (d *Detector) Evaluate(id imu.DeviceID, signal float64, manual bool, now float64) bool {
	if !manual && !(signal >= d.threshold) {
		return false
	}
	if last, ok := d.lastFire[id]; ok && now-last < d.cooldown {
		return false
	}
	d.lastFire[id] = now
	return true
}

// LastFire returns the time id last fired.
func (d *Detector) LastFire(id imu.DeviceID) (float64, bool) {
	t, ok := d.lastFire[id]
	return t, ok
}

// Forget drops id's history, e.g. on teardown, so a new device reusing the
// id starts fresh.
func (d *Detector) Forget(id imu.DeviceID) {
	delete(d.lastFire, id)
}

// VelocityTracker derives frame-to-frame speed from a tracked world
// position. The first observation of a device has no previous position and
// reports no velocity.
type VelocityTracker struct {
	last map[imu.DeviceID]r3.Vec
}

// NewVelocityTracker creates an empty tracker.
func NewVelocityTracker() *VelocityTracker {
	return &VelocityTracker{last: make(map[imu.DeviceID]r3.Vec)}
}

// Observe records pos for id and returns the velocity since the previous
// observation. ok is false on the first observation or when dt <= 0.
func (v *VelocityTracker) Observe(id imu.DeviceID, pos r3.Vec, dt float64) (vel r3.Vec, ok bool) {
	prev, seen := v.last[id]
	v.last[id] = pos
	if !seen || dt <= 0 {
		return r3.Vec{}, false
	}
	return r3.Scale(1/dt, r3.Sub(pos, prev)), true
}

// Forget drops id's previous position.
func (v *VelocityTracker) Forget(id imu.DeviceID) {
	delete(v.last, id)
}
