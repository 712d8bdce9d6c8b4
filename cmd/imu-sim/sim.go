package main

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// spikeMagnitude is comfortably above the default fire threshold.
const spikeMagnitude = 5

// simDevice produces a slowly sweeping controller with periodic flicks.
type simDevice struct {
	id        imu.DeviceID
	seq       uint16
	phase     float64 // radians, offsets devices from one another
	fireEvery float64 // seconds between flicks, <= 0 never
	lastFire  float64
	color     *imu.RGBA
}

func newSimDevice(id imu.DeviceID, fireEvery float64, color *imu.RGBA) *simDevice {
	return &simDevice{
		id:        id,
		phase:     float64(id) * math.Pi / 3,
		fireEvery: fireEvery,
		color:     color,
	}
}

// orientationAt sweeps yaw over ±40° and pitch over ±15°.
func orientationAt(t, phase float64) imu.Quat {
	yaw := r3.NewRotation(40*math.Pi/180*math.Sin(0.5*t+phase), r3.Vec{Y: 1})
	pitch := r3.NewRotation(15*math.Pi/180*math.Sin(0.8*t+phase), r3.Vec{X: 1})
	return imu.QuatFromNumber(quat.Mul(quat.Number(yaw), quat.Number(pitch)))
}

// next returns the sample for time t (seconds since start).
func (d *simDevice) next(t float64) imu.Sample {
	s := imu.Sample{
		Version:         1,
		DeviceID:        d.id,
		Sequence:        d.seq,
		TimestampMicros: uint64(t * 1e6),
		Orientation:     orientationAt(t, d.phase),
		AngularVelocity: imu.Vec3{
			X: float32(0.8 * 15 * math.Pi / 180 * math.Cos(0.8*t+d.phase)),
			Y: float32(0.5 * 40 * math.Pi / 180 * math.Cos(0.5*t+d.phase)),
		},
	}
	d.seq++
	if d.fireEvery > 0 && t-d.lastFire >= d.fireEvery {
		s.Acceleration = imu.Vec3{Z: spikeMagnitude}
		d.lastFire = t
	}
	if d.color != nil {
		s.HasColor = true
		s.Color = *d.color
	}
	return s
}
