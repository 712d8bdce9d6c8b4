package imu

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DeviceID is the 8-bit identity assigned by device firmware. It is unique
// among simultaneously connected devices only; a later unit may reuse it.
type DeviceID uint8

func (id DeviceID) String() string {
	return fmt.Sprintf("d%d", uint8(id))
}

// Quat is a wire-precision quaternion in (x, y, z, w) order.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = Quat{W: 1}

// Number converts q to a gonum quaternion (Real = w).
func (q Quat) Number() quat.Number {
	return quat.Number{Real: float64(q.W), Imag: float64(q.X), Jmag: float64(q.Y), Kmag: float64(q.Z)}
}

// QuatFromNumber converts a gonum quaternion back to wire precision.
func QuatFromNumber(n quat.Number) Quat {
	return Quat{X: float32(n.Imag), Y: float32(n.Jmag), Z: float32(n.Kmag), W: float32(n.Real)}
}

// Vec3 is a wire-precision 3-vector.
type Vec3 struct {
	X, Y, Z float32
}

// R3 converts v to a gonum vector.
func (v Vec3) R3() r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// RGBA is an 8-bit per channel colour.
type RGBA struct {
	R, G, B, A uint8
}

// Unit returns the colour channels scaled to [0,1].
func (c RGBA) Unit() [4]float64 {
	return [4]float64{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, float64(c.A) / 255}
}

func (c RGBA) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Sample is one decoded telemetry datagram.
type Sample struct {
	Version         uint8
	DeviceID        DeviceID
	Sequence        uint16
	TimestampMicros uint64
	Orientation     Quat
	AngularVelocity Vec3
	Acceleration    Vec3
	Reserved        [3]float32 // carried for byte-exact re-encoding only
	HasColor        bool
	Color           RGBA
}

// DeviceState is the latest fused state for one device. It is a plain
// value: copies taken under the registry lock are complete and never torn.
type DeviceState struct {
	ID              DeviceID
	Orientation     Quat
	AngularVelocity Vec3
	Acceleration    Vec3

	LastSequence        uint16
	LastTimestampMicros uint64

	TotalPackets           uint64
	PacketsSinceRateSample uint64
	SmoothedRateHz         float64

	// LastSeen is the monotonic receive time of the latest packet, seconds.
	LastSeen float64

	// rate window bookkeeping, owned by the tick context
	RateWindowStart   float64
	RateWindowStarted bool

	HasColor bool
	Color    RGBA
}

// RateReport is produced when a device's rate window closes.
type RateReport struct {
	ID          DeviceID
	Sequence    uint16
	RateHz      float64
	Orientation Quat
}
