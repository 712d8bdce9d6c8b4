// Package fusion turns raw device orientation and acceleration into world
// space. Devices report orientation in their own frame, which differs by
// handset model and firmware, so the correction is data: per-axis sign flips
// on the quaternion's vector part followed by a fixed basis rotation.
package fusion

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// Preset names accepted by PresetCorrection.
const (
	PresetRig      = "rig"
	PresetXperia   = "xperia"
	PresetIdentity = "identity"
)

// Forward is the rig's local pointing axis.
var Forward = r3.Vec{Z: 1}

// Correction maps a device-frame quaternion into world space:
//
//	world = Offset * flip(q)
//
// where flip multiplies the x, y and z components of q by Signs.
type Correction struct {
	Signs  [3]float64
	Offset quat.Number
}

// Identity leaves orientations untouched.
var Identity = Correction{Signs: [3]float64{1, 1, 1}, Offset: quat.Number{Real: 1}}

// PresetCorrection returns a named correction. Known presets:
//
//	rig       x-flip, then Euler(90, 0, 0)
//	xperia    no flip, Euler(90, 0, 180)
//	identity  no change
func PresetCorrection(name string) (Correction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetRig, "":
		return NewCorrection([3]float64{-1, 1, 1}, [3]float64{90, 0, 0}), nil
	case PresetXperia:
		return NewCorrection([3]float64{1, 1, 1}, [3]float64{90, 0, 180}), nil
	case PresetIdentity:
		return Identity, nil
	default:
		return Correction{}, fmt.Errorf("unknown orientation preset %q", name)
	}
}

// NewCorrection builds a correction from axis signs and an Euler offset in
// degrees. Signs other than -1 are treated as +1.
func NewCorrection(signs [3]float64, eulerDeg [3]float64) Correction {
	var c Correction
	for i, s := range signs {
		if s < 0 {
			c.Signs[i] = -1
		} else {
			c.Signs[i] = 1
		}
	}
	c.Offset = Euler(eulerDeg[0], eulerDeg[1], eulerDeg[2])
	return c
}

// Euler returns the rotation of z degrees about Z, then x about X, then y
// about Y, composed as qy * qx * qz.
func Euler(x, y, z float64) quat.Number {
	qx := axisAngle(r3.Vec{X: 1}, x)
	qy := axisAngle(r3.Vec{Y: 1}, y)
	qz := axisAngle(r3.Vec{Z: 1}, z)
	return quat.Mul(quat.Mul(qy, qx), qz)
}

func axisAngle(axis r3.Vec, deg float64) quat.Number {
	return quat.Number(r3.NewRotation(deg*math.Pi/180, axis))
}

// Normalize returns q scaled to unit length. A zero or non-finite
// quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// Apply returns the corrected unit orientation for a raw device quaternion.
func (c Correction) Apply(raw imu.Quat) quat.Number {
	q := Normalize(raw.Number())
	q.Imag *= c.Signs[0]
	q.Jmag *= c.Signs[1]
	q.Kmag *= c.Signs[2]
	return Normalize(quat.Mul(c.Offset, q))
}

// Rotate rotates v by the unit quaternion q.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// WorldAcceleration rotates a device-frame acceleration into world space.
func WorldAcceleration(corrected quat.Number, accel imu.Vec3) r3.Vec {
	return Rotate(corrected, accel.R3())
}

// TipPosition returns the world position of a point fixed at local offset
// on a rig at rigPos with the given orientation.
func TipPosition(rigPos r3.Vec, corrected quat.Number, offset r3.Vec) r3.Vec {
	return r3.Add(rigPos, Rotate(corrected, offset))
}

// Direction normalises v. A zero or non-finite vector falls back to the
// rig's forward axis under the given orientation.
func Direction(v r3.Vec, corrected quat.Number) r3.Vec {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Rotate(corrected, Forward)
	}
	return r3.Scale(1/n, v)
}
