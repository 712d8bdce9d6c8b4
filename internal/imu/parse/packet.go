// Package parse implements the version 1 IMU telemetry wire format.
//
// Layout (little-endian):
//
//	offset  size  field
//	0       1     protocol version (must be 1)
//	1       1     device id
//	2       2     sequence
//	4       8     timestamp, microseconds
//	12      16    orientation quaternion x, y, z, w (f32)
//	28      12    angular velocity x, y, z (f32)
//	40      12    acceleration x, y, z (f32)
//	52      12    reserved (3 x f32)
//	64      4     optional RGBA8 tip colour
//
// Bytes past offset 68 are ignored.
package parse

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/spraypaint/internal/imu"
)

const (
	// ProtocolVersion is the only accepted version byte.
	ProtocolVersion = 1

	// MinBaseLength is 1+1+2+8+13*4.
	MinBaseLength = 64

	// ColorLength is MinBaseLength plus the RGBA8 block.
	ColorLength = MinBaseLength + 4
)

var (
	ErrTooShort           = errors.New("telemetry packet too short")
	ErrUnsupportedVersion = errors.New("unsupported telemetry protocol version")
)

// DecodeError describes why a datagram was rejected. It matches
// ErrTooShort or ErrUnsupportedVersion with errors.Is.
type DecodeError struct {
	Kind    error
	Len     int
	Version uint8
}

func (e *DecodeError) Error() string {
	if e.Kind == ErrUnsupportedVersion {
		return fmt.Sprintf("%v: got %d", e.Kind, e.Version)
	}
	return fmt.Sprintf("%v: %d bytes, need %d", e.Kind, e.Len, MinBaseLength)
}

func (e *DecodeError) Unwrap() error { return e.Kind }

// Decode parses a datagram. It does not retain b.
func Decode(b []byte) (imu.Sample, error) {
	var s imu.Sample
	if len(b) < MinBaseLength {
		return s, &DecodeError{Kind: ErrTooShort, Len: len(b)}
	}
	if b[0] != ProtocolVersion {
		return s, &DecodeError{Kind: ErrUnsupportedVersion, Len: len(b), Version: b[0]}
	}

	s.Version = b[0]
	s.DeviceID = imu.DeviceID(b[1])
	s.Sequence = binary.LittleEndian.Uint16(b[2:4])
	s.TimestampMicros = binary.LittleEndian.Uint64(b[4:12])

	s.Orientation = imu.Quat{X: f32(b, 12), Y: f32(b, 16), Z: f32(b, 20), W: f32(b, 24)}
	s.AngularVelocity = imu.Vec3{X: f32(b, 28), Y: f32(b, 32), Z: f32(b, 36)}
	s.Acceleration = imu.Vec3{X: f32(b, 40), Y: f32(b, 44), Z: f32(b, 48)}
	s.Reserved = [3]float32{f32(b, 52), f32(b, 56), f32(b, 60)}

	if len(b) >= ColorLength {
		s.HasColor = true
		s.Color = imu.RGBA{R: b[64], G: b[65], B: b[66], A: b[67]}
	}
	return s, nil
}

// Encode is the byte-exact inverse of Decode. The colour block is written
// only when s.HasColor is set. The version byte is taken from s; a zero
// version is written as ProtocolVersion.
func Encode(s imu.Sample) []byte {
	n := MinBaseLength
	if s.HasColor {
		n = ColorLength
	}
	return AppendEncode(make([]byte, 0, n), s)
}

// AppendEncode appends the encoding of s to dst.
func AppendEncode(dst []byte, s imu.Sample) []byte {
	version := s.Version
	if version == 0 {
		version = ProtocolVersion
	}
	dst = append(dst, version, byte(s.DeviceID))
	dst = binary.LittleEndian.AppendUint16(dst, s.Sequence)
	dst = binary.LittleEndian.AppendUint64(dst, s.TimestampMicros)
	for _, v := range [...]float32{
		s.Orientation.X, s.Orientation.Y, s.Orientation.Z, s.Orientation.W,
		s.AngularVelocity.X, s.AngularVelocity.Y, s.AngularVelocity.Z,
		s.Acceleration.X, s.Acceleration.Y, s.Acceleration.Z,
		s.Reserved[0], s.Reserved[1], s.Reserved[2],
	} {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	if s.HasColor {
		dst = append(dst, s.Color.R, s.Color.G, s.Color.B, s.Color.A)
	}
	return dst
}

func f32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
}
