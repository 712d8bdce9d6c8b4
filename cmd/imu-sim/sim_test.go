package main

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spraypaint/internal/imu"
	"github.com/banshee-data/spraypaint/internal/imu/network"
	"github.com/banshee-data/spraypaint/internal/imu/parse"
)

func TestSimDevice_SequenceAndFlicks(t *testing.T) {
	d := newSimDevice(3, 1, nil)

	var fired []float64
	for i := 0; i < 121; i++ {
		now := float64(i) / 60
		s := d.next(now)
		assert.Equal(t, uint16(i), s.Sequence)
		assert.Equal(t, imu.DeviceID(3), s.DeviceID)
		if s.Acceleration.R3() != (imu.Vec3{}).R3() {
			fired = append(fired, now)
		}
	}
	require.Len(t, fired, 2)
	assert.InDelta(t, 1.0, fired[0], 1e-9)
	assert.InDelta(t, 2.0, fired[1], 1e-9)
}

func TestSimDevice_NeverFires(t *testing.T) {
	d := newSimDevice(1, 0, nil)
	for i := 0; i < 600; i++ {
		s := d.next(float64(i) / 60)
		assert.Zero(t, s.Acceleration)
	}
}

func TestOrientationAt_UnitQuaternion(t *testing.T) {
	for _, ts := range []float64{0, 0.3, 1.7, 12.5} {
		q := orientationAt(ts, 0.4)
		n := math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W))
		assert.InDelta(t, 1, n, 1e-5, "t=%v", ts)
	}
}

func TestSimDevice_RoundTripsThroughDecoder(t *testing.T) {
	c := imu.RGBA{R: 10, G: 20, B: 30, A: 255}
	d := newSimDevice(7, 0.5, &c)
	want := d.next(0.5)

	got, err := parse.Decode(parse.Encode(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteCapture(t *testing.T) {
	var buf bytes.Buffer
	w, err := network.NewPCAPWriter(&buf)
	require.NoError(t, err)

	devs := []*simDevice{newSimDevice(1, 0, nil), newSimDevice(2, 0, nil)}
	start := time.Unix(1_700_000_000, 0)
	n, err := writeFrames(w, devs, 26761, start, 0, 60, 30)
	require.NoError(t, err)
	assert.Equal(t, 60, n)
	assert.Greater(t, buf.Len(), 60*(parse.MinBaseLength+42))
}
