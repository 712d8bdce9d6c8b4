package gesture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDetector_Cooldown(t *testing.T) {
	d := NewDetector(2.0, 0.2)

	steps := []struct {
		signal float64
		now    float64
		want   bool
	}{
		{3.0, 0.0, true},
		{3.0, 0.1, false},
		{3.0, 0.25, true},
	}
	for _, s := range steps {
		assert.Equal(t, s.want, d.Evaluate(1, s.signal, false, s.now), "t=%v", s.now)
	}
}

func TestDetector_InclusiveBoundaries(t *testing.T) {
	d := NewDetector(2.0, 0.5)

	assert.True(t, d.Evaluate(1, 2.0, false, 10), "signal == threshold fires")
	assert.True(t, d.Evaluate(1, 2.0, false, 10.5), "elapsed == cooldown fires")
	assert.False(t, d.Evaluate(1, math.Nextafter(2.0, 0), false, 20), "just below threshold")
}

func TestDetector_Manual(t *testing.T) {
	d := NewDetector(2.0, 0.2)

	assert.True(t, d.Evaluate(1, 0, true, 1.0), "manual bypasses threshold")
	assert.False(t, d.Evaluate(1, 0, true, 1.1), "manual respects cooldown")
	assert.True(t, d.Evaluate(1, 0, true, 1.2))
}

func TestDetector_PerDeviceAndForget(t *testing.T) {
	d := NewDetector(1, 1)

	require.True(t, d.Evaluate(1, 5, false, 0))
	assert.True(t, d.Evaluate(2, 5, false, 0.1), "devices cool down independently")
	assert.False(t, d.Evaluate(1, 5, false, 0.5))

	last, ok := d.LastFire(1)
	require.True(t, ok)
	assert.Equal(t, 0.0, last)

	d.Forget(1)
	_, ok = d.LastFire(1)
	assert.False(t, ok)
	assert.True(t, d.Evaluate(1, 5, false, 0.5), "forgotten device fires immediately")
}

func TestDetector_NaNNeverFires(t *testing.T) {
	d := NewDetector(2, 0)
	assert.False(t, d.Evaluate(1, math.NaN(), false, 0))
}

func TestVelocityTracker(t *testing.T) {
	v := NewVelocityTracker()

	_, ok := v.Observe(3, r3.Vec{X: 1}, 0.016)
	assert.False(t, ok, "first observation has no velocity")

	vel, ok := v.Observe(3, r3.Vec{X: 1.5}, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 1.0, vel.X, 1e-12)
	assert.InDelta(t, 1.0, r3.Norm(vel), 1e-12)

	_, ok = v.Observe(3, r3.Vec{X: 2}, 0)
	assert.False(t, ok, "zero dt")

	v.Forget(3)
	_, ok = v.Observe(3, r3.Vec{X: 9}, 0.1)
	assert.False(t, ok)
}
