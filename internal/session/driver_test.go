package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/timeutil"
)

func TestRun_TicksOnClockAndStops(t *testing.T) {
	h := newHarness(t, quietConfig(), 4)
	clock := timeutil.NewMockClock(time.Unix(1_800_000_000, 0))
	mono := timeutil.NewMonotonic(clock)
	ticker := clock.NewTicker(100 * time.Millisecond)

	var fire atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.mgr.Run(ctx, ticker, mono.Seconds, func() bool { return fire.Swap(false) })
	}()

	h.upsert(1, 0)

	clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool {
		return h.mgr.Status().Time > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.InDelta(t, 0.1, h.mgr.Status().Time, 1e-9)
	assert.Len(t, h.rec.OfKind(events.RigCreate), 1)

	fire.Store(true)
	require.Eventually(t, func() bool {
		clock.Advance(100 * time.Millisecond)
		return len(h.rec.OfKind(events.Spawn)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, fire.Load(), "manual request is consumed by the tick")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
