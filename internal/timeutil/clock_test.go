package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(200 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(1500 * time.Millisecond)

	if got := clock.Since(start); got != 1500*time.Millisecond {
		t.Errorf("Since() = %v, want 1.5s", got)
	}
}

func TestMockTicker_DropsUnreadTicks(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(10 * time.Millisecond)

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Millisecond)
	}
	got := 0
	for {
		select {
		case <-ticker.C():
			got++
			continue
		default:
		}
		break
	}
	if got != 1 {
		t.Errorf("buffered ticks = %d, want 1", got)
	}

	clock.Advance(5 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval")
	default:
	}
}

func TestMockTicker_FiresOnAdvanceUntilStopped(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(100 * time.Millisecond)

	clock.Advance(100 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("expected tick")
	}

	ticker.Stop()
	clock.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMonotonic_Seconds(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	mono := NewMonotonic(clock)

	if got := mono.Seconds(); got != 0 {
		t.Errorf("initial Seconds() = %v, want 0", got)
	}
	clock.Advance(16 * time.Second)
	if got := mono.Seconds(); got != 16 {
		t.Errorf("Seconds() = %v, want 16", got)
	}
	if mono.Clock() != clock {
		t.Error("Clock() should return the injected clock")
	}
}

func TestNewMonotonic_NilClockDefaultsToReal(t *testing.T) {
	mono := NewMonotonic(nil)
	if _, ok := mono.Clock().(RealClock); !ok {
		t.Errorf("expected RealClock, got %T", mono.Clock())
	}
}
