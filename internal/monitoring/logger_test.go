package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op; make sure the previous logger is not reached
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestComponent_PrefixesAndFollowsSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	logf := Component("imu")

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	logf("device %d online", 7)

	if got != "[imu] device 7 online" {
		t.Errorf("got %q, want %q", got, "[imu] device 7 online")
	}
}
