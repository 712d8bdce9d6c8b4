package serialmux

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/banshee-data/spraypaint/internal/imu/network"
)

// NewRealBridge opens the serial port at path and returns a Bridge that
// feeds its frames to handler.
func NewRealBridge(path string, opts PortOptions, handler network.PacketHandler) (*Bridge[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	return NewBridge[serial.Port](port, handler), nil
}
