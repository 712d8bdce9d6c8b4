package session

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/config"
	"github.com/banshee-data/spraypaint/internal/fusion"
	"github.com/banshee-data/spraypaint/internal/imu"
)

// Config holds the tick-time tunables. Times are in seconds.
type Config struct {
	IdleTimeout     float64 // <= 0 disables despawn
	RateLogInterval float64

	RequireColor    bool
	AllowManualFire bool

	GestureMode            string
	FireAccelThreshold     float64
	MovementSpeedThreshold float64
	FireCooldown           float64

	LaunchSpeed float64
	TipOffset   r3.Vec
	Palette     []imu.RGBA
	Correction  fusion.Correction
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	cfg, err := FromFile(config.Empty())
	if err != nil {
		panic(err)
	}
	return cfg
}

// FromFile converts a loaded configuration file into tick tunables.
func FromFile(c *config.Config) (Config, error) {
	corr, err := c.GetCorrection()
	if err != nil {
		return Config{}, fmt.Errorf("session config: %w", err)
	}
	return Config{
		IdleTimeout:            c.GetIdleTimeout().Seconds(),
		RateLogInterval:        c.GetRateLogInterval().Seconds(),
		RequireColor:           c.GetRequireColor(),
		AllowManualFire:        c.GetAllowManualFire(),
		GestureMode:            c.GetGestureMode(),
		FireAccelThreshold:     c.GetFireAccelThreshold(),
		MovementSpeedThreshold: c.GetMovementSpeedThreshold(),
		FireCooldown:           c.GetFireCooldown().Seconds(),
		LaunchSpeed:            c.GetLaunchSpeed(),
		TipOffset:              c.GetTipOffset(),
		Palette:                c.GetPalette(),
		Correction:             corr,
	}, nil
}

// SignalThreshold returns the fire threshold for the configured gesture
// mode, in the units of the gesture signal.
func (c Config) SignalThreshold() float64 {
	if c.GestureMode == config.GestureVelocity {
		return c.MovementSpeedThreshold
	}
	return c.FireAccelThreshold
}

func (c Config) paletteColor(slot int) imu.RGBA {
	if len(c.Palette) == 0 {
		return imu.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return c.Palette[slot%len(c.Palette)]
}
