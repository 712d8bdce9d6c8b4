package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/fusion"
	"github.com/banshee-data/spraypaint/internal/imu"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/spraypaint.defaults.json"

// Limits on the seat row.
const (
	MinPlayers = 1
	MaxPlayers = 8
)

// Gesture modes.
const (
	GestureAcceleration = "acceleration"
	GestureVelocity     = "velocity"
)

// Config is the daemon configuration. Every field is optional; the Get*
// methods supply defaults for anything left unset.
type Config struct {
	// Ingestion
	ListenPort         *int    `json:"listen_port,omitempty"`
	ReceiveBufferBytes *int    `json:"receive_buffer_bytes,omitempty"`
	IdleTimeout        *string `json:"idle_timeout,omitempty"`      // duration string like "15s"; <= 0 disables
	RateLogInterval    *string `json:"rate_log_interval,omitempty"` // duration string like "2s"

	// Seats
	MaxPlayers  *int        `json:"max_players,omitempty"`
	LeftAnchor  *[3]float64 `json:"left_anchor,omitempty"`
	RightAnchor *[3]float64 `json:"right_anchor,omitempty"`

	// Gestures
	FireAccelThreshold     *float64 `json:"fire_accel_threshold,omitempty"`
	FireCooldown           *string  `json:"fire_cooldown,omitempty"` // duration string like "200ms"
	GestureMode            *string  `json:"gesture_mode,omitempty"`
	MovementSpeedThreshold *float64 `json:"movement_speed_threshold,omitempty"`
	AllowManualFire        *bool    `json:"allow_manual_fire,omitempty"`

	// Rigs and spawns
	RequireColor   *bool        `json:"require_color,omitempty"`
	LaunchSpeed    *float64     `json:"launch_speed,omitempty"`
	TipOffset      *[3]float64  `json:"tip_offset,omitempty"`
	Palette        []string     `json:"palette,omitempty"` // "#rrggbb" or "#rrggbbaa"
	Orientation    *Orientation `json:"orientation,omitempty"`
	TickRateHz     *float64     `json:"tick_rate_hz,omitempty"`
	SpawnQueueSize *int         `json:"spawn_queue_size,omitempty"`
}

// Orientation selects the device-to-world correction. AxisSigns and
// EulerOffsetDeg, when set, override the preset's values.
type Orientation struct {
	Preset         *string     `json:"preset,omitempty"`
	AxisSigns      *[3]float64 `json:"axis_signs,omitempty"`
	EulerOffsetDeg *[3]float64 `json:"euler_offset_deg,omitempty"`
}

// DefaultPalette colours rigs by slot until a device reports its own.
var DefaultPalette = []imu.RGBA{
	{R: 0xff, G: 0x3b, B: 0x30, A: 0xff},
	{R: 0x34, G: 0xc7, B: 0x59, A: 0xff},
	{R: 0x00, G: 0x7a, B: 0xff, A: 0xff},
	{R: 0xff, G: 0xcc, B: 0x00, A: 0xff},
	{R: 0xaf, G: 0x52, B: 0xde, A: 0xff},
	{R: 0xff, G: 0x95, B: 0x00, A: 0xff},
	{R: 0x5a, G: 0xc8, B: 0xfa, A: 0xff},
	{R: 0xff, G: 0x2d, B: 0x55, A: 0xff},
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the file keep their defaults, so partial configs
// are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.ListenPort != nil && (*c.ListenPort < 0 || *c.ListenPort > 65535) {
		return fmt.Errorf("listen_port must be between 0 and 65535, got %d", *c.ListenPort)
	}

	for name, v := range map[string]*string{
		"idle_timeout":      c.IdleTimeout,
		"rate_log_interval": c.RateLogInterval,
		"fire_cooldown":     c.FireCooldown,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	if c.RateLogInterval != nil && *c.RateLogInterval != "" {
		if d, _ := time.ParseDuration(*c.RateLogInterval); d <= 0 {
			return fmt.Errorf("rate_log_interval must be positive, got %s", *c.RateLogInterval)
		}
	}
	if c.FireCooldown != nil && *c.FireCooldown != "" {
		if d, _ := time.ParseDuration(*c.FireCooldown); d < 0 {
			return fmt.Errorf("fire_cooldown must be non-negative, got %s", *c.FireCooldown)
		}
	}

	if c.MaxPlayers != nil && (*c.MaxPlayers < MinPlayers || *c.MaxPlayers > MaxPlayers) {
		return fmt.Errorf("max_players must be between %d and %d, got %d", MinPlayers, MaxPlayers, *c.MaxPlayers)
	}

	if c.FireAccelThreshold != nil && *c.FireAccelThreshold < 0 {
		return fmt.Errorf("fire_accel_threshold must be non-negative, got %f", *c.FireAccelThreshold)
	}
	if c.MovementSpeedThreshold != nil && *c.MovementSpeedThreshold < 0 {
		return fmt.Errorf("movement_speed_threshold must be non-negative, got %f", *c.MovementSpeedThreshold)
	}
	if c.GestureMode != nil {
		switch *c.GestureMode {
		case GestureAcceleration, GestureVelocity:
		default:
			return fmt.Errorf("gesture_mode must be %q or %q, got %q", GestureAcceleration, GestureVelocity, *c.GestureMode)
		}
	}

	if c.LaunchSpeed != nil && *c.LaunchSpeed < 0 {
		return fmt.Errorf("launch_speed must be non-negative, got %f", *c.LaunchSpeed)
	}
	if c.TickRateHz != nil && (*c.TickRateHz <= 0 || *c.TickRateHz > 1000) {
		return fmt.Errorf("tick_rate_hz must be in (0, 1000], got %f", *c.TickRateHz)
	}
	if c.SpawnQueueSize != nil && *c.SpawnQueueSize <= 0 {
		return fmt.Errorf("spawn_queue_size must be positive, got %d", *c.SpawnQueueSize)
	}
	if c.ReceiveBufferBytes != nil && *c.ReceiveBufferBytes < 0 {
		return fmt.Errorf("receive_buffer_bytes must be non-negative, got %d", *c.ReceiveBufferBytes)
	}

	for i, s := range c.Palette {
		if _, err := ParseColor(s); err != nil {
			return fmt.Errorf("palette[%d]: %w", i, err)
		}
	}

	if _, err := c.GetCorrection(); err != nil {
		return err
	}

	return nil
}

// ParseColor parses "#rrggbb" or "#rrggbbaa". Alpha defaults to 0xff.
func ParseColor(s string) (imu.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return imu.RGBA{}, fmt.Errorf("colour %q must be #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return imu.RGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return imu.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

func vecOr(v *[3]float64, def r3.Vec) r3.Vec {
	if v == nil {
		return def
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// GetListenPort returns the listen_port value or the default.
func (c *Config) GetListenPort() int {
	if c.ListenPort == nil {
		return 26761
	}
	return *c.ListenPort
}

// GetReceiveBufferBytes returns the receive_buffer_bytes value or the default.
func (c *Config) GetReceiveBufferBytes() int {
	if c.ReceiveBufferBytes == nil {
		return 1 << 20
	}
	return *c.ReceiveBufferBytes
}

// GetIdleTimeout returns how long a silent device survives. Zero or
// negative disables despawn.
func (c *Config) GetIdleTimeout() time.Duration {
	return parseDurationOr(c.IdleTimeout, 15*time.Second)
}

// GetRateLogInterval returns the rate_log_interval value or the default.
func (c *Config) GetRateLogInterval() time.Duration {
	return parseDurationOr(c.RateLogInterval, 2*time.Second)
}

// GetMaxPlayers returns the max_players value or the default.
func (c *Config) GetMaxPlayers() int {
	if c.MaxPlayers == nil {
		return 4
	}
	return *c.MaxPlayers
}

// GetLeftAnchor returns the left_anchor value or the default.
func (c *Config) GetLeftAnchor() r3.Vec {
	return vecOr(c.LeftAnchor, r3.Vec{X: -2, Y: 1, Z: 0})
}

// GetRightAnchor returns the right_anchor value or the default.
func (c *Config) GetRightAnchor() r3.Vec {
	return vecOr(c.RightAnchor, r3.Vec{X: 2, Y: 1, Z: 0})
}

// GetFireAccelThreshold returns the fire_accel_threshold value or the default.
func (c *Config) GetFireAccelThreshold() float64 {
	if c.FireAccelThreshold == nil {
		return 2.0
	}
	return *c.FireAccelThreshold
}

// GetFireCooldown returns the fire_cooldown value or the default.
func (c *Config) GetFireCooldown() time.Duration {
	return parseDurationOr(c.FireCooldown, 200*time.Millisecond)
}

// GetGestureMode returns the gesture_mode value or the default.
func (c *Config) GetGestureMode() string {
	if c.GestureMode == nil {
		return GestureAcceleration
	}
	return *c.GestureMode
}

// GetMovementSpeedThreshold returns the movement_speed_threshold value or the default.
func (c *Config) GetMovementSpeedThreshold() float64 {
	if c.MovementSpeedThreshold == nil {
		return 0.5
	}
	return *c.MovementSpeedThreshold
}

// GetAllowManualFire returns the allow_manual_fire value or the default.
func (c *Config) GetAllowManualFire() bool {
	if c.AllowManualFire == nil {
		return true
	}
	return *c.AllowManualFire
}

// GetRequireColor returns the require_color value or the default.
func (c *Config) GetRequireColor() bool {
	if c.RequireColor == nil {
		return false
	}
	return *c.RequireColor
}

// GetLaunchSpeed returns the launch_speed value or the default.
func (c *Config) GetLaunchSpeed() float64 {
	if c.LaunchSpeed == nil {
		return 6.0
	}
	return *c.LaunchSpeed
}

// GetTipOffset returns the tip_offset value or the default.
func (c *Config) GetTipOffset() r3.Vec {
	return vecOr(c.TipOffset, r3.Vec{Z: 0.1})
}

// GetPalette returns the configured palette, or DefaultPalette when unset.
// Invalid entries are skipped; Validate reports them.
func (c *Config) GetPalette() []imu.RGBA {
	if len(c.Palette) == 0 {
		return append([]imu.RGBA(nil), DefaultPalette...)
	}
	out := make([]imu.RGBA, 0, len(c.Palette))
	for _, s := range c.Palette {
		if col, err := ParseColor(s); err == nil {
			out = append(out, col)
		}
	}
	if len(out) == 0 {
		return append([]imu.RGBA(nil), DefaultPalette...)
	}
	return out
}

// GetCorrection builds the orientation correction from the preset and any
// overrides. The default preset is "rig".
func (c *Config) GetCorrection() (fusion.Correction, error) {
	preset := fusion.PresetRig
	if c.Orientation != nil && c.Orientation.Preset != nil {
		preset = *c.Orientation.Preset
	}
	base, err := fusion.PresetCorrection(preset)
	if err != nil {
		return fusion.Correction{}, fmt.Errorf("orientation: %w", err)
	}
	if c.Orientation == nil {
		return base, nil
	}
	if c.Orientation.AxisSigns != nil {
		base.Signs = fusion.NewCorrection(*c.Orientation.AxisSigns, [3]float64{}).Signs
	}
	if c.Orientation.EulerOffsetDeg != nil {
		e := *c.Orientation.EulerOffsetDeg
		base.Offset = fusion.Euler(e[0], e[1], e[2])
	}
	return base, nil
}

// GetTickRateHz returns the tick_rate_hz value or the default.
func (c *Config) GetTickRateHz() float64 {
	if c.TickRateHz == nil {
		return 60
	}
	return *c.TickRateHz
}

// GetTickInterval returns the period between ticks.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.GetTickRateHz())
}

// GetSpawnQueueSize returns the spawn_queue_size value or the default.
func (c *Config) GetSpawnQueueSize() int {
	if c.SpawnQueueSize == nil {
		return 256
	}
	return *c.SpawnQueueSize
}
