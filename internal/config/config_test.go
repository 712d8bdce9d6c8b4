package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/fusion"
	"github.com/banshee-data/spraypaint/internal/imu"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 26761, cfg.GetListenPort())
	assert.Equal(t, 1<<20, cfg.GetReceiveBufferBytes())
	assert.Equal(t, 15*time.Second, cfg.GetIdleTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetRateLogInterval())
	assert.Equal(t, 4, cfg.GetMaxPlayers())
	assert.Equal(t, r3.Vec{X: -2, Y: 1}, cfg.GetLeftAnchor())
	assert.Equal(t, r3.Vec{X: 2, Y: 1}, cfg.GetRightAnchor())
	assert.Equal(t, 2.0, cfg.GetFireAccelThreshold())
	assert.Equal(t, 200*time.Millisecond, cfg.GetFireCooldown())
	assert.Equal(t, GestureAcceleration, cfg.GetGestureMode())
	assert.Equal(t, 0.5, cfg.GetMovementSpeedThreshold())
	assert.True(t, cfg.GetAllowManualFire())
	assert.False(t, cfg.GetRequireColor())
	assert.Equal(t, 6.0, cfg.GetLaunchSpeed())
	assert.Equal(t, r3.Vec{Z: 0.1}, cfg.GetTipOffset())
	assert.Equal(t, DefaultPalette, cfg.GetPalette())
	assert.Equal(t, 60.0, cfg.GetTickRateHz())
	assert.Equal(t, 256, cfg.GetSpawnQueueSize())

	corr, err := cfg.GetCorrection()
	require.NoError(t, err)
	rig, _ := fusion.PresetCorrection(fusion.PresetRig)
	assert.Equal(t, rig, corr)
}

func TestLoadDefaultsFile(t *testing.T) {
	cfg, err := LoadConfig("../../" + DefaultConfigPath)
	require.NoError(t, err)

	empty := Empty()
	assert.Equal(t, empty.GetListenPort(), cfg.GetListenPort())
	assert.Equal(t, empty.GetIdleTimeout(), cfg.GetIdleTimeout())
	assert.Equal(t, empty.GetMaxPlayers(), cfg.GetMaxPlayers())
	assert.Equal(t, empty.GetPalette(), cfg.GetPalette())
	assert.Equal(t, empty.GetTipOffset(), cfg.GetTipOffset())
}

func TestLoadConfig_PartialOverrides(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "listen_port": 9000,
  "idle_timeout": "0s",
  "max_players": 2,
  "require_color": true,
  "gesture_mode": "velocity",
  "palette": ["#102030", "#40506070"],
  "orientation": {"preset": "xperia", "euler_offset_deg": [0, 0, 90]}
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.GetListenPort())
	assert.Equal(t, time.Duration(0), cfg.GetIdleTimeout())
	assert.Equal(t, 2, cfg.GetMaxPlayers())
	assert.True(t, cfg.GetRequireColor())
	assert.Equal(t, GestureVelocity, cfg.GetGestureMode())
	assert.Equal(t, []imu.RGBA{{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, {R: 0x40, G: 0x50, B: 0x60, A: 0x70}}, cfg.GetPalette())
	assert.Equal(t, 2.0, cfg.GetFireAccelThreshold(), "unset fields keep defaults")

	corr, err := cfg.GetCorrection()
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 1, 1}, corr.Signs)
	assert.Equal(t, fusion.Euler(0, 0, 90), corr.Offset)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "cfg.json", `{"listen_port":`, "parse config JSON"},
		{"too many players", "cfg.json", `{"max_players": 9}`, "max_players"},
		{"zero players", "cfg.json", `{"max_players": 0}`, "max_players"},
		{"bad duration", "cfg.json", `{"fire_cooldown": "soon"}`, "fire_cooldown"},
		{"zero rate interval", "cfg.json", `{"rate_log_interval": "0s"}`, "rate_log_interval"},
		{"bad gesture mode", "cfg.json", `{"gesture_mode": "shake"}`, "gesture_mode"},
		{"bad palette", "cfg.json", `{"palette": ["red"]}`, "palette[0]"},
		{"bad preset", "cfg.json", `{"orientation": {"preset": "pixel"}}`, "orientation"},
		{"bad port", "cfg.json", `{"listen_port": 70000}`, "listen_port"},
		{"negative threshold", "cfg.json", `{"fire_accel_threshold": -1}`, "fire_accel_threshold"},
		{"bad tick rate", "cfg.json", `{"tick_rate_hz": 0}`, "tick_rate_hz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_TooLarge(t *testing.T) {
	body := `{"palette": [` + strings.Repeat(`"#000000",`, 120000) + `"#000000"]}`
	_, err := LoadConfig(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, imu.RGBA{R: 0xff, G: 0x80, A: 0xff}, c)

	c, err = ParseColor("00000080")
	require.NoError(t, err)
	assert.Equal(t, imu.RGBA{A: 0x80}, c)

	_, err = ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#zzzzzz")
	assert.Error(t, err)
}

func TestGetCorrection_AxisSignsOverride(t *testing.T) {
	signs := [3]float64{1, -1, 1}
	cfg := &Config{Orientation: &Orientation{AxisSigns: &signs}}
	corr, err := cfg.GetCorrection()
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, -1, 1}, corr.Signs)
	assert.Equal(t, fusion.Euler(90, 0, 0), corr.Offset, "rig preset offset kept")
}

func TestGetTickInterval(t *testing.T) {
	hz := 50.0
	cfg := &Config{TickRateHz: &hz}
	assert.Equal(t, 20*time.Millisecond, cfg.GetTickInterval())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvListenPort: "31000"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Empty()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, 31000, cfg.GetListenPort())

	env[EnvListenPort] = "nope"
	assert.Error(t, cfg.ApplyEnv(lookup))

	env[EnvListenPort] = "99999"
	assert.Error(t, Empty().ApplyEnv(lookup))
}
