package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr())

	assert.Equal(t, "/usr/share/shell/apps", cfg.Catalog.Dir)
	assert.Equal(t, "/run/shell/shell.pid", cfg.Runtime.PIDPath())
	assert.Equal(t, 4, cfg.Runtime.OwnerMaxDepth)

	assert.Equal(t, 800, cfg.Display.Width)
	assert.Equal(t, 480, cfg.Display.Height)

	assert.Equal(t, 300*time.Millisecond, cfg.Animation.ShowDuration)
	assert.Equal(t, 4*time.Second, cfg.Pressure.NormalInterval)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Empty(t, cfg.Notify.WebhookURL)

	require.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":             "9000",
		"APPS_DIR":         "/opt/apps",
		"RUNTIME_DIR":      "/tmp/shell",
		"PID_FILE":         "/var/run/custom.pid",
		"SCREEN_WIDTH":     "1280",
		"SCREEN_HEIGHT":    "720",
		"SHOW_DURATION":    "1s",
		"ANIMATIONS":       "false",
		"PRESSURE_LOW":     "0.7",
		"LOG_LEVEL":        "debug",
		"LOG_DEV":          "true",
		"RATE_LIMIT_BURST": "1000",
		"WEBHOOK_URL":      "http://hooks.local/shell",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "/opt/apps", cfg.Catalog.Dir)
	assert.Equal(t, "/var/run/custom.pid", cfg.Runtime.PIDPath())
	assert.Equal(t, 1280, cfg.Display.Width)
	assert.Equal(t, 720, cfg.Display.Height)
	assert.Equal(t, time.Second, cfg.Animation.ShowDuration)
	assert.False(t, cfg.Animation.Enabled)
	assert.Equal(t, 0.7, cfg.Pressure.LowRatio)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.Equal(t, "http://hooks.local/shell", cfg.Notify.WebhookURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"SCREEN_WIDTH": "wide"}},
		{"bars taller than screen", map[string]string{"STATUSBAR_HEIGHT": "300", "OSK_HEIGHT": "300"}},
		{"low above critical", map[string]string{"PRESSURE_LOW": "0.99"}},
		{"empty queue", map[string]string{"EVENT_QUEUE_SIZE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
			assert.NotNil(t, LoadOrDefault())
		})
	}
}

func TestParseOptions(t *testing.T) {
	base := Default().Animation.Options()
	assert.Equal(t, 300, base.Showing.DurationMS)
	assert.True(t, base.Hiding.Zoom)

	doc := []byte(`
animations: true
showing:
  duration-ms: 150
  zoom: false
  opacity: true
slide-ms: 250
`)
	opts, err := ParseOptions(doc, base)
	require.NoError(t, err)
	assert.Equal(t, 150, opts.Showing.DurationMS)
	assert.False(t, opts.Showing.Zoom)
	assert.Equal(t, 250, opts.SlideMS)
	assert.Equal(t, base.Hiding, opts.Hiding, "missing keys keep their base value")

	_, err = ParseOptions([]byte("slide-ms: -1\n"), base)
	assert.Error(t, err)

	_, err = ParseOptions([]byte("showing: [1, 2\n"), base)
	assert.Error(t, err)
}

func TestLoadOptionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	want := Default().Animation.Options()
	want.Animations = false
	want.Hiding.DurationMS = 42

	data, err := MarshalOptions(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := LoadOptions(path, Default().Animation.Options())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"), want)
	assert.Error(t, err)
}
