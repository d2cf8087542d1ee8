package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pacer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
frame_cap: 30
idle_poll: 250ms
log_format: json
demo:
  frames: 10
  output: last.png
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.FrameCap)
	assert.Equal(t, 250*time.Millisecond, cfg.IdlePoll)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Demo.Frames)
	assert.Equal(t, "last.png", cfg.Demo.Output)
	assert.Equal(t, 320, cfg.Demo.Width)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "frame_cap: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "demo:\n  width: 0\n"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	path := writeConfig(t, string(data))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
