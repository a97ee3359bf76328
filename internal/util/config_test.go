package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return dir, path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 300, cfg.Settings().HistoryCap())
}

func TestLoadConfig_File(t *testing.T) {
	dataDir := t.TempDir()
	_, path := writeConfig(t, `
data_dir: `+dataDir+`
targets: "10.0.0.1-3, example.com"
interval: 5s
warn_threshold_ms: 80
retention: 2m
colors:
  healthy: "34"
probe:
  method: tcp
  tcp_ports: [22, 443]
trace:
  max_hops: 12
web:
  port: 9090
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "10.0.0.1-3, example.com", cfg.Targets)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 80, cfg.WarnThresholdMs)
	assert.Equal(t, 2*time.Minute, cfg.Retention)
	assert.Equal(t, "34", cfg.Colors.Healthy)
	assert.Equal(t, "196", cfg.Colors.Failed)
	assert.Equal(t, "tcp", cfg.Probe.Method)
	assert.Equal(t, []int{22, 443}, cfg.Probe.TCPPorts)
	assert.Equal(t, 12, cfg.Trace.MaxHops)
	assert.Equal(t, 2*time.Second, cfg.Trace.Wait)
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, 24, cfg.Settings().HistoryCap())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dataDir := t.TempDir()
	_, path := writeConfig(t, "data_dir: "+dataDir+"\n")
	t.Setenv("LINKPULSE_PROBE_METHOD", "sim")
	t.Setenv("LINKPULSE_WARN_THRESHOLD_MS", "42")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sim", cfg.Probe.Method)
	assert.Equal(t, 42, cfg.WarnThresholdMs)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dataDir := t.TempDir()
	tests := map[string]string{
		"bad method":    "probe:\n  method: smoke-signal\n",
		"zero interval": "interval: 0s\n",
		"odd retention": "retention: 90s\n",
		"tiny interval": "interval: 2ns\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, path := writeConfig(t, "data_dir: "+dataDir+"\n"+body)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_BareNumberDurations(t *testing.T) {
	dataDir := t.TempDir()
	_, path := writeConfig(t, "data_dir: "+dataDir+"\ninterval: 2\nprobe:\n  timeout: 1.5\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Probe.Timeout)
	assert.Equal(t, 300, cfg.Settings().HistoryCap())
	assert.Equal(t, 2*time.Second, cfg.Trace.Wait)
}

func TestLoadConfig_BareNumberIntervalFromEnv(t *testing.T) {
	dataDir := t.TempDir()
	_, path := writeConfig(t, "data_dir: "+dataDir+"\n")
	t.Setenv("LINKPULSE_INTERVAL", "3")
	t.Setenv("LINKPULSE_TRACE_WAIT", "500ms")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.Trace.Wait)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFileExists(t *testing.T) {
	dir, path := writeConfig(t, "x: 1\n")
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}
