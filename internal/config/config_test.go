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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
device:
  url: http://netpins.local
  poll_interval: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "http://netpins.local", cfg.Device.URL)
	assert.Equal(t, 5*time.Second, cfg.Device.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Device.Timeout)
	assert.Equal(t, "http", cfg.Device.Transport)
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	path := writeConfig(t, "device:\n  transport: carrier-pigeon\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NETPINS_DEVICE_URL", "http://10.0.0.7")
	t.Setenv("NETPINS_PORT", "8181")
	t.Setenv("NETPINS_LOG_LEVEL", "debug")

	path := writeConfig(t, "device:\n  url: http://ignored\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.7", cfg.Device.URL)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Device.URL = "http://netpins-hall"
	cfg.MQTT.Hostname = "hall"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://netpins-hall", loaded.Device.URL)
	assert.Equal(t, "hall", loaded.MQTT.Hostname)
	assert.Equal(t, cfg.Discovery.TTL, loaded.Discovery.TTL)
}

func TestValidateMQTTNeedsBroker(t *testing.T) {
	cfg := Default()
	cfg.Device.Transport = "mqtt"
	cfg.MQTT.Broker = ""
	assert.Error(t, cfg.Validate())
}
