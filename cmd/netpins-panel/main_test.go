package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpins/netpins-panel/internal/config"
	"github.com/netpins/netpins-panel/internal/forms"
)

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"universe=1", "url=http://x/?a=b"})
	require.NoError(t, err)
	assert.Equal(t, "1", values.Get("universe"))
	assert.Equal(t, "http://x/?a=b", values.Get("url"))

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=1"})
	assert.Error(t, err)
}

func TestBuildCommand(t *testing.T) {
	registry := forms.DefaultRegistry()
	values, err := parseAssignments([]string{"universe=3", "channel=12"})
	require.NoError(t, err)

	cmd := buildCommand(registry, "dmx-config", values)
	body, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"dmx-config","data":{"universe":3,"channel":12}}`, string(body))

	cmd = buildCommand(registry, "custom", values)
	body, err = json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"custom","data":{"universe":"3","channel":"12"}}`, string(body))
}

func TestLoadConfigFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Default().Save(path))

	configPath, deviceURL, logLevel = path, "http://10.1.1.1", "debug"
	t.Cleanup(func() { configPath, deviceURL, logLevel = "", "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://10.1.1.1", cfg.Device.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, path, cfg.ConfigPath)

	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = loadConfig()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
