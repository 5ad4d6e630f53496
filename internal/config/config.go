package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Log       LogConfig       `yaml:"log"`

	// FormsFile points to extra form definitions (optional)
	FormsFile string `yaml:"forms_file,omitempty"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local panel server configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	Host           string `yaml:"host"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	HistorySize    int    `yaml:"history_size"`
}

// DeviceConfig represents the connection to the NetPins device
type DeviceConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Transport selects how system commands are delivered: "http" or "mqtt"
	Transport string `yaml:"transport"`
}

// MQTTConfig represents the optional MQTT command transport
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	Hostname       string        `yaml:"hostname"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DiscoveryConfig represents the UDP heartbeat listener
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	TTL     time.Duration `yaml:"ttl"`
}

// LogConfig represents logging output
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "console" or "json"
	BufferSize int    `yaml:"buffer_size"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			MetricsEnabled: true,
			HistorySize:    50,
		},
		Device: DeviceConfig{
			URL:          "http://192.168.4.1",
			Timeout:      10 * time.Second,
			PollInterval: 30 * time.Second,
			Transport:    "http",
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://localhost:1883",
			ClientID:       "netpins-panel",
			TopicPrefix:    "",
			ConnectTimeout: 5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Listen:  ":5824",
			TTL:     time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			BufferSize: 500,
		},
	}
}

// SearchPaths are the locations tried by Load when no path is given
var SearchPaths = []string{
	"config.yaml",
	"configs/config.yaml",
	"/etc/netpins-panel/config.yaml",
}

// Load loads configuration from path, or from the first of SearchPaths
// that exists when path is empty. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	paths := SearchPaths
	if path != "" {
		paths = []string{path}
	}

	var data []byte
	var err error
	var loadedPath string

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", loadedPath, err)
	}

	cfg.ConfigPath = loadedPath
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from NETPINS_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NETPINS_DEVICE_URL"); v != "" {
		c.Device.URL = v
	}
	if v := os.Getenv("NETPINS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("NETPINS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Device.URL == "" {
		return errors.New("config: device.url is required")
	}
	switch c.Device.Transport {
	case "", "http", "mqtt":
	default:
		return fmt.Errorf("config: unknown device.transport %q", c.Device.Transport)
	}
	if c.Device.Transport == "mqtt" && c.MQTT.Broker == "" {
		return errors.New("config: mqtt.broker is required for the mqtt transport")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
