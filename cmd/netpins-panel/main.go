// Command netpins-panel serves the NetPins configuration panel and offers a
// few commands for talking to a device from the shell.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/netpins/netpins-panel/internal/config"
	"github.com/netpins/netpins-panel/internal/device"
	"github.com/netpins/netpins-panel/internal/forms"
	"github.com/netpins/netpins-panel/internal/logging"
)

var (
	configPath string
	deviceURL  string
	logLevel   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "netpins-panel",
	Short: "Configuration panel for NetPins DMX controllers",
	Long: `netpins-panel serves the NetPins configuration panel: forms for the
device's DMX and system settings, the raw system config as YAML, firmware
updates and reboots. Commands are posted to the device's /system endpoint
(or published over MQTT) and the panel refreshes the device state after
each one.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search config.yaml, configs/, /etc/netpins-panel/)")
	rootCmd.PersistentFlags().StringVarP(&deviceURL, "device", "d", "", "Device base URL, overrides device.url")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides log.level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sysConfigCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(confCmd)
	rootCmd.AddCommand(formsCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file. Without --config a missing file falls
// back to the defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
		cfg.ConfigPath = "config.yaml"
		cfg.ApplyEnv()
	}

	if deviceURL != "" {
		cfg.Device.URL = deviceURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, buf *logging.LogBuffer) zerolog.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format, buf)
}

// loadForms returns the built-in forms plus those from forms_file
func loadForms(cfg *config.Config) (*forms.Registry, error) {
	registry := forms.DefaultRegistry()
	if cfg.FormsFile != "" {
		if err := registry.LoadFile(cfg.FormsFile); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// newSender picks the command transport. The returned func releases it.
func newSender(cfg *config.Config, client *device.Client, log zerolog.Logger) (device.Sender, func(), error) {
	if cfg.Device.Transport != "mqtt" {
		return client, func() {}, nil
	}
	mq, err := device.DialMQTT(cfg.MQTT, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("topic", mq.Topic()).Msg("Sending commands over MQTT")
	return mq, mq.Close, nil
}
