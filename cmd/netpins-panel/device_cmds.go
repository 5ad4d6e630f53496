package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/netpins/netpins-panel/internal/config"
	"github.com/netpins/netpins-panel/internal/device"
	"github.com/netpins/netpins-panel/internal/discovery"
	"github.com/netpins/netpins-panel/internal/forms"
	"github.com/netpins/netpins-panel/internal/settings"
)

var (
	discoverDuration time.Duration
	jsonOutput       bool
)

// sendCmd sends a system command
var sendCmd = &cobra.Command{
	Use:   "send <command> [key=value...]",
	Short: "Send a system command to the device",
	Long: `Send a system command to the device and print its result.

Values of commands that have a form are typed like a form submission
(numbers and checkboxes become JSON numbers and booleans). Other commands
send every value as a string.

Examples:
  netpins-panel send dmx-config universe=1 channel=10
  netpins-panel send reboot`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

// sysConfigCmd uploads a YAML system config
var sysConfigCmd = &cobra.Command{
	Use:   "sys-config <file.yaml>",
	Short: "Replace the device system config with a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSysConfig,
}

// infoCmd prints /sys-info
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

// confCmd prints /conf/{name} as YAML
var confCmd = &cobra.Command{
	Use:       "conf <sys|dmx>",
	Short:     "Print a device config as YAML",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{device.ConfSys, device.ConfDMX},
	RunE:      runConf,
}

// formsCmd lists the form definitions
var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "List the panel forms and their fields",
	Args:  cobra.NoArgs,
	RunE:  runForms,
}

// discoverCmd listens for heartbeats
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Listen for device heartbeats on the network",
	Args:  cobra.NoArgs,
	RunE:  runDiscover,
}

// initCmd writes a default config file
var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverDuration, "duration", 15*time.Second, "How long to listen")
	infoCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	discoverCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
}

func cliSetup() (*config.Config, *device.Client, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	if logLevel == "" {
		cfg.Log.Level = "warn"
	}
	log := newLogger(cfg, nil)
	return cfg, device.NewClient(cfg.Device.URL, cfg.Device.Timeout), log, nil
}

// parseAssignments turns key=value arguments into form values
func parseAssignments(args []string) (url.Values, error) {
	values := url.Values{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", arg)
		}
		values.Add(k, v)
	}
	return values, nil
}

// buildCommand types values with the command's form when there is one
func buildCommand(registry *forms.Registry, name string, values url.Values) forms.Command {
	if def, err := registry.Lookup(name); err == nil {
		return forms.Collect(def, values)
	}
	data := make(map[string]any, len(values))
	for k := range values {
		data[k] = values.Get(k)
	}
	return forms.Command{Command: name, Data: data}
}

func sendAndReport(ctx context.Context, cfg *config.Config, client *device.Client, log zerolog.Logger, cmd forms.Command) error {
	sender, closeSender, err := newSender(cfg, client, log)
	if err != nil {
		return err
	}
	defer closeSender()

	res, err := sender.Send(ctx, cmd)
	if err != nil {
		return fmt.Errorf("device unreachable: %w", err)
	}

	fmt.Printf("%s: %s\n", res.Status, res.Message)
	if ms := res.ReloadAfter(); ms > 0 {
		fmt.Printf("Device expected back in %s\n", time.Duration(ms)*time.Millisecond)
	}
	if !res.OK() {
		return errors.New("command rejected by device")
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, client, log, err := cliSetup()
	if err != nil {
		return err
	}
	registry, err := loadForms(cfg)
	if err != nil {
		return err
	}
	values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	return sendAndReport(cmd.Context(), cfg, client, log, buildCommand(registry, args[0], values))
}

func runSysConfig(cmd *cobra.Command, args []string) error {
	cfg, client, log, err := cliSetup()
	if err != nil {
		return err
	}
	text, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	command, err := settings.SysConfigCommand(string(text))
	if err != nil {
		return err
	}

	return sendAndReport(cmd.Context(), cfg, client, log, command)
}

func runInfo(cmd *cobra.Command, args []string) error {
	_, client, _, err := cliSetup()
	if err != nil {
		return err
	}
	info, err := client.SysInfo(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(info)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Hostname:\t%s\n", info.Hostname)
	fmt.Fprintf(w, "Firmware:\t%s\n", info.Firmware)
	fmt.Fprintf(w, "IP:\t%s\n", info.IP)
	fmt.Fprintf(w, "MAC:\t%s\n", info.MAC)
	fmt.Fprintf(w, "Uptime:\t%s\n", info.Uptime.Duration().Truncate(time.Second))
	return w.Flush()
}

func runConf(cmd *cobra.Command, args []string) error {
	_, client, _, err := cliSetup()
	if err != nil {
		return err
	}
	conf, err := client.Conf(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	text, err := settings.ToYAML(conf)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func runForms(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := loadForms(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMMAND\tSOURCE\tFIELDS")
	for _, def := range registry.All() {
		var fields []string
		for _, f := range def.Fields {
			fields = append(fields, f.Name+":"+f.Type)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Command, def.Source, strings.Join(fields, " "))
	}
	return w.Flush()
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, _, log, err := cliSetup()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Listening on %s for %s ...\n", cfg.Discovery.Listen, discoverDuration)
	devices, err := discovery.Scan(cmd.Context(), cfg.Discovery.Listen, discoverDuration, log)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(devices)
	}
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MAC\tIP\tFIRMWARE\tUPTIME")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.MAC, d.IP, d.Firmware, d.Uptime.Truncate(time.Second))
	}
	return w.Flush()
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
