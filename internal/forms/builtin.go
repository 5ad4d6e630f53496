package forms

// Commands understood by the NetPins firmware
const (
	CommandSysConfig      = "sys-config"
	CommandSysConfigMerge = "sys-config-merge"
	CommandDMXConfig      = "dmx-config"
	CommandFirmwareUpdate = "firmware-update"
	CommandSPIFFSUpdate   = "spiffs-update"
	CommandReboot         = "reboot"
	CommandSaveDMX        = "save-dmx"
	CommandResetDMX       = "reset-dmx"
)

// Builtin returns the forms shown on every panel
func Builtin() []Definition {
	return []Definition{
		{
			Command:     CommandDMXConfig,
			Title:       "DMX",
			SubmitLabel: "Save DMX settings",
			Source:      "dmx",
			Fields: []Field{
				{Name: "universe", Label: "Universe", Type: TypeNumber, Tooltip: "Art-Net universe the device listens on."},
				{Name: "channel", Label: "Channel", Type: TypeNumber, Tooltip: "First DMX channel, <b>1-512</b>."},
			},
		},
		{
			Command:     CommandSysConfigMerge,
			Title:       "System",
			SubmitLabel: "Save system settings",
			Source:      "sys",
			Fields: []Field{
				{Name: "hostname", Label: "Hostname", Type: TypeText},
				{Name: "hb_int", Label: "Heartbeat interval (ms)", Type: TypeNumber, Tooltip: "UDP heartbeat period, <code>0</code> disables it."},
				{Name: "udp_port", Label: "UDP port", Type: TypeNumber},
				{Name: "max_idle", Label: "Max idle (min)", Type: TypeNumber, Tooltip: "Minutes without commands before the device sleeps, <code>0</code> never sleeps."},
			},
		},
		{
			Command:     CommandFirmwareUpdate,
			Title:       "Firmware update",
			SubmitLabel: "Update firmware",
			Fields: []Field{
				{Name: "url", Label: "Firmware URL", Type: TypeURL, Tooltip: "HTTP URL of the firmware <code>.bin</code>."},
			},
		},
		{
			Command:     CommandSPIFFSUpdate,
			Title:       "Filesystem update",
			SubmitLabel: "Update filesystem",
			Fields: []Field{
				{Name: "url", Label: "Filesystem image URL", Type: TypeURL},
			},
		},
		{
			Command:     CommandSaveDMX,
			Title:       "Store DMX values",
			SubmitLabel: "Store current DMX values",
		},
		{
			Command:     CommandResetDMX,
			Title:       "Reset DMX values",
			SubmitLabel: "Reset stored DMX values",
		},
		{
			Command:     CommandReboot,
			Title:       "Reboot",
			SubmitLabel: "Reboot",
		},
	}
}

// DefaultRegistry returns a registry with the built-in forms
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic("forms: invalid builtin definitions: " + err.Error())
	}
	return r
}
