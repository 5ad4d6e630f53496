package device

import (
	"encoding/json"
	"strings"
)

// Status is the outcome reported by the firmware for a system command
type Status string

const (
	StatusOK       Status = "OK"
	StatusOKReboot Status = "OK_REBOOT"
	StatusError    Status = "ERROR"
)

// DefaultRebootDelayMs is how long the firmware takes to come back after
// answering OK_REBOOT without an explicit timeout.
const DefaultRebootDelayMs = 3000

// Result is the device reply to a system command. Timeout is the number of
// milliseconds after which the panel should reload, -1 for none.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Timeout int    `json:"timeout"`
}

// ParseStatus accepts the spellings used by the firmware versions around
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "OK", "SUCCESS":
		return StatusOK
	case "OK_REBOOT":
		return StatusOKReboot
	default:
		return StatusError
	}
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var raw struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Timeout *int   `json:"timeout"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Status = ParseStatus(raw.Status)
	r.Message = raw.Message
	r.Timeout = -1
	if raw.Timeout != nil {
		r.Timeout = *raw.Timeout
	}
	return nil
}

// OK reports whether the command was accepted
func (r Result) OK() bool {
	return r.Status == StatusOK || r.Status == StatusOKReboot
}

// ReloadAfter returns the reload delay in milliseconds, or 0 for none
func (r Result) ReloadAfter() int {
	switch {
	case r.Timeout > 0:
		return r.Timeout
	case r.Status == StatusOKReboot:
		return DefaultRebootDelayMs
	default:
		return 0
	}
}
