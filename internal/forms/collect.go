package forms

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Command is the JSON payload posted to the device's /system endpoint
type Command struct {
	Command string         `json:"command"`
	Data    map[string]any `json:"data"`
}

// Collect serializes submitted form values into def's command. Every
// declared field is present in Data; keys that def does not declare are
// ignored.
func Collect(def Definition, values url.Values) Command {
	cmd := Command{
		Command: def.Command,
		Data:    make(map[string]any, len(def.Fields)),
	}

	for _, f := range def.Fields {
		raw := values.Get(f.Name)
		switch f.inputType() {
		case TypeCheckbox:
			_, present := values[f.Name]
			cmd.Data[f.Name] = present && raw != "false" && raw != "off"
		case TypeNumber:
			cmd.Data[f.Name] = numberOrString(raw)
		default:
			cmd.Data[f.Name] = raw
		}
	}
	return cmd
}

// numberOrString keeps the exact digits of numeric input so large values
// are not rounded through float64.
func numberOrString(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}
	var n json.Number
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return raw
	}
	return n
}
