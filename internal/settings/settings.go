// Package settings converts the device's system configuration between the
// JSON the firmware speaks and the YAML shown in the panel's editor.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/netpins/netpins-panel/internal/forms"
)

// ErrNotMapping is returned when the YAML document is not a key/value map
var ErrNotMapping = errors.New("settings must be a YAML mapping")

// ParseError wraps a YAML error with the message shown to the user
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "Error parsing YAML: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ToYAML dumps a /conf/sys document for the settings editor
func ToYAML(conf map[string]any) (string, error) {
	if len(conf) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(conf); err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return buf.String(), nil
}

// ParseYAML parses the settings editor content into a JSON-encodable map
func ParseYAML(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Err: errors.New("empty document")}
	}

	var doc any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	m, ok := normalize(doc).(map[string]any)
	if !ok {
		return nil, &ParseError{Err: ErrNotMapping}
	}
	return m, nil
}

// SysConfigCommand builds the sys-config command for the editor content
func SysConfigCommand(text string) (forms.Command, error) {
	data, err := ParseYAML(text)
	if err != nil {
		return forms.Command{}, err
	}
	return forms.Command{Command: forms.CommandSysConfig, Data: data}, nil
}

// normalize converts maps with non-string keys, which encoding/json
// cannot marshal, into map[string]any recursively.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}
