// Package forms holds the declarative form definitions of the panel, renders
// them to HTML and turns submitted values into system commands.
package forms

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownCommand is returned when no form is defined for a command
var ErrUnknownCommand = errors.New("unknown command")

// Input types understood by the renderer and by Collect
const (
	TypeText     = "text"
	TypeNumber   = "number"
	TypeURL      = "url"
	TypePassword = "password"
	TypeCheckbox = "checkbox"
	TypeHidden   = "hidden"
)

// Field describes one input of a form
type Field struct {
	Name    string `json:"name" yaml:"name"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Type    string `json:"type" yaml:"type"`
	Tooltip string `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
}

// Definition describes a form that sends one system command
type Definition struct {
	Command     string  `json:"command" yaml:"command"`
	Title       string  `json:"title,omitempty" yaml:"title,omitempty"`
	SubmitLabel string  `json:"submitLabel" yaml:"submit_label"`
	Source      string  `json:"source,omitempty" yaml:"source,omitempty"` // "dmx", "sys" or empty
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Validate checks that a definition can be rendered and submitted
func (d Definition) Validate() error {
	if d.Command == "" {
		return errors.New("form definition without command")
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("form %s: field without name", d.Command)
		}
		if seen[f.Name] {
			return fmt.Errorf("form %s: duplicate field %q", d.Command, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func (f Field) inputType() string {
	if f.Type == "" {
		return TypeText
	}
	return f.Type
}

// Registry is an ordered set of form definitions keyed by command
type Registry struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]Definition
}

// NewRegistry creates a registry holding defs in the given order
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition)}
	for _, d := range defs {
		if err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add inserts a definition, replacing any existing one for the same command
// while keeping its position.
func (r *Registry) Add(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.SubmitLabel == "" {
		d.SubmitLabel = "Submit"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Command]; !exists {
		r.order = append(r.order, d.Command)
	}
	r.defs[d.Command] = d
	return nil
}

// Lookup returns the definition for command
func (r *Registry) Lookup(command string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[command]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return d, nil
}

// All returns the definitions in registration order
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Definition, 0, len(r.order))
	for _, c := range r.order {
		result = append(result, r.defs[c])
	}
	return result
}

type formsFile struct {
	Forms []Definition `yaml:"forms"`
}

// LoadFile adds the definitions listed under "forms:" in a YAML file
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading forms file: %w", err)
	}

	var ff formsFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("parsing forms file %s: %w", path, err)
	}

	for _, d := range ff.Forms {
		if err := r.Add(d); err != nil {
			return fmt.Errorf("forms file %s: %w", path, err)
		}
	}
	return nil
}
