package forms

import (
	"encoding/json"
	"fmt"
	"strconv"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

// Action is the URL a form for command posts to
func Action(command string) string {
	return "/forms/" + command
}

// Render builds the form for def. Inputs whose name is present in data get
// that value; others are left empty.
func Render(def Definition, data map[string]any) g.Node {
	nodes := []g.Node{
		h.ID("form-" + def.Command),
		h.Class("command-form"),
		h.Method("post"),
		h.Action(Action(def.Command)),
		g.Attr("data-command", def.Command),
	}
	for _, f := range def.Fields {
		nodes = append(nodes, renderField(def.Command, f, data))
	}
	nodes = append(nodes, h.Input(h.Type("submit"), h.Value(def.SubmitLabel)))

	return g.El("form", nodes...)
}

// InputID is the id of a field's input, unique across all forms on a page
func InputID(command, field string) string {
	return command + "-" + field
}

func renderField(command string, f Field, data map[string]any) g.Node {
	id := InputID(command, f.Name)

	var label g.Node
	if f.Label != "" {
		label = g.El("label",
			g.Attr("for", id),
			g.Text(f.Label),
			g.If(f.Tooltip != "", h.Span(
				h.Class("tooltip"),
				g.Text("?"),
				h.Span(h.Class("tooltiptext"), g.Raw(f.Tooltip)),
			)),
		)
	}

	attrs := []g.Node{h.Type(f.inputType()), h.Name(f.Name), h.ID(id)}
	if v, ok := data[f.Name]; ok {
		if f.inputType() == TypeCheckbox {
			if truthy(v) {
				attrs = append(attrs, g.Attr("checked"))
			}
		} else {
			attrs = append(attrs, h.Value(FormatValue(v)))
		}
	}

	return h.Div(
		h.Class("form-group"),
		label,
		h.Input(attrs...),
	)
}

// FormatValue renders a decoded JSON value as an input value
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	default:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprint(val)
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b || val == "on"
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	default:
		return false
	}
}
