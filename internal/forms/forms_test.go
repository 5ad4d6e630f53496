package forms

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, def Definition, data map[string]any) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, Render(def, data).Render(&sb))
	return sb.String()
}

func TestRenderFieldsLabelsAndTooltip(t *testing.T) {
	def := Definition{
		Command:     "dmx-config",
		SubmitLabel: "Save",
		Fields: []Field{
			{Name: "universe", Label: "Universe", Type: TypeNumber, Tooltip: "Art-Net <b>universe</b>"},
			{Name: "channel", Label: "Channel", Type: TypeNumber},
		},
	}

	out := render(t, def, map[string]any{"universe": float64(3)})

	assert.Contains(t, out, `action="/forms/dmx-config"`)
	assert.Contains(t, out, `<label for="dmx-config-universe">Universe<span class="tooltip">?<span class="tooltiptext">Art-Net <b>universe</b></span></span></label>`)
	assert.Contains(t, out, `<input type="number" name="universe" id="dmx-config-universe" value="3">`)
	assert.Contains(t, out, `<input type="number" name="channel" id="dmx-config-channel">`)
	assert.Contains(t, out, `<label for="dmx-config-channel">Channel</label>`)
	assert.Contains(t, out, `<input type="submit" value="Save">`)
	assert.Equal(t, 2, strings.Count(out, `class="form-group"`))
}

func TestRenderWithoutLabelSkipsTooltip(t *testing.T) {
	def := Definition{
		Command:     "x",
		SubmitLabel: "Go",
		Fields:      []Field{{Name: "secret", Type: TypeHidden, Tooltip: "never shown"}},
	}

	out := render(t, def, nil)
	assert.NotContains(t, out, "<label")
	assert.NotContains(t, out, "never shown")
	assert.Contains(t, out, `<input type="hidden" name="secret" id="x-secret">`)
}

func TestRenderEscapesValuesAndLabels(t *testing.T) {
	def := Definition{
		Command:     "sys-config-merge",
		SubmitLabel: "Save",
		Fields:      []Field{{Name: "hostname", Label: "Host <name>", Type: TypeText}},
	}

	out := render(t, def, map[string]any{"hostname": `"><script>`})
	assert.Contains(t, out, "Host &lt;name&gt;")
	assert.NotContains(t, out, "<script>")
}

func TestRenderEmptyFormOnlySubmit(t *testing.T) {
	out := render(t, Definition{Command: "reboot", SubmitLabel: "Reboot"}, map[string]any{"x": 1})
	assert.NotContains(t, out, "form-group")
	assert.Contains(t, out, `<input type="submit" value="Reboot">`)
}

func TestRenderCheckbox(t *testing.T) {
	def := Definition{Command: "c", SubmitLabel: "s", Fields: []Field{{Name: "lights_test", Type: TypeCheckbox}}}
	assert.Contains(t, render(t, def, map[string]any{"lights_test": true}), "checked")
	assert.NotContains(t, render(t, def, map[string]any{"lights_test": false}), "checked")
	assert.Contains(t, render(t, def, map[string]any{"lights_test": json.Number("1")}), "checked")
	assert.NotContains(t, render(t, def, map[string]any{"lights_test": json.Number("0")}), "checked")
	assert.Contains(t, render(t, def, map[string]any{"lights_test": 1}), "checked")
	assert.NotContains(t, render(t, def, map[string]any{"lights_test": 0}), "checked")
}

func TestRenderSameFieldNameInTwoForms(t *testing.T) {
	firmware := Definition{Command: "firmware-update", SubmitLabel: "s", Fields: []Field{{Name: "url", Label: "URL", Type: TypeURL}}}
	spiffs := Definition{Command: "spiffs-update", SubmitLabel: "s", Fields: []Field{{Name: "url", Label: "URL", Type: TypeURL}}}

	a := render(t, firmware, nil)
	b := render(t, spiffs, nil)
	assert.Contains(t, a, `<label for="firmware-update-url">`)
	assert.Contains(t, a, `id="firmware-update-url"`)
	assert.Contains(t, b, `<label for="spiffs-update-url">`)
	assert.Contains(t, b, `id="spiffs-update-url"`)
	assert.Contains(t, b, `name="url"`)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "5824", FormatValue(float64(5824)))
	assert.Equal(t, "0.5", FormatValue(0.5))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "12", FormatValue(json.Number("12")))
	assert.Equal(t, "[1,2]", FormatValue([]any{1, 2}))
}

func TestCollect(t *testing.T) {
	def := Definition{
		Command: "dmx-config",
		Fields: []Field{
			{Name: "universe", Type: TypeNumber},
			{Name: "channel", Type: TypeNumber},
			{Name: "hostname", Type: TypeText},
			{Name: "enabled", Type: TypeCheckbox},
		},
	}
	values := url.Values{
		"universe": {"2"},
		"channel":  {"abc"},
		"extra":    {"ignored"},
		"enabled":  {"on"},
	}

	cmd := Collect(def, values)
	assert.Equal(t, "dmx-config", cmd.Command)
	assert.Equal(t, json.Number("2"), cmd.Data["universe"])
	assert.Equal(t, "abc", cmd.Data["channel"])
	assert.Equal(t, "", cmd.Data["hostname"])
	assert.Equal(t, true, cmd.Data["enabled"])
	assert.NotContains(t, cmd.Data, "extra")

	body, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"dmx-config","data":{"universe":2,"channel":"abc","hostname":"","enabled":true}}`, string(body))
}

func TestCollectEmptyDefinition(t *testing.T) {
	body, err := json.Marshal(Collect(Definition{Command: "reboot"}, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"reboot","data":{}}`, string(body))
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	def, err := reg.Lookup(CommandDMXConfig)
	require.NoError(t, err)
	assert.Equal(t, "dmx", def.Source)

	_, err = reg.Lookup("self-destruct")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	all := reg.All()
	require.Len(t, all, len(Builtin()))
	assert.Equal(t, CommandDMXConfig, all[0].Command)

	require.NoError(t, reg.Add(Definition{Command: CommandDMXConfig, Fields: []Field{{Name: "universe"}}}))
	all = reg.All()
	assert.Equal(t, CommandDMXConfig, all[0].Command)
	assert.Len(t, all[0].Fields, 1)
	assert.Equal(t, "Submit", all[0].SubmitLabel)
}

func TestRegistryRejectsInvalid(t *testing.T) {
	_, err := NewRegistry(Definition{Command: "a", Fields: []Field{{Name: "x"}, {Name: "x"}}})
	assert.Error(t, err)
	_, err = NewRegistry(Definition{})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
forms:
  - command: sys-config-merge
    title: Wifi
    submit_label: Save wifi
    source: sys
    fields:
      - name: wifi_ssid
        label: SSID
        type: text
      - name: wifi_pass
        label: Password
        type: password
  - command: lights-test
    submit_label: Run
`), 0644))

	reg := DefaultRegistry()
	require.NoError(t, reg.LoadFile(path))

	def, err := reg.Lookup(CommandSysConfigMerge)
	require.NoError(t, err)
	assert.Equal(t, "Save wifi", def.SubmitLabel)
	require.Len(t, def.Fields, 2)
	assert.Equal(t, TypePassword, def.Fields[1].Type)

	_, err = reg.Lookup("lights-test")
	assert.NoError(t, err)
}
