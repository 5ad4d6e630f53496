package api

import (
	"fmt"
	"time"

	g "maragu.dev/gomponents"
	c "maragu.dev/gomponents/components"
	h "maragu.dev/gomponents/html"

	"github.com/netpins/netpins-panel/internal/discovery"
	"github.com/netpins/netpins-panel/internal/dispatch"
	"github.com/netpins/netpins-panel/internal/forms"
	"github.com/netpins/netpins-panel/internal/state"
)

// pageData is everything the panel page shows
type pageData struct {
	Snapshot     state.Snapshot
	Forms        []forms.Definition
	Settings     string
	Notification *dispatch.Notification
	History      []dispatch.Record
	Devices      []discovery.Device
	Discovery    bool
}

func panelPage(p pageData) g.Node {
	return c.HTML5(c.HTML5Props{
		Title:    "NetPins",
		Language: "en",
		Head: []g.Node{
			h.Meta(h.Name("viewport"), h.Content("width=device-width, initial-scale=1.0")),
			h.Link(h.Rel("stylesheet"), h.Href("/static/panel.css")),
			h.Script(h.Src("/static/panel.js"), h.Defer()),
		},
		Body: []g.Node{
			header(p.Snapshot),
			notificationPanel(p.Notification),
			h.Main(
				h.Class("content"),
				g.Group(g.Map(p.Forms, func(def forms.Definition) g.Node {
					return formCard(def, p.Snapshot)
				})),
				settingsCard(p.Settings),
				historyCard(p.History),
				g.If(p.Discovery, devicesCard(p.Devices)),
			),
		},
	})
}

func header(snap state.Snapshot) g.Node {
	dot := "dot-red"
	status := "offline"
	if snap.Online {
		dot, status = "dot-green", "online"
	}

	return h.Header(
		h.Class("hdr"),
		h.H1(g.Text("NetPins "), h.Span(h.ID("hostname"), g.Text(snap.SysInfo.Hostname))),
		h.Div(
			h.Class("hdr-right"),
			h.Span(h.ID("firmware"), g.Text(snap.SysInfo.Firmware)),
			h.Span(h.ID("ip"), g.Text(snap.SysInfo.IP)),
			h.Span(h.ID("device-status"), h.Class("hdr-dot "+dot), h.TitleAttr(status)),
		),
		g.If(snap.LastError != "", h.Div(h.Class("hdr-error"), g.Text(snap.LastError))),
	)
}

func notificationPanel(n *dispatch.Notification) g.Node {
	if n == nil {
		return h.Div(h.ID("notification"), h.Class("notification hidden"))
	}
	return h.Div(
		h.ID("notification"),
		h.Class("notification "+n.Level),
		g.If(n.ReloadAfter > 0, h.Data("reload-after", fmt.Sprint(n.ReloadAfter))),
		g.Text(n.Message),
	)
}

func formCard(def forms.Definition, snap state.Snapshot) g.Node {
	title := def.Title
	if title == "" {
		title = def.Command
	}
	data, _ := snap.Conf(def.Source)

	return h.Section(
		h.Class("card"),
		h.H2(g.Text(title)),
		h.Div(
			h.ID("form-container-"+def.Command),
			forms.Render(def, data),
		),
	)
}

func settingsCard(yamlText string) g.Node {
	return h.Section(
		h.Class("card"),
		h.H2(g.Text("System settings")),
		h.Form(
			h.ID("sys-config-form"),
			h.Method("post"),
			h.Action("/sys-config"),
			h.Textarea(
				h.ID("settings"),
				h.Name("settings"),
				h.Class("mono"),
				h.Rows("20"),
				g.Attr("spellcheck", "false"),
				g.Text(yamlText),
			),
			h.Div(
				h.Class("btn-row"),
				h.Button(h.Type("submit"), h.Class("btn btn-primary"), g.Text("Save settings")),
			),
		),
	)
}

func historyCard(records []dispatch.Record) g.Node {
	if len(records) == 0 {
		return h.Section(
			h.Class("card"),
			h.H2(g.Text("Recent commands")),
			h.P(h.Class("empty"), g.Text("No commands sent yet.")),
		)
	}

	return h.Section(
		h.Class("card"),
		h.H2(g.Text("Recent commands")),
		h.Table(
			h.ID("history"),
			h.THead(h.Tr(
				h.Th(g.Text("Time")),
				h.Th(g.Text("Command")),
				h.Th(g.Text("Status")),
				h.Th(g.Text("Message")),
			)),
			h.TBody(g.Map(records, func(r dispatch.Record) g.Node {
				return h.Tr(
					h.Td(g.Text(r.CreatedAt.Format(time.TimeOnly))),
					h.Td(g.Text(r.Command)),
					h.Td(h.Span(h.Class("badge "+statusBadge(r.Status)), g.Text(r.Status))),
					h.Td(g.Text(r.Message)),
				)
			})),
		),
	)
}

func devicesCard(devices []discovery.Device) g.Node {
	body := g.Node(h.P(h.Class("empty"), g.Text("No heartbeats received.")))
	if len(devices) > 0 {
		body = h.Table(
			h.ID("devices"),
			h.THead(h.Tr(
				h.Th(g.Text("MAC")),
				h.Th(g.Text("IP")),
				h.Th(g.Text("Firmware")),
				h.Th(g.Text("Uptime")),
				h.Th(g.Text("Last seen")),
			)),
			h.TBody(g.Map(devices, func(d discovery.Device) g.Node {
				return h.Tr(
					h.Td(g.Text(d.MAC)),
					h.Td(h.A(h.Href("http://"+d.IP+"/"), g.Text(d.IP))),
					h.Td(g.Text(d.Firmware)),
					h.Td(g.Text(d.Uptime.Truncate(time.Second).String())),
					h.Td(g.Text(d.LastSeen.Format(time.TimeOnly))),
				)
			})),
		)
	}

	return h.Section(
		h.Class("card"),
		h.H2(g.Text("Devices on the network")),
		body,
	)
}

func statusBadge(status string) string {
	switch status {
	case "OK", "OK_REBOOT":
		return "badge-green"
	case dispatch.StatusUnreachable:
		return "badge-gray"
	default:
		return "badge-red"
	}
}
