package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	g "maragu.dev/gomponents"

	"github.com/netpins/netpins-panel/internal/device"
	"github.com/netpins/netpins-panel/internal/discovery"
	"github.com/netpins/netpins-panel/internal/dispatch"
	"github.com/netpins/netpins-panel/internal/forms"
	"github.com/netpins/netpins-panel/internal/notify"
	"github.com/netpins/netpins-panel/internal/settings"
)

// commandResponse is the JSON reply to a submitted command
type commandResponse struct {
	Notification dispatch.Notification `json:"notification"`
	Command      *forms.Command         `json:"command,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (s *Server) renderPage(w http.ResponseWriter, status int, n *dispatch.Notification, settingsText *string) {
	snap := s.store.Snapshot()

	var text string
	if settingsText != nil {
		text = *settingsText
	} else if snap.Sys != nil {
		var err error
		if text, err = settings.ToYAML(snap.Sys); err != nil {
			s.log.Warn().Err(err).Msg("Failed to dump system config")
		}
	}

	data := pageData{
		Snapshot:     snap,
		Forms:        s.forms.All(),
		Settings:     text,
		Notification: n,
		History:      s.dispatcher.History().Entries(),
		Discovery:    s.devices != nil,
	}
	if s.devices != nil {
		data.Devices = s.devices.Devices(time.Now())
	}

	s.writeNode(w, status, panelPage(data))
}

func (s *Server) writeNode(w http.ResponseWriter, status int, node g.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := node.Render(w); err != nil {
		s.log.Error().Err(err).Msg("Failed to render page")
	}
}

// handleIndex serves the panel page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, nil, nil)
}

// handleForm serializes a submitted form and sends it to the device
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	def, err := s.forms.Lookup(chi.URLParam(r, "command"))
	if err != nil {
		s.respondNotification(w, r, http.StatusNotFound, dispatch.Notification{
			Level:   dispatch.LevelError,
			Message: err.Error(),
		}, nil, nil)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.respondNotification(w, r, http.StatusBadRequest, dispatch.Notification{
			Level:   dispatch.LevelError,
			Message: "Invalid form data: " + err.Error(),
		}, nil, nil)
		return
	}

	cmd := forms.Collect(def, r.PostForm)
	n := s.dispatcher.Execute(r.Context(), cmd)
	s.respondNotification(w, r, http.StatusOK, n, &cmd, nil)
}

// handleSysConfig sends the YAML settings textarea as a sys-config command
func (s *Server) handleSysConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondNotification(w, r, http.StatusBadRequest, dispatch.Notification{
			Level:   dispatch.LevelError,
			Message: "Invalid form data: " + err.Error(),
		}, nil, nil)
		return
	}
	text := r.PostFormValue("settings")

	cmd, err := settings.SysConfigCommand(text)
	if err != nil {
		s.log.Warn().Err(err).Msg("Rejected system settings")
		s.respondNotification(w, r, http.StatusBadRequest, dispatch.Notification{
			Level:   dispatch.LevelError,
			Message: err.Error(),
		}, nil, &text)
		return
	}

	n := s.dispatcher.Execute(r.Context(), cmd)
	s.respondNotification(w, r, http.StatusOK, n, &cmd, nil)
}

func (s *Server) respondNotification(w http.ResponseWriter, r *http.Request, status int, n dispatch.Notification, cmd *forms.Command, settingsText *string) {
	if wantsJSON(r) {
		respondJSON(w, status, commandResponse{Notification: n, Command: cmd})
		return
	}
	s.renderPage(w, status, &n, settingsText)
}

// handleSystem passes a raw JSON command through to the device
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	var cmd forms.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(cmd.Command) == "" {
		respondError(w, http.StatusBadRequest, "command is required")
		return
	}

	n := s.dispatcher.Execute(r.Context(), cmd)
	respondJSON(w, http.StatusOK, commandResponse{Notification: n, Command: &cmd})
}

// handleSysInfo returns the last known /sys-info
func (s *Server) handleSysInfo(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	if snap.SysInfo == (device.SysInfo{}) {
		respondError(w, http.StatusServiceUnavailable, "device state not loaded yet")
		return
	}
	respondJSON(w, http.StatusOK, snap.SysInfo)
}

// handleConf returns the last known /conf/{name}
func (s *Server) handleConf(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != device.ConfSys && name != device.ConfDMX {
		respondError(w, http.StatusNotFound, device.ErrUnknownConfig.Error()+": "+name)
		return
	}

	conf, ok := s.store.Snapshot().Conf(name)
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "device state not loaded yet")
		return
	}
	respondJSON(w, http.StatusOK, conf)
}

// handleRefresh re-reads the device state now
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Refresh(r.Context())
	if err != nil {
		respondJSON(w, http.StatusBadGateway, snap)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleForms returns the form definitions
func (s *Server) handleForms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"forms": s.forms.All(),
	})
}

// handleHistory returns recently dispatched commands, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"commands": s.dispatcher.History().Entries(),
	})
}

// handleLogs returns buffered log entries, optionally filtered by level
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		respondError(w, http.StatusNotFound, "log buffer disabled")
		return
	}

	var levels []string
	if q := r.URL.Query().Get("level"); q != "" {
		levels = strings.Split(q, ",")
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"logs": s.logs.Entries(levels),
	})
}

// handleDevices returns devices heard on the heartbeat port
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices := []discovery.Device{}
	if s.devices != nil {
		devices = s.devices.Devices(time.Now())
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
	})
}

// handleWS upgrades to the notification websocket
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	hello := notify.NewMessage(notify.TypeState, s.store.Snapshot())
	s.hub.ServeWS(w, r, &hello)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"device_online": snap.Online,
		"device_url":    s.config.Device.URL,
		"updated_at":    snap.UpdatedAt,
	})
}
