// Package dispatch sends system commands to the device and turns the
// device's reply into a notification for the browser.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/netpins/netpins-panel/internal/device"
	"github.com/netpins/netpins-panel/internal/forms"
	"github.com/netpins/netpins-panel/internal/metrics"
	"github.com/netpins/netpins-panel/internal/notify"
	"github.com/netpins/netpins-panel/internal/state"
)

// Notification levels, used as CSS classes by the panel
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// StatusUnreachable marks commands that never got a reply
const StatusUnreachable = "UNREACHABLE"

// Notification is what the panel shows after a command
type Notification struct {
	Level       string `json:"level"`
	Message     string `json:"message"`
	ReloadAfter int    `json:"reload_after_ms"`
}

// Refresher re-reads the device state
type Refresher interface {
	Refresh(ctx context.Context) (state.Snapshot, error)
}

// Broadcaster pushes messages to connected browsers
type Broadcaster interface {
	Broadcast(msg notify.Message)
}

// Dispatcher executes commands through one transport
type Dispatcher struct {
	sender         device.Sender
	refresher      Refresher
	hub            Broadcaster
	history        *History
	metrics        *metrics.Metrics
	log            zerolog.Logger
	refreshTimeout time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// Options configures a Dispatcher. Refresher, Hub and Metrics may be nil.
type Options struct {
	Sender         device.Sender
	Refresher      Refresher
	Hub            Broadcaster
	History        *History
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	RefreshTimeout time.Duration
}

// New creates a dispatcher
func New(opts Options) *Dispatcher {
	if opts.History == nil {
		opts.History = NewHistory(50)
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:         opts.Sender,
		refresher:      opts.Refresher,
		hub:            opts.Hub,
		history:        opts.History,
		metrics:        opts.Metrics,
		log:            opts.Logger.With().Str("component", "dispatch").Logger(),
		refreshTimeout: opts.RefreshTimeout,
		timers:         make(map[*time.Timer]struct{}),
	}
}

// History returns the command history
func (d *Dispatcher) History() *History {
	return d.history
}

// Execute sends cmd and reports the outcome. OK refreshes the state before
// returning; a reload delay schedules the refresh for when the device is
// expected back.
func (d *Dispatcher) Execute(ctx context.Context, cmd forms.Command) Notification {
	start := time.Now()
	res, err := d.sender.Send(ctx, cmd)
	elapsed := time.Since(start)

	rec := Record{
		ID:        uuid.NewString(),
		Command:   cmd.Command,
		Data:      cmd.Data,
		Duration:  elapsed,
		CreatedAt: start,
	}

	var n Notification
	if err != nil {
		rec.Status = StatusUnreachable
		n = Notification{Level: LevelError, Message: "Device unreachable: " + err.Error()}
		d.log.Error().Err(err).Str("command", cmd.Command).Msg("Command failed")
	} else {
		rec.Status = string(res.Status)
		n = Notification{Level: LevelSuccess, Message: res.Message, ReloadAfter: res.ReloadAfter()}
		if !res.OK() {
			n.Level = LevelError
		}
		if n.Message == "" {
			n.Message = defaultMessage(res.Status)
		}
		d.log.Info().
			Str("command", cmd.Command).
			Str("status", rec.Status).
			Int("reload_after_ms", n.ReloadAfter).
			Dur("duration", elapsed).
			Msg(n.Message)
	}
	rec.Message = n.Message
	rec.ReloadAfter = n.ReloadAfter

	d.history.Add(rec)
	d.metrics.CountCommand(cmd.Command, rec.Status)
	d.Notify(n)

	if err == nil {
		if n.ReloadAfter > 0 {
			d.scheduleRefresh(time.Duration(n.ReloadAfter) * time.Millisecond)
		} else {
			d.refresh(ctx)
		}
	}
	return n
}

// Notify broadcasts n, and a reload message when it carries a delay
func (d *Dispatcher) Notify(n Notification) {
	if d.hub == nil {
		return
	}
	d.hub.Broadcast(notify.NewMessage(notify.TypeNotification, n))
	if n.ReloadAfter > 0 {
		d.hub.Broadcast(notify.NewMessage(notify.TypeReload, map[string]int{"after_ms": n.ReloadAfter}))
	}
}

func (d *Dispatcher) refresh(ctx context.Context) {
	if d.refresher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.refreshTimeout)
	defer cancel()
	d.refresher.Refresh(ctx)
}

func (d *Dispatcher) scheduleRefresh(delay time.Duration) {
	if d.refresher == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, t)
		d.mu.Unlock()
		d.refresh(context.Background())
	})
	d.timers[t] = struct{}{}
}

// Pending returns the number of scheduled refreshes
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Close cancels scheduled refreshes
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for t := range d.timers {
		t.Stop()
		delete(d.timers, t)
	}
}

func defaultMessage(s device.Status) string {
	switch s {
	case device.StatusOK:
		return "Done."
	case device.StatusOKReboot:
		return "Done, rebooting ..."
	default:
		return "Command failed."
	}
}
