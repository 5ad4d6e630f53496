// Package state keeps the last known device state shown by the panel.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/netpins/netpins-panel/internal/device"
)

// Fetcher reads the device endpoints the panel displays
type Fetcher interface {
	SysInfo(ctx context.Context) (device.SysInfo, error)
	Conf(ctx context.Context, name string) (map[string]any, error)
}

// Snapshot is the displayed device state
type Snapshot struct {
	SysInfo   device.SysInfo `json:"sys_info"`
	DMX       map[string]any `json:"dmx"`
	Sys       map[string]any `json:"sys"`
	Online    bool           `json:"online"`
	LastError string         `json:"last_error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Conf returns the config with the given name
func (s Snapshot) Conf(name string) (map[string]any, bool) {
	switch name {
	case device.ConfDMX:
		return s.DMX, s.DMX != nil
	case device.ConfSys:
		return s.Sys, s.Sys != nil
	default:
		return nil, false
	}
}

// Store holds the latest Snapshot and refreshes it from the device
type Store struct {
	fetcher Fetcher
	log     zerolog.Logger

	mu          sync.RWMutex
	snap        Snapshot
	subscribers []func(Snapshot)

	refreshMu sync.Mutex
}

// NewStore creates an empty store reading from f
func NewStore(f Fetcher, log zerolog.Logger) *Store {
	return &Store{
		fetcher: f,
		log:     log.With().Str("component", "state").Logger(),
	}
}

// Subscribe registers fn to be called with every refreshed snapshot
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Refresh fetches /sys-info, /conf/dmx and /conf/sys concurrently. When any
// request fails the device is marked offline and earlier values are kept.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	var (
		info device.SysInfo
		dmx  map[string]any
		sys  map[string]any
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = s.fetcher.SysInfo(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		dmx, err = s.fetcher.Conf(gctx, device.ConfDMX)
		return err
	})
	g.Go(func() error {
		var err error
		sys, err = s.fetcher.Conf(gctx, device.ConfSys)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	s.snap.UpdatedAt = time.Now()
	if err != nil {
		s.snap.Online = false
		s.snap.LastError = err.Error()
	} else {
		s.snap.SysInfo = info
		s.snap.DMX = dmx
		s.snap.Sys = sys
		s.snap.Online = true
		s.snap.LastError = ""
	}
	snap := s.snap.clone()
	subs := append([]func(Snapshot){}, s.subscribers...)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(err).Msg("Device refresh failed")
	} else {
		s.log.Debug().Str("hostname", info.Hostname).Msg("Device state refreshed")
	}

	for _, fn := range subs {
		fn(snap)
	}
	return snap, err
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.DMX = cloneMap(s.DMX)
	out.Sys = cloneMap(s.Sys)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
