// Package discovery tracks NetPins devices from their UDP heartbeat
// broadcasts.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netpins/netpins-panel/internal/device"
)

// DefaultPort is the firmware's default heartbeat port
const DefaultPort = 5824

const maxPacketSize = 1024

// Heartbeat is the JSON packet a device broadcasts periodically
type Heartbeat struct {
	Uptime          device.Uptime `json:"uptime"`
	FirmwareVersion string        `json:"firmwareVersion"`
	IP              string        `json:"ip"`
	MAC             string        `json:"mac"`
}

// ParseHeartbeat decodes a heartbeat packet. A packet without a MAC is
// rejected since devices are keyed by it.
func ParseHeartbeat(b []byte) (Heartbeat, error) {
	var hb Heartbeat
	if err := json.Unmarshal(b, &hb); err != nil {
		return Heartbeat{}, fmt.Errorf("decoding heartbeat: %w", err)
	}
	if strings.TrimSpace(hb.MAC) == "" {
		return Heartbeat{}, errors.New("heartbeat without mac")
	}
	return hb, nil
}

// Device is a device seen on the network
type Device struct {
	IP       string        `json:"ip"`
	MAC      string        `json:"mac"`
	Firmware string        `json:"firmware"`
	Uptime   time.Duration `json:"uptime_ns"`
	LastSeen time.Time     `json:"last_seen"`
}

// Registry holds devices by MAC and forgets them after ttl without a
// heartbeat
type Registry struct {
	ttl     time.Duration
	onCount func(int)

	mu      sync.Mutex
	devices map[string]Device
}

// NewRegistry creates a registry. onCount, if not nil, receives the number
// of known devices after every change.
func NewRegistry(ttl time.Duration, onCount func(int)) *Registry {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Registry{
		ttl:     ttl,
		onCount: onCount,
		devices: make(map[string]Device),
	}
}

// Observe records a heartbeat received from addr at now
func (r *Registry) Observe(hb Heartbeat, addr net.Addr, now time.Time) Device {
	ip := hb.IP
	if ip == "" && addr != nil {
		if ua, ok := addr.(*net.UDPAddr); ok {
			ip = ua.IP.String()
		}
	}

	d := Device{
		IP:       ip,
		MAC:      strings.ToUpper(hb.MAC),
		Firmware: hb.FirmwareVersion,
		Uptime:   hb.Uptime.Duration(),
		LastSeen: now,
	}

	r.mu.Lock()
	r.devices[d.MAC] = d
	n := r.expireLocked(now)
	r.mu.Unlock()

	r.counted(n)
	return d
}

// Devices returns the live devices sorted by MAC
func (r *Registry) Devices(now time.Time) []Device {
	r.mu.Lock()
	n := r.expireLocked(now)
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.Unlock()

	r.counted(n)
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out
}

func (r *Registry) expireLocked(now time.Time) int {
	for mac, d := range r.devices {
		if now.Sub(d.LastSeen) > r.ttl {
			delete(r.devices, mac)
		}
	}
	return len(r.devices)
}

func (r *Registry) counted(n int) {
	if r.onCount != nil {
		r.onCount(n)
	}
}

// Listener reads heartbeats from a UDP socket into a Registry
type Listener struct {
	conn     net.PacketConn
	registry *Registry
	log      zerolog.Logger
}

// Listen binds addr, e.g. ":5824"
func Listen(addr string, registry *Registry, log zerolog.Logger) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for heartbeats on %s: %w", addr, err)
	}
	return &Listener{
		conn:     conn,
		registry: registry,
		log:      log.With().Str("component", "discovery").Logger(),
	}, nil
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run reads packets until ctx is done or the listener is closed
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()

	buf := make([]byte, maxPacketSize)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading heartbeat: %w", err)
		}

		hb, err := ParseHeartbeat(buf[:n])
		if err != nil {
			l.log.Debug().Err(err).Str("from", addr.String()).Msg("Ignoring packet")
			continue
		}

		d := l.registry.Observe(hb, addr, time.Now())
		l.log.Debug().Str("mac", d.MAC).Str("ip", d.IP).Str("firmware", d.Firmware).Msg("Heartbeat")
	}
}

// Close stops the listener
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Scan listens on addr for the given duration and returns the devices heard
func Scan(ctx context.Context, addr string, d time.Duration, log zerolog.Logger) ([]Device, error) {
	registry := NewRegistry(d+time.Minute, nil)
	l, err := Listen(addr, registry, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		return nil, err
	}
	return registry.Devices(time.Now()), nil
}
