// Package device talks to the NetPins firmware: its HTTP API and the MQTT
// command topic.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/netpins/netpins-panel/internal/forms"
)

// ErrUnknownConfig is returned when the device has no config of that name
var ErrUnknownConfig = errors.New("unknown config")

// Config names served under /conf/
const (
	ConfSys = "sys"
	ConfDMX = "dmx"
)

// Sender delivers a system command to the device
type Sender interface {
	Send(ctx context.Context, cmd forms.Command) (Result, error)
}

// SysInfo is the payload of GET /sys-info
type SysInfo struct {
	Firmware string `json:"firmware"`
	MAC      string `json:"mac"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Uptime   Uptime `json:"uptime"`
}

// Uptime is the device uptime in milliseconds. Firmware sends it as a
// string, heartbeats as a number; both decode.
type Uptime string

func (u *Uptime) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*u = Uptime(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*u = Uptime(s)
	return nil
}

// Duration converts the uptime to a time.Duration, 0 when unparsable
func (u Uptime) Duration() time.Duration {
	ms, err := strconv.ParseInt(string(u), 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// Observer receives the duration of every device request. It may be nil.
type Observer func(endpoint string, d time.Duration, err error)

// Client is an HTTP client for one device
type Client struct {
	baseURL  string
	client   *http.Client
	observer Observer
}

// NewClient creates a client for the device at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SetObserver installs a request observer (used for metrics)
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// SysInfo fetches GET /sys-info
func (c *Client) SysInfo(ctx context.Context) (SysInfo, error) {
	var info SysInfo
	if err := c.getJSON(ctx, "/sys-info", &info); err != nil {
		return SysInfo{}, err
	}
	return info, nil
}

// Conf fetches GET /conf/{name}
func (c *Client) Conf(ctx context.Context, name string) (map[string]any, error) {
	conf := map[string]any{}
	if err := c.getJSON(ctx, "/conf/"+name, &conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// Send posts cmd to /system and decodes the command result
func (c *Client) Send(ctx context.Context, cmd forms.Command) (res Result, err error) {
	start := time.Now()
	defer func() { c.observe("/system", start, err) }()

	if cmd.Data == nil {
		cmd.Data = map[string]any{}
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return Result{}, fmt.Errorf("encoding command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/system", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("posting command %s: %w", cmd.Command, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading command result: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Device returned %d: %s", resp.StatusCode, msg),
			Timeout: -1,
		}, nil
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return Result{Status: StatusOK, Message: "Command sent.", Timeout: -1}, nil
	}

	// Firmware that answers with plain text still accepted the command
	if err := json.Unmarshal(body, &res); err != nil {
		return Result{Status: StatusOK, Message: strings.TrimSpace(string(body)), Timeout: -1}, nil
	}
	return res, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (err error) {
	start := time.Now()
	defer func() { c.observe(path, start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/conf/") {
		return fmt.Errorf("%w: %s", ErrUnknownConfig, strings.TrimPrefix(path, "/conf/"))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	if c.observer != nil {
		c.observer(endpoint, time.Since(start), err)
	}
}
