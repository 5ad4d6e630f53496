package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/netpins/netpins-panel/internal/config"
	"github.com/netpins/netpins-panel/internal/forms"
)

// ErrNotConnected is returned when publishing without a broker connection
var ErrNotConnected = errors.New("mqtt not connected")

// publisher is the subset of mqtt.Client used by MQTTTransport
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTTransport publishes system commands on the firmware's command topic
type MQTTTransport struct {
	client  publisher
	topic   string
	timeout time.Duration
}

// CommandTopic is the topic the firmware with the given hostname listens on
func CommandTopic(prefix, hostname string) string {
	return strings.TrimRight(prefix, "/") + "/command/" + hostname
}

// DialMQTT connects to the broker configured in cfg
func DialMQTT(cfg config.MQTTConfig, log zerolog.Logger) (*MQTTTransport, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("mqtt: hostname of the device is required")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connecting to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connecting to %s: %w", cfg.Broker, err)
	}

	return newMQTTTransport(client, CommandTopic(cfg.TopicPrefix, cfg.Hostname), cfg.ConnectTimeout), nil
}

func newMQTTTransport(client publisher, topic string, timeout time.Duration) *MQTTTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTTransport{client: client, topic: topic, timeout: timeout}
}

// Topic returns the topic commands are published to
func (t *MQTTTransport) Topic() string {
	return t.topic
}

// Send publishes cmd with QoS 1. The firmware does not answer on MQTT, so a
// delivered publish is reported as OK.
func (t *MQTTTransport) Send(ctx context.Context, cmd forms.Command) (Result, error) {
	if !t.client.IsConnected() {
		return Result{}, ErrNotConnected
	}
	if cmd.Data == nil {
		cmd.Data = map[string]any{}
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return Result{}, fmt.Errorf("encoding command: %w", err)
	}

	token := t.client.Publish(t.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(t.timeout):
		return Result{}, fmt.Errorf("publishing %s: timed out", cmd.Command)
	}
	if err := token.Error(); err != nil {
		return Result{}, fmt.Errorf("publishing %s: %w", cmd.Command, err)
	}

	return Result{Status: StatusOK, Message: "Command published.", Timeout: -1}, nil
}

// Close disconnects from the broker
func (t *MQTTTransport) Close() {
	t.client.Disconnect(250)
}
