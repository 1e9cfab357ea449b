package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/models"
)

// MQTTConfig configures the broker mirror
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTBridge mirrors every webhook event onto an MQTT broker under
// <prefix>/<organizationId>/<eventType>
type MQTTBridge struct {
	cli     pahoClient
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTBridge connects to the broker
func NewMQTTBridge(cfg MQTTConfig) (*MQTTBridge, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		zap.S().Errorw("mqtt connection lost", "broker", cfg.Broker, "error", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		zap.S().Warnw("reconnecting to mqtt broker", "broker", cfg.Broker)
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", cfg.Broker)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}
	zap.S().Infow("mqtt event mirror connected", "broker", cfg.Broker)

	return &MQTTBridge{
		cli:     c,
		prefix:  strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
	}, nil
}

// Topic returns where an event is published
func (b *MQTTBridge) Topic(event models.Event) string {
	return fmt.Sprintf("%s/%s/%s", b.prefix, event.OrganizationID, event.EventType)
}

// Publish sends the event and waits for the broker at most the configured timeout
func (b *MQTTBridge) Publish(event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	token := b.cli.Publish(b.Topic(event), b.qos, false, payload)
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("publish %s: timed out", event.EventType)
	}
	return token.Error()
}

// Close disconnects from the broker
func (b *MQTTBridge) Close() {
	if b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}
