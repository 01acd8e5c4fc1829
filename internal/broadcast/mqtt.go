package broadcast

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultMQTTTopic = "spectrum/frames"

	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// MQTTConfig describes the broker frames are forwarded to.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" json:"broker"` // e.g. tcp://localhost:1883
	Topic    string `yaml:"topic" json:"topic"`
	ClientID string `yaml:"clientID" json:"clientID"` // Generated when empty
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

func (c *MQTTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return errors.New("mqtt: broker is required")
	}
	if c.Topic == "" {
		c.Topic = DefaultMQTTTopic
	}
	if strings.ContainsAny(c.Topic, "+#") {
		return fmt.Errorf("mqtt: topic must not contain wildcards: %s", c.Topic)
	}
	return nil
}

// MQTT forwards every wire message to a broker topic with QoS 0.
type MQTT struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// DialMQTT connects to the broker. The client reconnects on its own after
// the initial connection succeeded.
func DialMQTT(config *MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With(slog.String("broker", config.Broker))

	clientID := config.ClientID
	if clientID == "" {
		clientID = "spectrum-scope-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(clientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", slog.Any("error", err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", config.Broker, err)
	}

	return NewMQTT(client, config.Topic, logger), nil
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, topic string, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTT{client: client, topic: topic, logger: logger}
}

// SendToAll publishes msg without waiting for the broker.
func (m *MQTT) SendToAll(msg []byte) {
	if !m.client.IsConnectionOpen() {
		return
	}

	token := m.client.Publish(m.topic, 0, false, append([]byte(nil), msg...))
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			m.logger.Debug("mqtt publish failed", slog.String("topic", m.topic), slog.Any("error", err))
		}
	}()
}

func (m *MQTT) Close() error {
	m.client.Disconnect(disconnectQuiesce)
	return nil
}
