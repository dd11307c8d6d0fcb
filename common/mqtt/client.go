package mqtt

import (
	"errors"
	"fmt"
	"time"

	"india-blood-connect/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Client publish-only paho wrapper used for alert fan-out.
type Client struct {
	client mqtt.Client
	logger *zap.Logger
}

// NewClient connects to cfg.Broker with auto-reconnect. An empty ClientID gets
// a random "ibc-" id so replicas do not kick each other off the broker.
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ibc-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("MQTT connected", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return &Client{client: client, logger: logger}, nil
}

// Publish sends payload and waits for the broker ack (QoS > 0) up to publishTimeout.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Disconnect waits up to 250ms for in-flight work.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
