// Package bus wraps the shared MQTT broker connection every controller
// publishes and subscribes through. It generalizes the single-topic
// node-style MQTT executors into a multi-subscription client and
// layers an in-band response-topic convention on top of paho's plain
// 3.1.1 publish/subscribe, standing in for the response-topic publish
// property MQTT 5 brokers offer natively.
package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sofie-iot/smaug-locker/internal/logger"
)

// Config configures the shared bus connection.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	AutoReconnect  bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// DefaultConfig returns the connection defaults the reference
// controllers use (30s connect-retry timeout, auto-reconnect on).
func DefaultConfig(broker, clientID string) Config {
	return Config{
		Broker:         broker,
		ClientID:       clientID,
		CleanSession:   true,
		AutoReconnect:  true,
		KeepAlive:      60 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

// Handler receives a decoded message body for a subscribed topic.
// responseTopic is non-empty when the publisher embedded one.
type Handler func(payload map[string]interface{}, responseTopic string)

// Client is a connected MQTT client plus the subscription table that
// Runtime and the WoT façade dispatch through. A topic may carry more
// than one handler (a composed "mega" binary's members each registering
// their own interest in the same topic); every registered handler for
// a topic is invoked for each message delivered to it.
type Client struct {
	cfg    Config
	mu     sync.RWMutex
	client mqtt.Client
	subs   map[string][]Handler // topic -> handlers
}

// New constructs an unconnected Client.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, subs: make(map[string][]Handler)}
}

// Connect dials the broker, retrying every ConnectTimeout until stop is
// closed or a connection succeeds, mirroring the reference controller's
// connect-retry loop.
func (c *Client) Connect(stop <-chan struct{}) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetCleanSession(c.cfg.CleanSession)
	opts.SetAutoReconnect(c.cfg.AutoReconnect)
	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Get().Info("bus: connected")
		c.resubscribeAll()
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Get().Warn("bus: connection lost")
	})

	client := mqtt.NewClient(opts)

	for {
		select {
		case <-stop:
			return fmt.Errorf("bus: connect aborted: shutdown requested")
		default:
		}

		token := client.Connect()
		done := make(chan struct{})
		go func() { token.Wait(); close(done) }()

		select {
		case <-done:
			if token.Error() == nil {
				c.mu.Lock()
				c.client = client
				c.mu.Unlock()
				return nil
			}
			logger.Get().Warn("bus: connect failed, retrying")
		case <-stop:
			return fmt.Errorf("bus: connect aborted: shutdown requested")
		case <-time.After(c.cfg.ConnectTimeout):
			logger.Get().Warn("bus: connect timed out, retrying")
		}
	}
}

// Subscribe registers handler for topic, alongside any handler already
// registered for it. The broker-level subscription is issued once per
// topic, on the first handler; later handlers for the same topic ride
// on the existing subscription's dispatch. If the client is already
// connected the subscription is issued immediately; otherwise it is
// replayed on the next connect (see resubscribeAll).
func (c *Client) Subscribe(topic string, qos byte, handler Handler) error {
	c.mu.Lock()
	first := len(c.subs[topic]) == 0
	c.subs[topic] = append(c.subs[topic], handler)
	client := c.client
	c.mu.Unlock()

	if client == nil || !client.IsConnected() || !first {
		return nil
	}
	return c.subscribeOne(client, topic, qos)
}

func (c *Client) subscribeOne(client mqtt.Client, topic string, qos byte) error {
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		payload, responseTopic, err := decodeEnvelope(msg.Payload())
		if err != nil {
			logger.Get().Warn("bus: malformed message")
			return
		}
		for _, handler := range c.handlersFor(topic) {
			handler(payload, responseTopic)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("bus: subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (c *Client) handlersFor(topic string) []Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Handler, len(c.subs[topic]))
	copy(out, c.subs[topic])
	return out
}

func (c *Client) resubscribeAll() {
	c.mu.RLock()
	client := c.client
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	c.mu.RUnlock()

	if client == nil {
		return
	}
	for _, topic := range topics {
		if err := c.subscribeOne(client, topic, 1); err != nil {
			logger.Get().Warn("bus: resubscribe failed")
		}
	}
}

// Publish sends payload (JSON-encoded) to topic. If responseTopic is
// non-empty it is embedded in the envelope as the "response_topic"
// field, the convention subscribers use in place of a native MQTT 5
// response-topic property.
func (c *Client) Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("bus: publish %s: not connected", topic)
	}

	body, err := encodeEnvelope(payload, responseTopic)
	if err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}

	token := client.Publish(topic, qos, false, body)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect gracefully closes the connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

const responseTopicField = "response_topic"

func encodeEnvelope(payload map[string]interface{}, responseTopic string) ([]byte, error) {
	envelope := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		envelope[k] = v
	}
	if responseTopic != "" {
		envelope[responseTopicField] = responseTopic
	}
	return json.Marshal(envelope)
}

func decodeEnvelope(raw []byte) (map[string]interface{}, string, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, "", err
	}
	responseTopic, _ := envelope[responseTopicField].(string)
	delete(envelope, responseTopicField)
	return envelope, responseTopic, nil
}
