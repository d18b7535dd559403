package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/watsh-io/backend/internal/model"
)

// MQTT errors.
var (
	ErrMQTTConnect        = errors.New("mqtt: connection failed")
	ErrMQTTPublishTimeout = errors.New("mqtt: publish timed out")
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250
)

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	QoS            byte
	PublishTimeout time.Duration
}

// mqttPublisher is the part of pahomqtt.Client the publisher needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTPublisher announces commits on {prefix}/{project}/{environment}/{branch}/commits.
type MQTTPublisher struct {
	client  mqttPublisher
	closer  func()
	prefix  string
	qos     byte
	timeout time.Duration
}

// DialMQTT connects to the broker and returns a ready publisher.
func DialMQTT(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrMQTTConnect, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMQTTConnect, err)
	}

	p := NewMQTTPublisher(client, cfg.TopicPrefix, cfg.QoS, cfg.PublishTimeout)
	p.closer = func() { client.Disconnect(defaultDisconnectQuiesce) }
	return p, nil
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client mqttPublisher, prefix string, qos byte, timeout time.Duration) *MQTTPublisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	if prefix == "" {
		prefix = "watsh"
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, timeout: timeout}
}

// Topic returns the topic for a branch.
func (p *MQTTPublisher) Topic(s model.Scope) string {
	return fmt.Sprintf("%s/%s/%s/%s/commits", p.prefix, s.Project, s.Environment, s.Branch)
}

type commitPayload struct {
	Commit      string `json:"commit"`
	Project     string `json:"project"`
	Environment string `json:"environment"`
	Branch      string `json:"branch"`
	Author      string `json:"author"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
	Rows        int    `json:"rows"`
}

// Publish implements Notifier.
func (p *MQTTPublisher) Publish(ctx context.Context, ev model.CommitEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(commitPayload{
		Commit:      ev.Commit.String(),
		Project:     ev.Scope.Project.String(),
		Environment: ev.Scope.Environment.String(),
		Branch:      ev.Scope.Branch.String(),
		Author:      ev.Author.String(),
		Message:     ev.Message,
		Timestamp:   ev.Timestamp,
		Rows:        ev.Rows,
	})
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(ev.Scope), p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return ErrMQTTPublishTimeout
	}
	return token.Error()
}

// Close disconnects a publisher created by DialMQTT.
func (p *MQTTPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}
