package publish

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/itohio/gosense/pkg/config"
)

// MQTT publishes records to a broker topic instead of POSTing them.
// The connection manager reconnects in the background; a send while the
// broker is unreachable fails and is not retried.
type MQTT struct {
	cfg      config.MQTTConfig
	clientID string
	logger   *slog.Logger
	cm       *autopaho.ConnectionManager
}

// NewMQTT creates an MQTT transport but does not connect. Call Start.
func NewMQTT(cfg config.MQTTConfig, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gosense-" + uuid.NewString()[:8]
	}
	return &MQTT{
		cfg:      cfg,
		clientID: clientID,
		logger:   logger,
	}
}

// ClientID returns the MQTT client identifier in use.
func (m *MQTT) ClientID() string {
	return m.clientID
}

// Start begins connecting to the broker. It waits briefly for the first
// connection and returns; autopaho keeps retrying after that.
func (m *MQTT) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(m.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	cm, err := autopaho.NewConnection(ctx, m.clientConfig(brokerURL))
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	m.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		m.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	return nil
}

func (m *MQTT) clientConfig(brokerURL *url.URL) autopaho.ClientConfig {
	cfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: m.cfg.Username,
		ConnectPassword: []byte(m.cfg.Password),
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			m.logger.Info("mqtt connected to broker", "broker", m.cfg.Broker)
		},
		OnConnectError: func(err error) {
			m.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: m.clientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		cfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return cfg
}

// Send publishes body to the configured topic.
func (m *MQTT) Send(ctx context.Context, body []byte) (Response, error) {
	if m.cm == nil {
		return Response{}, fmt.Errorf("mqtt transport not started")
	}

	resp, err := m.cm.Publish(ctx, &paho.Publish{
		Topic:   m.cfg.Topic,
		QoS:     m.cfg.QoS,
		Payload: body,
	})
	if err != nil {
		return Response{}, fmt.Errorf("mqtt publish to %s: %w", m.cfg.Topic, err)
	}

	// QoS 0 has no acknowledgement; reaching the broker socket is all we know.
	if resp == nil {
		return Response{Accepted: true}, nil
	}
	return Response{
		Status:   int(resp.ReasonCode),
		Accepted: resp.ReasonCode < 0x80,
	}, nil
}

// Close disconnects from the broker.
func (m *MQTT) Close(ctx context.Context) error {
	if m.cm == nil {
		return nil
	}
	return m.cm.Disconnect(ctx)
}
