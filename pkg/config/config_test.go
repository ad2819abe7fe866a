package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp(t.TempDir(), "test_config_*.yaml")
	require.NoError(t, err)

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "esp32_001", cfg.Device.ID)
	assert.Equal(t, "http://192.168.137.1:5000/ingest_esp32", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*time.Millisecond, cfg.Sampling.SampleInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Sampling.PublishInterval)
	assert.Equal(t, uint16(3500), cfg.Sampling.WarningThreshold)
	assert.Equal(t, uint16(4000), cfg.Sampling.RiskThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.PollInterval)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "esp32_001", cfg.Device.ID)
	assert.Equal(t, "gosense/esp32_001/telemetry", cfg.MQTT.Topic)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
device:
  id: "node_7"

backend:
  url: "http://example.local/ingest_esp32"
  api_key: "secret"
  timeout: 2s

sampling:
  sample_interval: 10ms
  publish_interval: 1s
  warning_threshold: 3000
  risk_threshold: 3800

network:
  interface: wlan0
  poll_interval: 250ms

serial:
  port: "/dev/ttyACM0"
  baud_rate: 57600

metrics:
  addr: ":9100"
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "node_7", cfg.Device.ID)
	assert.Equal(t, "http://example.local/ingest_esp32", cfg.Backend.URL)
	assert.Equal(t, "secret", cfg.Backend.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Sampling.SampleInterval)
	assert.Equal(t, time.Second, cfg.Sampling.PublishInterval)
	assert.Equal(t, uint16(3000), cfg.Sampling.WarningThreshold)
	assert.Equal(t, uint16(3800), cfg.Sampling.RiskThreshold)
	assert.Equal(t, "wlan0", cfg.Network.Interface)
	assert.Equal(t, 250*time.Millisecond, cfg.Network.PollInterval)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "gosense/node_7/telemetry", cfg.MQTT.Topic)
}

func TestLoad_InvalidYAML(t *testing.T) {
	name := writeTemp(t, "invalid: yaml: content: [")

	cfg, err := Load(name)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyACM0"
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 30*time.Millisecond, cfg.Sampling.SampleInterval) // default
	assert.Equal(t, uint16(4000), cfg.Sampling.RiskThreshold)          // default
}

func TestLoad_RejectsInvalid(t *testing.T) {
	name := writeTemp(t, `
sampling:
  warning_threshold: 4000
  risk_threshold: 3500
`)

	cfg, err := Load(name)
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty device id",
			mutate:  func(c *Config) { c.Device.ID = "" },
			wantErr: true,
		},
		{
			name:    "zero sample interval",
			mutate:  func(c *Config) { c.Sampling.SampleInterval = 0 },
			wantErr: true,
		},
		{
			name:    "equal thresholds",
			mutate:  func(c *Config) { c.Sampling.WarningThreshold = c.Sampling.RiskThreshold },
			wantErr: true,
		},
		{
			name:    "http without url",
			mutate:  func(c *Config) { c.Backend.URL = "" },
			wantErr: true,
		},
		{
			name:    "mqtt without broker",
			mutate:  func(c *Config) { c.Transport = TransportMQTT },
			wantErr: true,
		},
		{
			name: "mqtt with broker",
			mutate: func(c *Config) {
				c.Transport = TransportMQTT
				c.MQTT.Broker = "mqtt://localhost:1883"
				c.MQTT.Topic = "gosense/esp32_001/telemetry"
			},
		},
		{
			name: "mqtt qos out of range",
			mutate: func(c *Config) {
				c.Transport = TransportMQTT
				c.MQTT.Broker = "mqtt://localhost:1883"
				c.MQTT.Topic = "t"
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Transport = "carrier-pigeon" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB1"
	cfg.Sampling.PublishInterval = 2 * time.Second

	name := writeTemp(t, "")

	err := cfg.Save(name)
	require.NoError(t, err)

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", loaded.Serial.Port)
	assert.Equal(t, 2*time.Second, loaded.Sampling.PublishInterval)
}
