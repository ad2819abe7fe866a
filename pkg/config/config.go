package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate when the configuration cannot drive the loop.
var ErrInvalid = errors.New("invalid configuration")

// Transport names accepted in Config.Transport.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Config represents the gateway configuration.
type Config struct {
	Device    DeviceConfig   `yaml:"device"`
	Backend   BackendConfig  `yaml:"backend"`
	Sampling  SamplingConfig `yaml:"sampling"`
	Network   NetworkConfig  `yaml:"network"`
	Serial    SerialConfig   `yaml:"serial"`
	Mock      MockConfig     `yaml:"mock"`
	Transport string         `yaml:"transport"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// DeviceConfig identifies this node to the backend.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// BackendConfig contains the ingestion endpoint and its credential.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"` // Transport-level timeout for a single POST
}

// SamplingConfig contains the two loop cadences and the gas thresholds.
type SamplingConfig struct {
	SampleInterval   time.Duration `yaml:"sample_interval"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	WarningThreshold uint16        `yaml:"warning_threshold"`
	RiskThreshold    uint16        `yaml:"risk_threshold"`
	Idle             time.Duration `yaml:"idle"` // Pause between loop iterations (0 = spin)
}

// NetworkConfig controls the connectivity check.
type NetworkConfig struct {
	Interface    string        `yaml:"interface"` // Empty means any non-loopback interface
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MockConfig contains simulated sensor configuration.
type MockConfig struct {
	SampleRate    time.Duration `yaml:"sample_rate"`    // How often the simulator updates its readings
	EventPeriod   time.Duration `yaml:"event_period"`   // Time between simulated vibration events
	EventDuration time.Duration `yaml:"event_duration"` // How long a vibration event keeps the pin low
	GasBase       float64       `yaml:"gas_base"`       // Mean gas ADC value
	GasAmplitude  float64       `yaml:"gas_amplitude"`  // Peak deviation of the gas waveform
	GasPeriod     time.Duration `yaml:"gas_period"`     // Period of the gas waveform
}

// MQTTConfig contains the optional MQTT transport settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"` // Generated when empty
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// MetricsConfig contains the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "esp32_001",
		},
		Backend: BackendConfig{
			URL:     "http://192.168.137.1:5000/ingest_esp32",
			Timeout: 5 * time.Second,
		},
		Sampling: SamplingConfig{
			SampleInterval:   30 * time.Millisecond,
			PublishInterval:  200 * time.Millisecond,
			WarningThreshold: 3500,
			RiskThreshold:    4000,
			Idle:             time.Millisecond,
		},
		Network: NetworkConfig{
			PollInterval: 500 * time.Millisecond,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		Mock: MockConfig{
			SampleRate:    5 * time.Millisecond,
			EventPeriod:   3 * time.Second,
			EventDuration: 150 * time.Millisecond,
			GasBase:       3400,
			GasAmplitude:  700,
			GasPeriod:     30 * time.Second,
		},
		Transport: TransportHTTP,
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ensureDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values the loop relies on.
func (c *Config) Validate() error {
	if c.Device.ID == "" {
		return fmt.Errorf("%w: device.id is empty", ErrInvalid)
	}
	if c.Sampling.SampleInterval <= 0 || c.Sampling.PublishInterval <= 0 {
		return fmt.Errorf("%w: sampling intervals must be positive", ErrInvalid)
	}
	if c.Sampling.WarningThreshold >= c.Sampling.RiskThreshold {
		return fmt.Errorf("%w: warning_threshold %d must be below risk_threshold %d",
			ErrInvalid, c.Sampling.WarningThreshold, c.Sampling.RiskThreshold)
	}

	switch c.Transport {
	case TransportHTTP:
		if c.Backend.URL == "" {
			return fmt.Errorf("%w: backend.url is empty", ErrInvalid)
		}
	case TransportMQTT:
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			return fmt.Errorf("%w: mqtt.broker and mqtt.topic are required", ErrInvalid)
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("%w: mqtt.qos %d out of range", ErrInvalid, c.MQTT.QoS)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.ID == "" {
		c.Device.ID = def.Device.ID
	}

	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = def.Backend.Timeout
	}

	if c.Sampling.SampleInterval == 0 {
		c.Sampling.SampleInterval = def.Sampling.SampleInterval
	}
	if c.Sampling.PublishInterval == 0 {
		c.Sampling.PublishInterval = def.Sampling.PublishInterval
	}
	if c.Sampling.WarningThreshold == 0 {
		c.Sampling.WarningThreshold = def.Sampling.WarningThreshold
	}
	if c.Sampling.RiskThreshold == 0 {
		c.Sampling.RiskThreshold = def.Sampling.RiskThreshold
	}

	if c.Network.PollInterval == 0 {
		c.Network.PollInterval = def.Network.PollInterval
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.EventPeriod == 0 {
		c.Mock.EventPeriod = def.Mock.EventPeriod
	}
	if c.Mock.EventDuration == 0 {
		c.Mock.EventDuration = def.Mock.EventDuration
	}
	if c.Mock.GasPeriod == 0 {
		c.Mock.GasPeriod = def.Mock.GasPeriod
	}

	if c.Transport == "" {
		c.Transport = def.Transport
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "gosense/" + c.Device.ID + "/telemetry"
	}
}
