package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"strobelink/host/serial"
)

// Config is the host tools' configuration file.
type Config struct {
	Serial SerialConfig `json:"serial"`
	MQTT   MQTTConfig   `json:"mqtt"`

	// ReplyTimeoutMS bounds each request to the controller.
	ReplyTimeoutMS int `json:"reply_timeout_ms"`
}

// SerialConfig selects the controller's console port.
type SerialConfig struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud"`
	ReadTimeoutMS int    `json:"read_timeout_ms"`
}

// MQTTConfig configures the status bridge.
type MQTTConfig struct {
	Broker         string `json:"broker"`
	ClientID       string `json:"client_id"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	TopicPrefix    string `json:"topic_prefix"`
	QoS            byte   `json:"qos"`
	PollIntervalMS int    `json:"poll_interval_ms"`
}

// LoadConfig parses a JSON configuration and fills in defaults.
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

// LoadFile reads a configuration file. A missing path yields the defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used without a file.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	if config.Serial.Device == "" {
		config.Serial.Device = "/dev/ttyACM0"
	}
	if config.Serial.Baud == 0 {
		config.Serial.Baud = serial.DefaultBaud
	}
	if config.Serial.ReadTimeoutMS == 0 {
		config.Serial.ReadTimeoutMS = serial.DefaultReadTimeout
	}
	if config.ReplyTimeoutMS == 0 {
		config.ReplyTimeoutMS = 1500
	}

	if config.MQTT.Broker == "" {
		config.MQTT.Broker = "tcp://localhost:1883"
	}
	if config.MQTT.TopicPrefix == "" {
		config.MQTT.TopicPrefix = "strobelink"
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "strobelink-" + uuid.NewString()
	}
	if config.MQTT.PollIntervalMS == 0 {
		config.MQTT.PollIntervalMS = 1000
	}
	if config.MQTT.QoS > 2 {
		config.MQTT.QoS = 1
	}
}

// SerialPort returns the port settings for host/serial.
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeoutMS,
	}
}

// ReplyTimeout returns the request deadline.
func (c *Config) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutMS) * time.Millisecond
}

// PollInterval returns how often the bridge publishes status.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.MQTT.PollIntervalMS) * time.Millisecond
}
