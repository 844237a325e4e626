package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr   = ":9161"
	defaultPollInterval = 30
)

// FileConfig is the YAML configuration for the exporter.
type FileConfig struct {
	Device     DeviceConfig  `yaml:"device"`
	ListenAddr string        `yaml:"listen_addr"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	Logging    LoggingConfig `yaml:"logging"`
}

// DeviceConfig identifies the thermostat to poll.
type DeviceConfig struct {
	SerialNumber     string `yaml:"serial_number"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	TemperatureScale int    `yaml:"temperature_scale"`
}

// MQTTConfig enables the optional MQTT bridge.
type MQTTConfig struct {
	Enabled             bool   `yaml:"enabled"`
	BrokerURL           string `yaml:"broker_url"`
	ClientID            string `yaml:"client_id"`
	Username            string `yaml:"username"`
	Password            string `yaml:"password"`
	TopicPrefix         string `yaml:"topic_prefix"`
	QoS                 int    `yaml:"qos"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func loadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.MQTT.PollIntervalSeconds == 0 {
		cfg.MQTT.PollIntervalSeconds = defaultPollInterval
	}
}

func validate(cfg FileConfig) error {
	if strings.TrimSpace(cfg.Device.SerialNumber) == "" {
		return fmt.Errorf("device.serial_number is required")
	}
	if strings.TrimSpace(cfg.Device.Host) == "" {
		return fmt.Errorf("device.host is required")
	}
	if cfg.MQTT.Enabled && strings.TrimSpace(cfg.MQTT.BrokerURL) == "" {
		return fmt.Errorf("mqtt.broker_url is required when mqtt is enabled")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2")
	}
	return nil
}
