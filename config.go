package terneo

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// DefaultPort is the device web server port.
	DefaultPort = 80

	// DefaultTemperatureScale is the raw-to-Celsius divisor used by
	// current firmware. Legacy firmware encodes hundredths instead.
	DefaultTemperatureScale = 16
	LegacyTemperatureScale  = 100
)

// Config defines runtime configuration for a single thermostat.
type Config struct {
	// SerialNumber is the device serial, sent in every command payload.
	SerialNumber string

	// Host is the device hostname or IP address.
	Host string

	// Port of the device web server. Defaults to 80.
	Port int

	// Username and Password enable HTTP basic auth. Both must be set
	// together or left empty together.
	Username string
	Password string

	// TemperatureScale is the divisor applied to raw temperature fields.
	// Defaults to 16; older firmware uses 100.
	TemperatureScale int

	// Logger receives request traces and redacted timeout warnings.
	// Defaults to a discard logger.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TemperatureScale == 0 {
		c.TemperatureScale = DefaultTemperatureScale
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.SerialNumber) == "" {
		return fmt.Errorf("terneo serial_number is required")
	}
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("terneo host is required")
	}
	if (c.Username == "") != (c.Password == "") {
		return ErrPartialCredentials
	}
	if c.TemperatureScale != DefaultTemperatureScale && c.TemperatureScale != LegacyTemperatureScale {
		return fmt.Errorf("terneo temperature_scale must be %d or %d", DefaultTemperatureScale, LegacyTemperatureScale)
	}
	return nil
}
