package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// RedisURL selects the backing store; empty means in-memory
	RedisURL string `yaml:"redis_url"`
	// MQTTBroker is the broker fixes are published to; empty disables publishing
	MQTTBroker string `yaml:"mqtt_broker"`
	// PhoneNumber is the default alert recipient
	PhoneNumber string `yaml:"phone_number"`
	// SMSInterval is the minimum delay between alerts, in seconds
	SMSInterval uint32 `yaml:"sms_interval"`
	// GPSMaxAttempts bounds fix-query retries per acquisition
	GPSMaxAttempts int `yaml:"gps_max_attempts"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.SMSInterval = 300
		c.GPSMaxAttempts = 30
		return nil
	}
}

// WithFile loads configuration from a YAML file. An empty path is a
// no-op so the flag can stay optional.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if url := os.Getenv("REDIS_URL"); url != "" {
			c.RedisURL = url
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MQTTBroker = broker
		}

		if number := os.Getenv("PHONE_NUMBER"); number != "" {
			c.PhoneNumber = number
		}

		if interval := os.Getenv("SMS_INTERVAL"); interval != "" {
			if i, err := strconv.ParseUint(interval, 10, 32); err == nil {
				c.SMSInterval = uint32(i)
			}
		}

		if attempts := os.Getenv("GPS_MAX_ATTEMPTS"); attempts != "" {
			if a, err := strconv.Atoi(attempts); err == nil {
				c.GPSMaxAttempts = a
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "redis-url":
				c.RedisURL = f.Value.String()
			case "mqtt-broker":
				c.MQTTBroker = f.Value.String()
			case "phone-number":
				c.PhoneNumber = f.Value.String()
			case "sms-interval":
				if i, err := strconv.ParseUint(f.Value.String(), 10, 32); err == nil {
					c.SMSInterval = uint32(i)
				}
			case "gps-max-attempts":
				if a, err := strconv.Atoi(f.Value.String()); err == nil {
					c.GPSMaxAttempts = a
				}
			}

		})
		return nil
	}

}
