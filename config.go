package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Sources of the remote SIM card.
const (
	// SourcePCSC serves the SIM from a card reader attached to this host
	SourcePCSC = "pcsc"
	// SourceQUIC links to a sapserver instance over the network
	SourceQUIC = "quic"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// Trace logs every byte exchanged with the modem at debug level
	Trace bool
	// Source selects where the SIM lives, SourcePCSC or SourceQUIC
	Source string
	// Reader is the PC/SC reader name for SourcePCSC; empty picks the first one
	Reader string
	// RemoteAddress is the sapserver address for SourceQUIC (e.g. "10.0.0.2:4433")
	RemoteAddress string
	// ConnectTimeout is the interval between CONNECT_REQ attempts
	ConnectTimeout time.Duration
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

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Source {
	case SourcePCSC:
	case SourceQUIC:
		if c.RemoteAddress == "" {
			return fmt.Errorf("source %q requires a remote address", c.Source)
		}
	default:
		return fmt.Errorf("unknown SIM source %q", c.Source)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	return nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.Source = SourcePCSC
		c.ConnectTimeout = 2 * time.Second
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

		if trace := os.Getenv("MODEM_TRACE"); trace != "" {
			if t, err := strconv.ParseBool(trace); err == nil {
				c.Trace = t
			}
		}

		if source := os.Getenv("SIM_SOURCE"); source != "" {
			c.Source = source
		}

		if reader := os.Getenv("SIM_READER"); reader != "" {
			c.Reader = reader
		}

		if remote := os.Getenv("SIM_REMOTE_ADDRESS"); remote != "" {
			c.RemoteAddress = remote
		}

		if timeout := os.Getenv("CONNECT_TIMEOUT"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("CONNECT_TIMEOUT: %w", err)
			}
			c.ConnectTimeout = d
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
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
			case "trace":
				if t, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.Trace = t
				}
			case "source":
				c.Source = f.Value.String()
			case "reader":
				c.Reader = f.Value.String()
			case "remote-address":
				c.RemoteAddress = f.Value.String()
			case "connect-timeout":
				d, parseErr := time.ParseDuration(f.Value.String())
				if parseErr != nil {
					err = fmt.Errorf("-connect-timeout: %w", parseErr)
					return
				}
				c.ConnectTimeout = d
			}
		})
		return err
	}
}
