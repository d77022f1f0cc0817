package rsim

import (
	"log/slog"
	"time"
)

// DefaultConnectTimeout is the connection guard interval.
const DefaultConnectTimeout = 2 * time.Second

// Config holds the service configuration.
type Config struct {
	// Logger receives protocol traces and notifier failures
	Logger *slog.Logger

	// Capability gates the availability notification (optional, nil means
	// always supported)
	Capability Capability

	// ConnectTimeout is how long to wait for CONNECT_RESP before resending
	// CONNECT_REQ
	ConnectTimeout time.Duration

	// ConnectRetryLimit bounds the number of CONNECT_REQ resends. Zero
	// retries forever.
	ConnectRetryLimit int
}

func defaultConfig() Config {
	return Config{
		Logger:         slog.Default(),
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Option is a functional option for configuring the Service.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithCapability sets the capability check run before the availability
// notification.
func WithCapability(capability Capability) Option {
	return func(c *Config) {
		c.Capability = capability
	}
}

// WithConnectTimeout sets the connection guard interval.
//
// Example:
//
//	svc := rsim.New(notifier, rsim.WithConnectTimeout(5*time.Second))
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ConnectTimeout = timeout
		}
	}
}

// WithConnectRetryLimit bounds how many times CONNECT_REQ is resent on guard
// expiry. Once exhausted the session drops to NotConnected and the modem is
// told there is no link. Zero, the default, retries forever.
func WithConnectRetryLimit(limit int) Option {
	return func(c *Config) {
		if limit >= 0 {
			c.ConnectRetryLimit = limit
		}
	}
}
