package pcsc

import "log/slog"

// Message size limits the server negotiates within.
const (
	DefaultMaxMsgSize = 276
	DefaultMinMsgSize = 200
)

type config struct {
	logger     *slog.Logger
	maxMsgSize uint16
	minMsgSize uint16
}

// Option configures a Server.
type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMsgSizeLimits sets the range of client proposals the server accepts.
// A proposal above max is answered with max as counter-proposal.
func WithMsgSizeLimits(min, max uint16) Option {
	return func(c *config) {
		if min > 0 && min <= max {
			c.minMsgSize = min
			c.maxMsgSize = max
		}
	}
}
