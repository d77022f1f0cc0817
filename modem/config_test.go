package modem_test

import (
	"log/slog"
	"testing"
	"time"

	"i4.energy/across/rsim/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})
}

func TestConfigDefaults(t *testing.T) {
	config, err := modem.NewConfigBuilder().
		WithDialer(modem.TestDialer{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	if config.ATTimeout != 5*time.Second {
		t.Errorf("expected 5s AT timeout, got %v", config.ATTimeout)
	}
	if config.InitTimeout != 30*time.Second {
		t.Errorf("expected 30s init timeout, got %v", config.InitTimeout)
	}
	if config.Logger == nil {
		t.Error("expected default logger")
	}
	if config.Trace {
		t.Error("trace should be off by default")
	}
}

func TestConfigOverrides(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	config, err := modem.NewConfigBuilder().
		WithDialer(modem.TestDialer{}).
		WithLogger(logger).
		WithTrace(true).
		WithATTimeout(time.Second).
		WithInitTimeout(2 * time.Second).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	if config.Logger != logger {
		t.Error("logger not applied")
	}
	if !config.Trace {
		t.Error("trace not applied")
	}
	if config.ATTimeout != time.Second || config.InitTimeout != 2*time.Second {
		t.Errorf("timeouts not applied: %v, %v", config.ATTimeout, config.InitTimeout)
	}
}
