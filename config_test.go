package main

import (
	"flag"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig(t *testing.T) {
	newFlags := func(t *testing.T, args ...string) *flag.FlagSet {
		t.Helper()
		fs := flag.NewFlagSet("rsimd", flag.ContinueOnError)
		fs.String("bind-address", "", "")
		fs.String("serial-port", "", "")
		fs.Int("baud-rate", 0, "")
		fs.String("log-level", "", "")
		fs.Bool("trace", false, "")
		fs.String("source", "", "")
		fs.String("reader", "", "")
		fs.String("remote-address", "", "")
		fs.String("connect-timeout", "", "")
		if err := fs.Parse(args); err != nil {
			t.Fatalf("parse flags: %v", err)
		}
		return fs
	}

	defaults := Config{
		BindAddress:    "0.0.0.0:8080",
		SerialPort:     "/dev/ttyUSB0",
		BaudRate:       115200,
		LogLevel:       "info",
		Source:         SourcePCSC,
		ConnectTimeout: 2 * time.Second,
	}

	t.Run("Defaults", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults(), WithFlags(newFlags(t)))
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if diff := cmp.Diff(defaults, *config); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Environment overrides defaults", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyACM0")
		t.Setenv("MODEM_TRACE", "true")
		t.Setenv("SIM_SOURCE", "quic")
		t.Setenv("SIM_REMOTE_ADDRESS", "10.0.0.2:4433")
		t.Setenv("CONNECT_TIMEOUT", "500ms")

		config, err := LoadConfig(WithDefaults(), WithEnv())
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}

		want := defaults
		want.SerialPort = "/dev/ttyACM0"
		want.Trace = true
		want.Source = SourceQUIC
		want.RemoteAddress = "10.0.0.2:4433"
		want.ConnectTimeout = 500 * time.Millisecond
		if diff := cmp.Diff(want, *config); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Flags override environment", func(t *testing.T) {
		t.Setenv("BAUD_RATE", "9600")
		t.Setenv("SIM_READER", "from-env")

		fs := newFlags(t, "-baud-rate=57600", "-reader=Gemalto", "-connect-timeout=3s", "-trace")
		config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fs))
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}

		want := defaults
		want.BaudRate = 57600
		want.Reader = "Gemalto"
		want.ConnectTimeout = 3 * time.Second
		want.Trace = true
		if diff := cmp.Diff(want, *config); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Invalid values", func(t *testing.T) {
		tests := []struct {
			name string
			opts []ConfigOption
		}{
			{
				name: "unknown source",
				opts: []ConfigOption{WithDefaults(), WithFlags(newFlags(t, "-source=bluetooth"))},
			},
			{
				name: "quic without remote address",
				opts: []ConfigOption{WithDefaults(), WithFlags(newFlags(t, "-source=quic"))},
			},
			{
				name: "malformed connect timeout",
				opts: []ConfigOption{WithDefaults(), WithFlags(newFlags(t, "-connect-timeout=soon"))},
			},
			{
				name: "non-positive connect timeout",
				opts: []ConfigOption{WithDefaults(), WithFlags(newFlags(t, "-connect-timeout=0s"))},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := LoadConfig(tt.opts...); err == nil {
					t.Error("expected an error")
				}
			})
		}
	})
}
