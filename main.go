package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/rsim/link"
	"i4.energy/across/rsim/modem"
	"i4.energy/across/rsim/pcsc"
	"i4.energy/across/rsim/rsim"
)

func main() {
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Bool("trace", false, "Log all modem traffic at debug level")
	flag.String("source", SourcePCSC, "Where the SIM lives (pcsc, quic)")
	flag.String("reader", "", "PC/SC reader name for the pcsc source (first reader if empty)")
	flag.String("remote-address", "", "sapserver address for the quic source")
	flag.Duration("connect-timeout", 2*time.Second, "Interval between SAP connection attempts")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(5 * time.Second).
		WithInitTimeout(30 * time.Second).
		WithLogger(logger).
		WithTrace(config.Trace).
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			Mode:     &serial.Mode{BaudRate: config.BaudRate},
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	service := rsim.New(m,
		rsim.WithLogger(logger),
		rsim.WithCapability(m),
		rsim.WithConnectTimeout(config.ConnectTimeout),
	)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// errors after shutdown has begun are expected
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Component stopped", "component", name, "error", err)
				stop()
			}
		}()
	}

	run("modem", m.Loop)
	run("rsim", service.Run)

	handler, closeSource, err := openSource(ctx, config, service, logger, run)
	if err != nil {
		logger.Error("Failed to open SIM source", "source", config.Source, "error", err)
		stop()
		m.Close()
		wg.Wait()
		os.Exit(1)
	}

	if _, err := service.AddMessageHandler(ctx, handler); err != nil {
		logger.Error("Failed to register SIM source", "error", err)
		stop()
	}

	run("urc", func(ctx context.Context) error {
		return m.Serve(ctx, service)
	})

	logger.Info("Starting remote SIM daemon", "source", config.Source, "serial_port", config.SerialPort)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:  logger.With("component", "server"),
			Session: service,
		},
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Closing SIM source")
	if err := closeSource(); err != nil {
		logger.Error("Failed to close SIM source", "error", err)
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}

	wg.Wait()
}

// openSource connects to the configured SIM and returns the handler the
// session sends its requests to, together with a function releasing it.
func openSource(
	ctx context.Context,
	config *Config,
	sink MessageSink,
	logger *slog.Logger,
	run func(string, func(context.Context) error),
) (rsim.MessageHandler, func() error, error) {
	switch config.Source {
	case SourceQUIC:
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := link.Dial(dialCtx, config.RemoteAddress, link.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		receive := forward(sink, logger.With("component", "link"))
		run("link", func(ctx context.Context) error {
			return client.Receive(ctx, receive)
		})
		return client, client.Close, nil

	default:
		reader, err := pcsc.OpenReader(config.Reader)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using card reader", "reader", reader.Name())

		cardServer := pcsc.NewServer(reader, pcsc.WithLogger(logger))
		bridge := newCardBridge(cardServer, sink, logger)
		run("bridge", func(ctx context.Context) error {
			bridge.Run(ctx)
			return nil
		})
		return bridge, closeAll(cardServer, reader), nil
	}
}

// closeAll closes each closer in order and joins the errors.
func closeAll(closers ...io.Closer) func() error {
	return func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}
}
