// Command sapserver exposes a PC/SC smart card reader as a remote SIM server.
// rsimd connects to it over QUIC when started with -source=quic.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"i4.energy/across/rsim/link"
	"i4.energy/across/rsim/pcsc"
)

func main() {
	listenAddress := flag.String("listen-address", "0.0.0.0:4433", "QUIC address to accept SIM clients on")
	readerName := flag.String("reader", "", "PC/SC reader name (first reader if empty)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	reader, err := pcsc.OpenReader(*readerName)
	if err != nil {
		logger.Error("Failed to open card reader", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	cardServer := pcsc.NewServer(reader, pcsc.WithLogger(logger))

	server, err := link.Listen(*listenAddress, cardServer, link.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to start listener", "error", err)
		reader.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting SAP server", "address", server.Addr().String(), "reader", reader.Name())

	go func() {
		<-ctx.Done()
		logger.Info("Received shutdown signal")
		server.Close()
	}()

	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("SAP server failed", "error", err)
	}

	if err := cardServer.Close(); err != nil {
		logger.Warn("Failed to power down card", "error", err)
	}
}
