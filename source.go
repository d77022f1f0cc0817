package main

import (
	"context"
	"log/slog"

	"i4.energy/across/rsim/link"
	"i4.energy/across/rsim/rsim"
	"i4.energy/across/rsim/sap"
)

// MessageSink accepts SAP messages coming back from the SIM server.
// *rsim.Service implements it.
type MessageSink interface {
	SendMessage(msg []byte, cb rsim.Callback) error
}

// forward returns a function handing server messages to sink. Rejected and
// failed messages are logged.
func forward(sink MessageSink, logger *slog.Logger) func(msg []byte) {
	callback := func(id sap.MessageID, err error) {
		if err != nil {
			logger.Warn("SAP message not applied", "msg", id, "error", err)
		}
	}
	return func(msg []byte) {
		if err := sink.SendMessage(msg, callback); err != nil {
			logger.Warn("SAP message rejected", "msg", sap.Describe(msg), "error", err)
		}
	}
}

// cardBridge connects the session to a card server running in this
// process. Requests are served on the bridge's own goroutine so the session
// dispatcher never waits on the card.
type cardBridge struct {
	server   link.Handler
	deliver  func(msg []byte)
	logger   *slog.Logger
	requests chan []byte
	done     chan struct{}
}

var _ rsim.MessageHandler = (*cardBridge)(nil)

func newCardBridge(server link.Handler, sink MessageSink, logger *slog.Logger) *cardBridge {
	logger = logger.With("component", "bridge")
	return &cardBridge{
		server:   server,
		deliver:  forward(sink, logger),
		logger:   logger,
		requests: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// HandleMessage queues a request for the card server. Requests arriving
// after Run has returned are dropped.
func (b *cardBridge) HandleMessage(msg []byte) {
	select {
	case b.requests <- append([]byte(nil), msg...):
	case <-b.done:
		b.logger.Warn("Card bridge stopped, request dropped", "msg", sap.Describe(msg))
	}
}

// Run serves queued requests until ctx is cancelled.
func (b *cardBridge) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-b.requests:
			replies, err := b.server.Serve(req)
			if err != nil {
				b.logger.Debug("Card server refused request", "msg", sap.Describe(req), "error", err)
			}
			for _, reply := range replies {
				b.deliver(reply)
			}
		}
	}
}
