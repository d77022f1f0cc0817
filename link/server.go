package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/quic-go/quic-go"
	"go.uber.org/atomic"

	"i4.energy/across/rsim/sap"
)

// Handler answers one SAP request with the messages to send back.
// *pcsc.Server implements it.
type Handler interface {
	Serve(req []byte) ([][]byte, error)
}

// Server accepts SIM client links and feeds their requests to a Handler.
// Only one client is served at a time since the Handler owns a single card;
// further connections are refused until the active one ends. If the Handler
// is an io.Closer it is closed whenever the active client goes away.
type Server struct {
	listener *quic.Listener
	handler  Handler
	logger   *slog.Logger

	busy   *atomic.Bool
	closed *atomic.Bool

	mu    sync.Mutex
	conns map[*quic.Conn]struct{}
	wg    sync.WaitGroup
}

// Listen starts a QUIC listener on addr.
func Listen(addr string, handler Handler, opts ...Option) (*Server, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	tlsConfig := c.tlsConfig
	if tlsConfig == nil {
		var err error
		tlsConfig, err = generateTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("link: generate TLS config: %w", err)
		}
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, c.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("link: listen on %s: %w", addr, err)
	}

	return &Server{
		listener: listener,
		handler:  handler,
		logger:   c.logger.With("component", "link"),
		busy:     atomic.NewBool(false),
		closed:   atomic.NewBool(false),
		conns:    make(map[*quic.Conn]struct{}),
	}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	defer s.wg.Wait()

	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.closed.Load() || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			s.logger.Warn("Accept failed", "error", err)
			continue
		}

		if !s.busy.CompareAndSwap(false, true) {
			s.logger.Warn("Link refused, SIM in use", "remote", conn.RemoteAddr().String())
			conn.CloseWithError(1, "sim in use")
			continue
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.busy.Store(false)
			defer s.track(conn, false)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn *quic.Conn) {
	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("SIM client linked")

	defer func() {
		conn.CloseWithError(0, "session ended")
		if closer, ok := s.handler.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("Handler close failed", "error", err)
			}
		}
		logger.Info("SIM client unlinked")
	}()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		logger.Debug("No stream accepted", "error", err)
		return
	}
	stop := context.AfterFunc(ctx, func() {
		conn.CloseWithError(0, "server shutting down")
	})
	defer stop()

	for {
		req, err := ReadFrame(stream)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("Link read ended", "error", err)
			}
			return
		}

		replies, err := s.handler.Serve(req)
		if err != nil {
			logger.Warn("Request refused", "msg", sap.Describe(req), "error", err)
		}
		for _, reply := range replies {
			if err := WriteFrame(stream, reply); err != nil {
				logger.Warn("Reply failed", "msg", sap.Describe(reply), "error", err)
				return
			}
		}
	}
}

func (s *Server) track(conn *quic.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Close stops accepting and drops active links.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.CloseWithError(0, "server closed")
	}
	s.mu.Unlock()

	return err
}
