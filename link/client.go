package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quic-go/quic-go"

	"i4.energy/across/rsim/rsim"
	"i4.energy/across/rsim/sap"
)

var _ rsim.MessageHandler = (*Client)(nil)

// Client is the SIM client end of a link. It forwards outbound SAP messages
// to the server and hands inbound ones to a sink.
type Client struct {
	conn   *quic.Conn
	stream *quic.Stream
	logger *slog.Logger

	// writeMu serializes frames on the stream
	writeMu sync.Mutex
}

// Dial connects to the SIM server at addr and opens the message stream.
// The server sees the stream once the first message is written.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	tlsConfig := c.tlsConfig
	if tlsConfig == nil {
		tlsConfig = clientTLSConfig()
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, c.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("link: dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("link: open stream: %w", err)
	}

	return &Client{
		conn:   conn,
		stream: stream,
		logger: c.logger.With("component", "link", "remote", conn.RemoteAddr().String()),
	}, nil
}

// HandleMessage sends msg to the server. Write failures are logged; the
// session guard timer recovers a lost CONNECT_REQ and Receive reports the
// broken link.
func (c *Client) HandleMessage(msg []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := WriteFrame(c.stream, msg); err != nil {
		c.logger.Warn("Send failed", "msg", sap.Describe(msg), "error", err)
	}
}

// Receive reads server messages and passes each to sink until ctx is
// cancelled or the link fails. It returns ctx.Err() on cancellation.
func (c *Client) Receive(ctx context.Context, sink func(msg []byte)) error {
	stop := context.AfterFunc(ctx, func() {
		c.stream.CancelRead(0)
	})
	defer stop()

	for {
		msg, err := ReadFrame(c.stream)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("link: receive: %w", err)
		}
		sink(msg)
	}
}

// Close ends the stream and the connection.
func (c *Client) Close() error {
	return errors.Join(
		c.stream.Close(),
		c.conn.CloseWithError(0, "client closed"),
	)
}
