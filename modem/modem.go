package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/atomic"

	"i4.energy/across/rsim/at"
)

// Modem represents a cellular modem exposing the remote SIM AT command set.
// It provides thread-safe access to the modem through a centralized event
// loop that handles all transport I/O.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// scanner tokenizes transport input; shared by init and Loop so that
	// bytes buffered during init are not lost
	scanner *bufio.Scanner
	logger  *slog.Logger
	// closed indicates if the modem has been shut down
	closed *atomic.Bool
	// loopRunning indicates if the Loop is currently running
	loopRunning *atomic.Bool
	// atTimeout is the default timeout for AT command responses
	atTimeout time.Duration

	// urcChan receives Unsolicited Result Codes from the modem
	urcChan chan string
	// commands queues AT command requests for the Loop to process
	commands chan *commandRequest

	// loopCtx controls the lifecycle of the main event loop
	loopCtx    context.Context
	loopCancel context.CancelFunc
}

// commandRequest represents an AT command request to be executed by the Loop.
type commandRequest struct {
	// cmd is the AT command string to send to the modem
	cmd string
	// respChan receives the command response from the Loop
	respChan chan commandResponse
	// ctx provides timeout and cancellation control for the command
	ctx context.Context
}

// commandResponse contains the result of an AT command execution.
type commandResponse struct {
	// response contains the complete response text from the modem
	response string
	// err contains any error that occurred during command execution
	err error
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection, puts the modem into remote SIM
// reporting mode and prepares the event loop context.
//
// Returns an error if the transport connection or modem initialization
// fails.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	logger := config.Logger.With("component", "modem")
	if transport != nil && config.Trace {
		transport = NewTracedTransport(transport, logger)
	}

	m := &Modem{
		transport:   transport,
		logger:      logger,
		closed:      atomic.NewBool(false),
		loopRunning: atomic.NewBool(false),
		atTimeout:   config.ATTimeout,
		urcChan:     make(chan string, 100), // Buffered to prevent blocking on URCs
		// No queue for commands
		commands: make(chan *commandRequest),
	}
	if transport != nil {
		m.scanner = bufio.NewScanner(transport)
		m.scanner.Split(at.Splitter)
	}

	// Prepare context for Loop (but don't start it yet)
	m.loopCtx, m.loopCancel = context.WithCancel(ctx)

	initCtx, cancel := context.WithTimeout(ctx, config.InitTimeout)
	defer cancel()

	if err := m.init(initCtx); err != nil {
		m.loopCancel()
		if m.transport != nil {
			m.transport.Close()
		}
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// Loop is the main event loop that handles all transport I/O operations.
// It must be called exactly once after New() and before any other modem operations.
// The Loop coordinates all communication with the modem hardware:
//
// 1. Processes command requests from exec() calls
// 2. Writes AT commands to the transport
// 3. Reads and parses responses from the transport
// 4. Dispatches URCs (Unsolicited Result Codes) to subscribers
// 5. Returns command responses to waiting exec() calls
//
// The Loop runs until the provided context is cancelled or Close is called.
// It's the ONLY goroutine that reads from the transport, preventing race
// conditions and ensuring URCs are never lost.
//
// Usage:
//
//	modem, err := New(ctx, config)
//	if err != nil { return err }
//
//	// Start the loop (typically in a goroutine)
//	go modem.Loop(ctx)
//
//	// Now notifier calls will work
//	err = modem.NotifyStatus(ctx, rsim.SimAvailable)
func (m *Modem) Loop(ctx context.Context) error {
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.loopRunning.Store(false)

	if m.transport == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.loopCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	// Channels for tokens and errors from the scanner goroutine
	tokens := make(chan string, 10)
	scanErrs := make(chan error, 1)

	// Start goroutine to read tokens from transport
	go func() {
		defer close(tokens)
		for m.scanner.Scan() {
			token := m.scanner.Text()
			if token != "" {
				select {
				case tokens <- token:
				case <-ctx.Done():
					return
				}
			}
		}
		// Scanner stopped - check if there was an error
		if err := m.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("%w: %v", ErrLineTooLong, err)
			}
			select {
			case scanErrs <- err:
			case <-ctx.Done():
			}
		}
	}()

	// Current command being processed
	var currentCmd *commandRequest
	var currentLines []string

	finish := func(resp commandResponse) {
		if currentCmd != nil {
			currentCmd.respChan <- resp
		}
		currentCmd = nil
		currentLines = nil
	}

	for {
		// One command in flight: stop accepting requests until it completes
		// or its context expires.
		commands := m.commands
		var cmdDone <-chan struct{}
		if currentCmd != nil {
			commands = nil
			cmdDone = currentCmd.ctx.Done()
		}

		select {
		case <-ctx.Done():
			finish(commandResponse{err: ctx.Err()})
			return ctx.Err()

		case <-cmdDone:
			finish(commandResponse{err: fmt.Errorf("command timeout: %w", currentCmd.ctx.Err())})

		case req := <-commands:
			if req.ctx.Err() != nil {
				req.respChan <- commandResponse{err: fmt.Errorf("command timeout: %w", req.ctx.Err())}
				continue
			}
			currentCmd = req

			// Write the AT command to the transport
			wire := strings.TrimSpace(req.cmd) + "\r"
			if _, err := m.transport.Write([]byte(wire)); err != nil {
				finish(commandResponse{err: fmt.Errorf("write command %q: %w", req.cmd, err)})
				continue
			}

		case token, ok := <-tokens:
			if !ok {
				// Token channel closed - scanner stopped. A pending read
				// error takes precedence over EOF.
				select {
				case err := <-scanErrs:
					finish(commandResponse{err: fmt.Errorf("read error: %w", err)})
					return fmt.Errorf("scanner error: %w", err)
				default:
				}
				finish(commandResponse{err: io.EOF})
				return io.EOF
			}

			switch at.Classify(token) {
			case at.TypeURC:
				// URCs can arrive at any time, even during command execution
				select {
				case m.urcChan <- token:
				default:
					m.logger.Warn("URC dropped, channel full", "urc", token)
				}

			case at.TypeFinal:
				// Final response (OK, ERROR, +CME ERROR)
				if currentCmd != nil {
					currentLines = append(currentLines, token)
					response := strings.Join(currentLines, "\n")

					if token == at.OK {
						finish(commandResponse{response: response})
					} else {
						finish(commandResponse{response: response, err: errors.New(token)})
					}
				}
				// If no current command, ignore the final response (orphaned)

			case at.TypeData:
				// Intermediate data response (e.g. +RSIMCAP: 1,1)
				if currentCmd != nil {
					currentLines = append(currentLines, token)
				}
			}
		}
	}
}

// URC returns a read-only channel that receives Unsolicited Result Codes.
// The channel is buffered, but may drop some URC if not consumed fast enough.
func (m *Modem) URC() <-chan string {
	return m.urcChan
}

// Close shuts down the modem and releases all resources.
// It stops the event loop, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}

	if m.loopCancel != nil {
		m.loopCancel()
	}

	if m.transport != nil {
		return m.transport.Close()
	}

	return nil
}

// init performs the initial setup sequence for the modem hardware.
// This method is called during New() and must complete successfully
// before the modem can be used.
func (m *Modem) init(ctx context.Context) error {
	// 1. Wake-up / sanity check
	if err := m.expectOkDirect(ctx, at.CmdAt); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	if err := m.expectOkDirect(ctx, at.CmdEchoOff); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}

	if err := m.expectOkDirect(ctx, at.CmdVerboseErrors); err != nil {
		return fmt.Errorf("could not enable verbose errors: %w", err)
	}

	// 4. Remote SIM action and APDU reporting
	if err := m.expectOkDirect(ctx, at.CmdEnableRSIM); err != nil {
		return fmt.Errorf("enable remote SIM reporting: %w", err)
	}

	return nil
}

// exec sends an AT command to the modem and waits for the response.
// This method coordinates with the Loop() to ensure thread-safe command execution.
// The Loop() must be running before calling this method.
func (m *Modem) exec(ctx context.Context, cmd string) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}

	if m.transport == nil {
		return "", ErrNotInitialized
	}

	// Apply per-command timeout if context has none
	if _, ok := ctx.Deadline(); !ok && m.atTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.atTimeout)
		defer cancel()
	}

	req := &commandRequest{
		cmd:      cmd,
		respChan: make(chan commandResponse, 1), // Buffered to prevent blocking
		ctx:      ctx,
	}

	select {
	case m.commands <- req:
	case <-m.loopCtx.Done():
		return "", ErrAlreadyClosed
	case <-ctx.Done():
		return "", fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	}

	select {
	case resp := <-req.respChan:
		return resp.response, resp.err
	case <-ctx.Done():
		return "", fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

// expectOk runs cmd through the Loop and discards the response body.
func (m *Modem) expectOk(ctx context.Context, cmd string) error {
	if _, err := m.exec(ctx, cmd); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

// execDirect executes an AT command directly on the transport without
// using the channel mechanism and handles the complete request-response
// cycle including timeout management. It is used during modem initialization
// when not yet accepting commands.
//
// WARNING: This method should only be used during initialization.
// Use exec() for normal operations.
func (m *Modem) execDirect(ctx context.Context, cmd string) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}
	if m.transport == nil {
		return "", ErrNotInitialized
	}

	if _, ok := ctx.Deadline(); !ok && m.atTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.atTimeout)
		defer cancel()
	}

	wire := strings.TrimSpace(cmd) + "\r"
	if _, err := m.transport.Write([]byte(wire)); err != nil {
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}

	var lines []string

	for {
		select {
		case <-ctx.Done():
			return strings.Join(lines, "\n"), ctx.Err()
		default:
		}
		if !m.scanner.Scan() {
			if err := m.scanner.Err(); err != nil {
				return strings.Join(lines, "\n"), fmt.Errorf("read error: %w", err)
			}
			return strings.Join(lines, "\n"), io.EOF
		}

		token := m.scanner.Text()
		if token == "" || token == strings.TrimSpace(cmd) {
			// blank separator or command echo
			continue
		}

		switch at.Classify(token) {
		case at.TypeFinal:
			lines = append(lines, token)

			response := strings.Join(lines, "\n")
			if token == at.OK {
				return response, nil
			}
			return response, errors.New(token)

		case at.TypeData:
			lines = append(lines, token)

		case at.TypeURC:
			m.logger.Debug("URC ignored during init", "urc", token)
		}
	}
}

// expectOkDirect executes an AT command and validates that the response
// contains "OK". Used during initialization for basic configuration commands.
func (m *Modem) expectOkDirect(ctx context.Context, cmd string) error {
	resp, err := m.execDirect(ctx, cmd)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, at.OK) {
		return fmt.Errorf("unexpected response: %q", resp)
	}
	return nil
}
