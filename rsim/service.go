// Package rsim implements the client side of the SIM Access Profile: it
// proxies a remote SIM card to the local modem.
//
// All session state is owned by the goroutine running Service.Run. Public
// methods may be called from any goroutine; they queue work onto the loop
// and, where a verdict is needed, wait for it.
package rsim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/atomic"

	"i4.energy/across/rsim/sap"
)

const (
	eventConnect     = "connect"
	eventEstablished = "established"
	eventDrop        = "drop"
)

// Service is a remote SIM session bound to one modem notifier.
type Service struct {
	// notifier receives modem-facing notifications
	notifier Notifier
	// config contains the service configuration
	config Config
	// logger is config.Logger tagged with the component name
	logger *slog.Logger

	// Loop-owned session state. Only touched by the goroutine running Run.

	// session holds the top-level State
	session *fsm.FSM
	// subState is meaningful only when connected
	subState SubState
	// maxMsgSize is the negotiated maximum message size
	maxMsgSize uint16
	// sizeAdopted is set once a server size proposal has been taken
	sizeAdopted bool
	// handler is the current registration, nil when none
	handler *HandlerRef
	// guard is the connection guard timer; stopped when not connecting
	guard *time.Timer
	// retries counts CONNECT_REQ resends since the last connect request
	retries int
	// later holds work deferred until the current task returns
	later []func(context.Context)

	// msgSize mirrors maxMsgSize for synchronous validation in SendMessage
	msgSize *atomic.Uint32
	// running is set once Run has been entered
	running *atomic.Bool

	// tasks queues work for the loop
	tasks chan task
	// outbox queues messages for the dispatcher goroutine
	outbox chan outbound
	// done is closed when Run returns
	done chan struct{}
}

// task is work queued for the loop. abort, if set, runs instead of run when
// the loop stops before reaching it.
type task struct {
	run   func(context.Context)
	abort func()
}

// outbound is a message bound for the handler registered when it was sent.
type outbound struct {
	handler MessageHandler
	msg     []byte
}

// New creates a Service. Run must be called before any other method makes
// progress.
func New(notifier Notifier, opts ...Option) *Service {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	guard := time.NewTimer(time.Hour)
	guard.Stop()

	s := &Service{
		notifier:   notifier,
		config:     config,
		logger:     config.Logger.With("component", "rsim"),
		maxMsgSize: MaxMsgSize,
		guard:      guard,
		msgSize:    atomic.NewUint32(MaxMsgSize),
		running:    atomic.NewBool(false),
		tasks:      make(chan task, 128),
		outbox:     make(chan outbound, 32),
		done:       make(chan struct{}),
	}

	s.session = fsm.NewFSM(
		string(StateNotConnected),
		fsm.Events{
			{Name: eventConnect, Src: []string{string(StateNotConnected)}, Dst: string(StateConnecting)},
			{Name: eventEstablished, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventDrop, Src: []string{string(StateConnecting), string(StateConnected)}, Dst: string(StateNotConnected)},
		},
		fsm.Callbacks{
			"enter_" + string(StateNotConnected): func(_ context.Context, e *fsm.Event) {
				s.resetSession()
				s.logger.Info("Session closed", "from", e.Src)
			},
			"enter_" + string(StateConnected): func(_ context.Context, _ *fsm.Event) {
				s.logger.Info("Session established", "maxMsgSize", s.maxMsgSize)
			},
		},
	)

	return s
}

// Run is the event loop owning the session. It processes queued work and
// guard timer expiries in order until ctx is cancelled. Outbound messages are
// delivered to the registered handler by a companion goroutine.
//
// Run must be called exactly once; a second concurrent call returns
// ErrLoopRunning and a call after Run has returned returns ErrClosed.
// Messages still queued when ctx is cancelled have their callback invoked
// with ErrClosed.
func (s *Service) Run(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}

	go s.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			s.guard.Stop()
			close(s.done)
			s.drain()
			return ctx.Err()

		case t := <-s.tasks:
			t.run(ctx)
			s.runLater(ctx)

		case <-s.guard.C:
			s.onGuardExpiry(ctx)
			s.runLater(ctx)
		}
	}
}

// dispatch hands outbound messages to their handler in send order.
func (s *Service) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-s.outbox:
			out.handler.HandleMessage(out.msg)
		}
	}
}

// exec runs fn on the loop and waits for its result.
func (s *Service) exec(ctx context.Context, fn func(context.Context) error) error {
	if s.closed() {
		return ErrClosed
	}

	resp := make(chan error, 1)
	t := task{run: func(loopCtx context.Context) {
		resp <- fn(loopCtx)
	}}

	select {
	case s.tasks <- t:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("request cancelled before queueing: %w", ctx.Err())
	}

	select {
	case err := <-resp:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("request timeout: %w", ctx.Err())
	}
}

// post queues t on the loop without waiting. Once post returns nil, exactly
// one of t.run and t.abort is called.
func (s *Service) post(t task) error {
	if s.closed() {
		return ErrClosed
	}
	select {
	case s.tasks <- t:
		// the loop may have drained the queue before t landed in it
		if s.closed() {
			s.drain()
		}
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// drain aborts every queued task. It only runs once done is closed.
func (s *Service) drain() {
	for {
		select {
		case t := <-s.tasks:
			if t.abort != nil {
				t.abort()
			}
		default:
			return
		}
	}
}

func (s *Service) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// deferTask queues fn to run on the loop after the current task.
func (s *Service) deferTask(fn func(context.Context)) {
	s.later = append(s.later, fn)
}

func (s *Service) runLater(ctx context.Context) {
	for len(s.later) > 0 {
		fn := s.later[0]
		s.later = s.later[1:]
		fn(ctx)
	}
}

// Snapshot returns the current session state.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.exec(ctx, func(context.Context) error {
		snap = Snapshot{
			State:             s.state(),
			SubState:          s.subState,
			MaxMsgSize:        s.maxMsgSize,
			HandlerRegistered: s.handler != nil,
		}
		return nil
	})
	return snap, err
}

// MaxMessageSize returns the currently negotiated maximum message size.
func (s *Service) MaxMessageSize() int {
	return int(s.msgSize.Load())
}

func (s *Service) state() State {
	return State(s.session.Current())
}

func (s *Service) fire(ctx context.Context, event string) {
	err := s.session.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		s.logger.Error("Session transition failed", "event", event, "error", err)
	}
}

// resetSession restores the defaults of a closed session.
func (s *Service) resetSession() {
	s.subState = SubIdle
	s.setMaxMsgSize(MaxMsgSize)
	s.sizeAdopted = false
	s.guard.Stop()
	s.retries = 0
}

func (s *Service) setMaxMsgSize(size uint16) {
	s.maxMsgSize = size
	s.msgSize.Store(uint32(size))
}

// send queues msg for the registered handler.
func (s *Service) send(ctx context.Context, msg []byte) error {
	if s.handler == nil {
		return ErrNoHandler
	}
	s.logger.Debug("SAP message sent", "msg", sap.Describe(msg))
	select {
	case s.outbox <- outbound{handler: s.handler.handler, msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
