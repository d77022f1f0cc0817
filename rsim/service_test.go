package rsim_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	gomock "go.uber.org/mock/gomock"

	"i4.energy/across/rsim/rsim"
	"i4.energy/across/rsim/sap"
)

const waitTimeout = time.Second

// harness runs a Service loop and records the messages it sends.
type harness struct {
	t        *testing.T
	ctx      context.Context
	svc      *rsim.Service
	notifier *rsim.MockNotifier
	sent     chan []byte
	ref      *rsim.HandlerRef
}

func newHarness(t *testing.T, opts ...rsim.Option) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	notifier := rsim.NewMockNotifier(ctrl)

	opts = append([]rsim.Option{rsim.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	svc := rsim.New(notifier, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errs
	})

	return &harness{
		t:        t,
		ctx:      context.Background(),
		svc:      svc,
		notifier: notifier,
		sent:     make(chan []byte, 16),
	}
}

func (h *harness) handler() rsim.MessageHandler {
	return rsim.MessageHandlerFunc(func(msg []byte) {
		h.sent <- msg
	})
}

func (h *harness) register() {
	h.t.Helper()
	h.notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimAvailable).Return(nil)
	ref, err := h.svc.AddMessageHandler(h.ctx, h.handler())
	if err != nil {
		h.t.Fatalf("AddMessageHandler: %v", err)
	}
	h.ref = ref
}

// connect registers a handler and completes the handshake.
func (h *harness) connect() {
	h.t.Helper()
	h.register()
	h.action(rsim.ActionConnect)
	h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))
	if err := h.deliver(sap.BuildConnectResp(sap.ConnectionOK, 0)); err != nil {
		h.t.Fatalf("CONNECT_RESP: %v", err)
	}
	h.expectState(rsim.StateConnected, rsim.SubIdle)
}

func (h *harness) action(a rsim.SimAction) {
	h.t.Helper()
	if err := h.svc.HandleSimAction(h.ctx, a); err != nil {
		h.t.Fatalf("HandleSimAction(%s): %v", a, err)
	}
}

// deliver feeds msg to the service and returns the callback result.
func (h *harness) deliver(msg []byte) error {
	h.t.Helper()
	result := make(chan error, 1)
	err := h.svc.SendMessage(msg, func(id sap.MessageID, err error) {
		if id != sap.ID(msg) {
			h.t.Errorf("callback id = %s, want %s", id, sap.ID(msg))
		}
		result <- err
	})
	if err != nil {
		h.t.Fatalf("SendMessage: %v", err)
	}
	select {
	case err := <-result:
		return err
	case <-time.After(waitTimeout):
		h.t.Fatal("callback not invoked")
		return nil
	}
}

func (h *harness) expectSent(want []byte) {
	h.t.Helper()
	select {
	case got := <-h.sent:
		if diff := cmp.Diff(want, got); diff != "" {
			h.t.Errorf("sent %s, want %s (-want +got):\n%s", sap.Describe(got), sap.Describe(want), diff)
		}
	case <-time.After(waitTimeout):
		h.t.Fatalf("%s not sent", sap.Describe(want))
	}
}

func (h *harness) expectNothingSent() {
	h.t.Helper()
	// A snapshot round trip guarantees anything queued before it is in the
	// outbox; the short wait lets the dispatcher drain it.
	h.snapshot()
	select {
	case got := <-h.sent:
		h.t.Errorf("unexpected message sent: %s", sap.Describe(got))
	case <-time.After(20 * time.Millisecond):
	}
}

func (h *harness) snapshot() rsim.Snapshot {
	h.t.Helper()
	snap, err := h.svc.Snapshot(h.ctx)
	if err != nil {
		h.t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func (h *harness) expectState(state rsim.State, sub rsim.SubState) {
	h.t.Helper()
	snap := h.snapshot()
	if snap.State != state || snap.SubState != sub {
		h.t.Errorf("state = %s/%s, want %s/%s", snap.State, snap.SubState, state, sub)
	}
}

func TestConnectHandshake(t *testing.T) {
	t.Run("server proposes smaller size", func(t *testing.T) {
		h := newHarness(t)
		h.register()

		h.action(rsim.ActionConnect)
		h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))
		h.expectState(rsim.StateConnecting, rsim.SubIdle)

		if err := h.deliver(sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, 250)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.expectSent(sap.BuildConnectReq(250))
		h.expectState(rsim.StateConnecting, rsim.SubIdle)

		if err := h.deliver(sap.BuildConnectResp(sap.ConnectionOK, 0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := h.snapshot()
		want := rsim.Snapshot{
			State:             rsim.StateConnected,
			SubState:          rsim.SubIdle,
			MaxMsgSize:        250,
			HandlerRegistered: true,
		}
		if diff := cmp.Diff(want, snap); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
		if got := h.svc.MaxMessageSize(); got != 250 {
			t.Errorf("MaxMessageSize = %d, want 250", got)
		}
	})

	t.Run("ongoing call is accepted", func(t *testing.T) {
		h := newHarness(t)
		h.register()
		h.action(rsim.ActionConnect)
		h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))

		if err := h.deliver(sap.BuildConnectResp(sap.ConnectionOKOngoingCall, 0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.expectState(rsim.StateConnected, rsim.SubIdle)
	})
}

func TestConnectSizeNegotiation(t *testing.T) {
	tests := []struct {
		name     string
		size     uint16
		accepted bool
	}{
		{name: "minimum", size: rsim.MinMsgSize, accepted: true},
		{name: "maximum", size: rsim.MaxMsgSize, accepted: true},
		{name: "in range", size: 230, accepted: true},
		{name: "below minimum", size: rsim.MinMsgSize - 1},
		{name: "above maximum", size: rsim.MaxMsgSize + 1},
		{name: "zero", size: 0},
		{name: "largest", size: 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.register()
			h.action(rsim.ActionConnect)
			h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))

			if !tt.accepted {
				h.notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimNoLink).Return(nil).Times(1)
			}

			if err := h.deliver(sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, tt.size)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.accepted {
				h.expectSent(sap.BuildConnectReq(tt.size))
				h.expectState(rsim.StateConnecting, rsim.SubIdle)
				return
			}
			h.expectNothingSent()
			snap := h.snapshot()
			if snap.State != rsim.StateNotConnected {
				t.Errorf("state = %s, want %s", snap.State, rsim.StateNotConnected)
			}
			if snap.MaxMsgSize != rsim.MaxMsgSize {
				t.Errorf("maxMsgSize = %d, want %d", snap.MaxMsgSize, rsim.MaxMsgSize)
			}
		})
	}
}

func TestConnectSizeRenegotiation(t *testing.T) {
	tests := []struct {
		name   string
		second uint16
	}{
		{name: "larger second proposal", second: 270},
		{name: "smaller second proposal", second: 220},
		{name: "same second proposal", second: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.register()
			h.action(rsim.ActionConnect)
			h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))

			if err := h.deliver(sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, 250)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			h.expectSent(sap.BuildConnectReq(250))

			h.notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimNoLink).Return(nil).Times(1)
			if err := h.deliver(sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, tt.second)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			h.expectNothingSent()

			snap := h.snapshot()
			if snap.State != rsim.StateNotConnected {
				t.Errorf("state = %s, want %s", snap.State, rsim.StateNotConnected)
			}
			if snap.MaxMsgSize != rsim.MaxMsgSize {
				t.Errorf("maxMsgSize = %d, want %d", snap.MaxMsgSize, rsim.MaxMsgSize)
			}
		})
	}

	t.Run("new session may shrink again", func(t *testing.T) {
		h := newHarness(t)
		h.register()
		h.action(rsim.ActionConnect)
		h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))

		if err := h.deliver(sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, 250)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.expectSent(sap.BuildConnectReq(250))

		h.notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimNoLink).Return(nil)
		if err := h.deliver(sap.BuildConnectResp(sap.ConnectionServerNOK, 0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		h.action(rsim.ActionConnect)
		h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))
		if err := h.deliver(sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, 230)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.expectSent(sap.BuildConnectReq(230))
		h.expectState(rsim.StateConnecting, rsim.SubIdle)
	})
}

func TestConnectRefused(t *testing.T) {
	tests := []struct {
		name    string
		status  sap.ConnectionStatus
		wantErr error
	}{
		{name: "server not ok", status: sap.ConnectionServerNOK},
		{name: "size too small", status: sap.ConnectionMsgSizeTooSmall},
		{name: "unknown status", status: 0x09, wantErr: rsim.ErrFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.register()
			h.action(rsim.ActionConnect)
			h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))

			h.notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimNoLink).Return(nil)
			err := h.deliver(sap.BuildConnectResp(tt.status, 0))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			h.expectState(rsim.StateNotConnected, rsim.SubIdle)
		})
	}
}

func TestConnectGuard(t *testing.T) {
	t.Run("resends until answered", func(t *testing.T) {
		h := newHarness(t, rsim.WithConnectTimeout(20*time.Millisecond))
		h.register()
		h.action(rsim.ActionConnect)

		for range 3 {
			h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))
		}
		if err := h.deliver(sap.BuildConnectResp(sap.ConnectionOK, 0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.expectState(rsim.StateConnected, rsim.SubIdle)

		// Drain resends that raced the response.
		h.snapshot()
		time.Sleep(10 * time.Millisecond)
		for len(h.sent) > 0 {
			<-h.sent
		}
		time.Sleep(60 * time.Millisecond)
		h.expectNothingSent()
	})

	t.Run("bounded retries give up", func(t *testing.T) {
		h := newHarness(t,
			rsim.WithConnectTimeout(10*time.Millisecond),
			rsim.WithConnectRetryLimit(2),
		)
		h.register()

		gaveUp := make(chan struct{})
		h.notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimNoLink).
			Do(func(context.Context, rsim.SimStatus) { close(gaveUp) }).
			Return(nil)

		h.action(rsim.ActionConnect)
		for range 3 {
			h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))
		}

		select {
		case <-gaveUp:
		case <-time.After(waitTimeout):
			t.Fatal("NO_LINK not notified")
		}
		h.expectState(rsim.StateNotConnected, rsim.SubIdle)
		h.expectNothingSent()
	})
}

func TestConnectPreconditions(t *testing.T) {
	t.Run("without handler", func(t *testing.T) {
		h := newHarness(t)
		err := h.svc.HandleSimAction(h.ctx, rsim.ActionConnect)
		if !errors.Is(err, rsim.ErrNoHandler) {
			t.Errorf("error = %v, want %v", err, rsim.ErrNoHandler)
		}
		h.expectState(rsim.StateNotConnected, rsim.SubIdle)
	})

	t.Run("already connected", func(t *testing.T) {
		h := newHarness(t)
		h.connect()
		err := h.svc.HandleSimAction(h.ctx, rsim.ActionConnect)
		if !errors.Is(err, rsim.ErrIncoherentState) {
			t.Errorf("error = %v, want %v", err, rsim.ErrIncoherentState)
		}
		h.expectNothingSent()
	})

	t.Run("CONNECT_RESP when not connecting", func(t *testing.T) {
		h := newHarness(t)
		h.register()
		err := h.deliver(sap.BuildConnectResp(sap.ConnectionOK, 0))
		if !errors.Is(err, rsim.ErrFault) {
			t.Errorf("error = %v, want %v", err, rsim.ErrFault)
		}
		h.expectState(rsim.StateNotConnected, rsim.SubIdle)
	})
}

func TestSendMessageSizeCeiling(t *testing.T) {
	h := newHarness(t)
	h.register()
	h.action(rsim.ActionConnect)
	h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))

	err := h.svc.SendMessage(make([]byte, rsim.MaxMsgSize+1), func(sap.MessageID, error) {
		t.Error("callback invoked for rejected message")
	})
	if !errors.Is(err, rsim.ErrBadParameter) {
		t.Fatalf("error = %v, want %v", err, rsim.ErrBadParameter)
	}

	if err := h.deliver(sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, 250)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.expectSent(sap.BuildConnectReq(250))

	if err := h.svc.SendMessage(make([]byte, 251), nil); !errors.Is(err, rsim.ErrBadParameter) {
		t.Errorf("error = %v, want %v", err, rsim.ErrBadParameter)
	}
	if err := h.deliver(append(sap.BuildErrorResp(), make([]byte, 246)...)); err != nil {
		t.Errorf("250 byte message rejected: %v", err)
	}
	h.expectState(rsim.StateNotConnected, rsim.SubIdle)
}

func TestMessageHandlerRegistration(t *testing.T) {
	t.Run("nil handler", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.svc.AddMessageHandler(h.ctx, nil); !errors.Is(err, rsim.ErrNilHandler) {
			t.Errorf("error = %v, want %v", err, rsim.ErrNilHandler)
		}
	})

	t.Run("second registration fails", func(t *testing.T) {
		h := newHarness(t)
		h.register()

		second := make(chan []byte, 1)
		ref, err := h.svc.AddMessageHandler(h.ctx, rsim.MessageHandlerFunc(func(msg []byte) {
			second <- msg
		}))
		if !errors.Is(err, rsim.ErrHandlerRegistered) {
			t.Fatalf("error = %v, want %v", err, rsim.ErrHandlerRegistered)
		}
		if ref != nil {
			t.Error("second registration returned a reference")
		}

		h.action(rsim.ActionConnect)
		h.expectSent(sap.BuildConnectReq(rsim.MaxMsgSize))
		select {
		case msg := <-second:
			t.Errorf("second handler received %s", sap.Describe(msg))
		default:
		}
	})

	t.Run("remove and register again", func(t *testing.T) {
		h := newHarness(t)
		h.register()

		if err := h.svc.RemoveMessageHandler(h.ctx, &rsim.HandlerRef{}); !errors.Is(err, rsim.ErrNoHandler) {
			t.Errorf("remove foreign ref: error = %v, want %v", err, rsim.ErrNoHandler)
		}
		if err := h.svc.RemoveMessageHandler(h.ctx, h.ref); err != nil {
			t.Fatalf("RemoveMessageHandler: %v", err)
		}
		if err := h.svc.RemoveMessageHandler(h.ctx, h.ref); !errors.Is(err, rsim.ErrNoHandler) {
			t.Errorf("remove twice: error = %v, want %v", err, rsim.ErrNoHandler)
		}
		if h.snapshot().HandlerRegistered {
			t.Error("handler still registered")
		}

		h.register()
		if !h.snapshot().HandlerRegistered {
			t.Error("handler not registered")
		}
	})

	t.Run("availability gated on capability", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		capability := rsim.NewMockCapability(ctrl)
		h := newHarness(t, rsim.WithCapability(capability))

		capability.EXPECT().RemoteSIMSupported(gomock.Any()).Return(false, nil)
		if _, err := h.svc.AddMessageHandler(h.ctx, h.handler()); err != nil {
			t.Fatalf("AddMessageHandler: %v", err)
		}
		h.snapshot()
	})

	t.Run("availability when supported", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		capability := rsim.NewMockCapability(ctrl)
		h := newHarness(t, rsim.WithCapability(capability))

		capability.EXPECT().RemoteSIMSupported(gomock.Any()).Return(true, nil)
		h.register()
		h.snapshot()
	})
}

func TestNotifierFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimRemoved).Return(errors.New("modem gone"))
	if err := h.deliver(sap.BuildStatusInd(sap.StatusCardRemoved)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	h.expectState(rsim.StateConnected, rsim.SubIdle)
}

func TestRun(t *testing.T) {
	svc := rsim.New(nil, rsim.WithLogger(slog.New(slog.DiscardHandler)))

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- svc.Run(ctx) }()

	// Wait for the loop to be up.
	if _, err := svc.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := svc.Run(ctx); !errors.Is(err, rsim.ErrLoopRunning) {
		t.Errorf("second Run: error = %v, want %v", err, rsim.ErrLoopRunning)
	}

	cancel()
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Errorf("Run: error = %v, want %v", err, context.Canceled)
	}

	if err := svc.Run(context.Background()); !errors.Is(err, rsim.ErrClosed) {
		t.Errorf("Run after close: error = %v, want %v", err, rsim.ErrClosed)
	}
	if _, err := svc.Snapshot(context.Background()); !errors.Is(err, rsim.ErrClosed) {
		t.Errorf("Snapshot after close: error = %v, want %v", err, rsim.ErrClosed)
	}
	if err := svc.SendMessage(sap.BuildErrorResp(), nil); !errors.Is(err, rsim.ErrClosed) {
		t.Errorf("SendMessage after close: error = %v, want %v", err, rsim.ErrClosed)
	}
}

func TestRunStopCompletesQueuedMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := rsim.NewMockNotifier(ctrl)
	svc := rsim.New(notifier, rsim.WithLogger(slog.New(slog.DiscardHandler)))

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- svc.Run(ctx) }()

	// Hold the loop inside the availability notification so that the
	// messages below stay queued.
	entered := make(chan struct{})
	release := make(chan struct{})
	notifier.EXPECT().NotifyStatus(gomock.Any(), rsim.SimAvailable).DoAndReturn(
		func(context.Context, rsim.SimStatus) error {
			close(entered)
			<-release
			return nil
		})
	handler := rsim.MessageHandlerFunc(func([]byte) {})
	if _, err := svc.AddMessageHandler(context.Background(), handler); err != nil {
		t.Fatalf("AddMessageHandler: %v", err)
	}
	<-entered

	const queued = 20
	results := make(chan error, queued)
	for i := range queued {
		err := svc.SendMessage(sap.BuildErrorResp(), func(_ sap.MessageID, err error) {
			results <- err
		})
		if err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
	}

	cancel()
	close(release)
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Errorf("Run: error = %v, want %v", err, context.Canceled)
	}

	for i := range queued {
		select {
		case err := <-results:
			// processed before the stop was seen, or dropped by it
			if !errors.Is(err, rsim.ErrFault) && !errors.Is(err, rsim.ErrClosed) {
				t.Errorf("callback %d: error = %v", i, err)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("only %d of %d callbacks invoked", i, queued)
		}
	}
	select {
	case err := <-results:
		t.Errorf("extra callback invoked: %v", err)
	default:
	}
}

// recordingHandler keeps the message of every log record.
type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, r.Message)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.messages)
}

func TestSessionLogMessages(t *testing.T) {
	logs := &recordingHandler{}
	h := newHarness(t, rsim.WithLogger(slog.New(logs)))
	h.connect()

	if err := h.deliver([]byte{0xFF, 0x00, 0x00, 0x00}); err == nil {
		t.Error("expected unknown message to be rejected")
	}
	h.expectState(rsim.StateConnected, rsim.SubIdle)

	messages := logs.Messages()
	if !slices.Contains(messages, "Session established") {
		t.Errorf("expected %q in %q", "Session established", messages)
	}
	for _, msg := range messages {
		if r, _ := utf8.DecodeRuneInString(msg); !unicode.IsUpper(r) {
			t.Errorf("log message %q does not start with a capital letter", msg)
		}
	}
}
