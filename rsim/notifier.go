package rsim

import (
	"context"

	"i4.energy/across/rsim/sap"
)

//go:generate go tool mockgen -destination=mock_notifier.go -package=rsim . Notifier,Capability,MessageHandler

// Notifier is the modem-facing sink of the session. Failures are logged by
// the service and never change the session state.
type Notifier interface {
	// NotifyStatus reports a SIM status change.
	NotifyStatus(ctx context.Context, status SimStatus) error
	// NotifyDisconnection reports that the remote SIM link is going away.
	NotifyDisconnection(ctx context.Context) error
	// TransferAPDUResponse forwards a response APDU.
	TransferAPDUResponse(ctx context.Context, apdu []byte) error
	// TransferAPDUResponseError reports that no response APDU is available.
	TransferAPDUResponseError(ctx context.Context) error
	// TransferATRResponse forwards an ATR together with the status that
	// triggered the ATR request.
	TransferATRResponse(ctx context.Context, status SimStatus, atr []byte) error
}

// Capability reports whether the modem has the remote SIM selected and
// supported. It gates the availability notification sent on registration.
type Capability interface {
	RemoteSIMSupported(ctx context.Context) (bool, error)
}

// MessageHandler receives outbound SAP messages, typically the link to the
// remote SIM server. HandleMessage runs on the dispatcher goroutine in send
// order and must not retain msg after returning unless it copies it.
type MessageHandler interface {
	HandleMessage(msg []byte)
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(msg []byte)

func (f MessageHandlerFunc) HandleMessage(msg []byte) {
	f(msg)
}

// HandlerRef identifies a registration returned by AddMessageHandler.
type HandlerRef struct {
	handler MessageHandler
}

// Callback is invoked exactly once for every message accepted by
// SendMessage, after the message has been processed.
type Callback func(id sap.MessageID, err error)
