package rsim

import (
	"errors"
	"fmt"

	"i4.energy/across/rsim/sap"
)

var (
	// ErrFormat is returned when a received SAP message fails structural
	// validation. It is the same value as sap.ErrFormat.
	//
	// The session survives a format error; the request in flight is closed
	// and the sub-state returns to Idle.
	ErrFormat = sap.ErrFormat

	// ErrIncoherentState is returned when a request is not permitted in the
	// current state or sub-state, for example a reset while the SIM is being
	// powered on. Nothing is sent.
	ErrIncoherentState = errors.New("rsim: incoherent state")

	// ErrUnsupported is returned for SAP messages that are known but not
	// implemented by the client, such as card reader status and transport
	// protocol selection.
	ErrUnsupported = errors.New("rsim: unsupported message")

	// ErrBadParameter is returned when a message exceeds the negotiated
	// maximum size or a caller supplies an unusable argument.
	ErrBadParameter = errors.New("rsim: bad parameter")

	// ErrFault is returned for protocol or logic failures caused by the peer:
	// unknown message ids, out of range values, or responses that do not
	// match the request in flight.
	ErrFault = errors.New("rsim: fault")

	// ErrNilHandler is returned when registering a nil message handler.
	ErrNilHandler = errors.New("rsim: nil message handler")

	// ErrHandlerRegistered is returned when a message handler is already
	// registered. The existing registration stays active.
	ErrHandlerRegistered = errors.New("rsim: message handler already registered")

	// ErrNoHandler is returned when a message must be sent but no handler is
	// registered, or when removing a registration that is not current.
	ErrNoHandler = errors.New("rsim: no message handler registered")

	// ErrClosed is returned once the service loop has stopped.
	ErrClosed = errors.New("rsim: service closed")

	// ErrLoopRunning is returned when Run is called while the loop is
	// already running.
	ErrLoopRunning = errors.New("rsim: loop already running")
)

// ProtocolError ties a processing failure to the SAP message that caused it.
type ProtocolError struct {
	// MsgID is the id of the received message
	MsgID sap.MessageID

	// Err is the underlying error, one of the sentinels above
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("process %s: %v", e.MsgID, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
