// Package pcsc implements the SAP server role on top of a PC/SC smart card
// reader, so that a SIM in a local reader can be lent to a remote modem.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ebfe/scard"

	"i4.energy/across/rsim/sap"
)

// ErrUnexpected is returned alongside an ERROR_RESP for requests the server
// cannot process in its current state or does not implement.
var ErrUnexpected = errors.New("pcsc: unexpected request")

// Server answers SAP client requests using a card reader. It is safe for
// concurrent use; requests are processed one at a time.
type Server struct {
	reader Reader
	config config
	logger *slog.Logger

	mu sync.Mutex
	// connected is true between an accepted CONNECT_REQ and DISCONNECT_REQ
	connected bool
	// card is nil while the SIM is powered off
	card       Card
	maxMsgSize uint16
}

// NewServer creates a server for the card in reader.
func NewServer(reader Reader, opts ...Option) *Server {
	c := config{
		logger:     slog.Default(),
		maxMsgSize: DefaultMaxMsgSize,
		minMsgSize: DefaultMinMsgSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &Server{
		reader:     reader,
		config:     c,
		logger:     c.logger.With("component", "pcsc"),
		maxMsgSize: c.maxMsgSize,
	}
}

// Serve processes one client request and returns the messages to send back
// in order. A non-nil error describes why the request was refused; the
// replies then carry the ERROR_RESP or failure result for the client.
func (s *Server) Serve(req []byte) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("SAP request", "msg", sap.Describe(req))

	id := sap.ID(req)
	if id == sap.MsgConnectReq {
		return s.connect(req)
	}
	if !s.connected {
		return s.refuse(fmt.Errorf("%w: %s before CONNECT", ErrUnexpected, id))
	}

	switch id {
	case sap.MsgDisconnectReq:
		s.release(scard.LeaveCard)
		s.connected = false
		return [][]byte{sap.BuildDisconnectResp()}, nil
	case sap.MsgTransferAPDUReq:
		return s.transferAPDU(req)
	case sap.MsgTransferATRReq:
		return s.transferATR()
	case sap.MsgPowerSimOffReq:
		return s.powerOff()
	case sap.MsgPowerSimOnReq:
		return s.powerOn()
	case sap.MsgResetSimReq:
		return s.reset()
	default:
		return s.refuse(fmt.Errorf("%w: %s", ErrUnexpected, id))
	}
}

// Close powers the card off and ends the session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return s.release(scard.UnpowerCard)
}

func (s *Server) connect(req []byte) ([][]byte, error) {
	if err := sap.CheckParameter(req, sap.ParamMaxMsgSize, sap.LengthMaxMsgSize, 1); err != nil {
		return s.refuse(err)
	}
	if s.connected {
		return s.refuse(fmt.Errorf("%w: already connected", ErrUnexpected))
	}

	proposed := sap.Uint16Param(req, 1)
	switch {
	case proposed > s.config.maxMsgSize:
		return [][]byte{sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, s.config.maxMsgSize)}, nil
	case proposed < s.config.minMsgSize:
		return [][]byte{sap.BuildConnectResp(sap.ConnectionMsgSizeTooSmall, 0)}, nil
	}

	card, err := s.reader.Connect()
	if err != nil {
		s.logger.Warn("Card connect failed", "error", err)
		return [][]byte{sap.BuildConnectResp(sap.ConnectionServerNOK, 0)}, nil
	}

	s.card = card
	s.connected = true
	s.maxMsgSize = proposed
	s.logger.Info("SAP client connected", "maxMsgSize", proposed)
	return [][]byte{
		sap.BuildConnectResp(sap.ConnectionOK, 0),
		sap.BuildStatusInd(sap.StatusCardReset),
	}, nil
}

func (s *Server) transferAPDU(req []byte) ([][]byte, error) {
	if err := sap.CheckParameter(req, sap.ParamCommandAPDU, 0, 1); err != nil {
		return s.refuse(err)
	}
	apdu, err := sap.PayloadParam(req, 1)
	if err != nil {
		return s.refuse(err)
	}
	if s.card == nil {
		return s.apduResult(sap.ResultCardPoweredOff, nil)
	}

	resp, err := s.card.Transmit(apdu)
	if err != nil {
		s.logger.Warn("Transmit failed", "error", err)
		return s.apduResult(resultFor(err), nil)
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("Card response", "apdu", fmt.Sprintf("%X", apdu), "response", describeResponse(resp))
	}
	return s.apduResult(sap.ResultOK, resp)
}

func (s *Server) apduResult(result sap.ResultCode, resp []byte) ([][]byte, error) {
	msg, err := sap.BuildTransferAPDUResp(result, resp)
	if err == nil && len(msg) > int(s.maxMsgSize) {
		err = fmt.Errorf("response of %d bytes exceeds negotiated %d", len(msg), s.maxMsgSize)
	}
	if err != nil {
		s.logger.Warn("APDU response dropped", "error", err)
		msg, _ = sap.BuildTransferAPDUResp(sap.ResultDataNotAvailable, nil)
	}
	return [][]byte{msg}, nil
}

func (s *Server) transferATR() ([][]byte, error) {
	result, atr := sap.ResultOK, []byte(nil)
	if s.card == nil {
		result = sap.ResultCardPoweredOff
	} else if status, err := s.card.Status(); err != nil {
		s.logger.Warn("Card status failed", "error", err)
		result = resultFor(err)
	} else {
		atr = status.Atr
	}

	msg, err := sap.BuildTransferATRResp(result, atr)
	if err != nil {
		msg, _ = sap.BuildTransferATRResp(sap.ResultDataNotAvailable, nil)
	}
	return [][]byte{msg}, nil
}

func (s *Server) powerOff() ([][]byte, error) {
	if s.card == nil {
		return [][]byte{sap.BuildPowerSimOffResp(sap.ResultCardPoweredOff)}, nil
	}
	if err := s.release(scard.UnpowerCard); err != nil {
		return [][]byte{sap.BuildPowerSimOffResp(resultFor(err))}, nil
	}
	return [][]byte{sap.BuildPowerSimOffResp(sap.ResultOK)}, nil
}

func (s *Server) powerOn() ([][]byte, error) {
	if s.card != nil {
		return [][]byte{sap.BuildPowerSimOnResp(sap.ResultCardPoweredOn)}, nil
	}
	card, err := s.reader.Connect()
	if err != nil {
		s.logger.Warn("Card power on failed", "error", err)
		return [][]byte{sap.BuildPowerSimOnResp(resultFor(err))}, nil
	}
	s.card = card
	return [][]byte{sap.BuildPowerSimOnResp(sap.ResultOK)}, nil
}

func (s *Server) reset() ([][]byte, error) {
	if s.card == nil {
		return [][]byte{sap.BuildResetSimResp(sap.ResultCardPoweredOff)}, nil
	}
	if err := s.card.Reconnect(scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1, scard.ResetCard); err != nil {
		s.logger.Warn("Card reset failed", "error", err)
		return [][]byte{sap.BuildResetSimResp(resultFor(err))}, nil
	}
	return [][]byte{sap.BuildResetSimResp(sap.ResultOK)}, nil
}

// release disconnects the card, if any, with the given disposition.
func (s *Server) release(disp scard.Disposition) error {
	if s.card == nil {
		return nil
	}
	card := s.card
	s.card = nil
	if err := card.Disconnect(disp); err != nil {
		s.logger.Warn("Card disconnect failed", "error", err)
		return err
	}
	return nil
}

func (s *Server) refuse(err error) ([][]byte, error) {
	s.logger.Warn("SAP request refused", "error", err)
	return [][]byte{sap.BuildErrorResp()}, err
}

// resultFor maps a PC/SC failure onto a SAP result code.
func resultFor(err error) sap.ResultCode {
	switch {
	case errors.Is(err, scard.ErrRemovedCard), errors.Is(err, scard.ErrNoSmartcard):
		return sap.ResultCardRemoved
	case errors.Is(err, scard.ErrUnpoweredCard):
		return sap.ResultCardPoweredOff
	case errors.Is(err, scard.ErrUnresponsiveCard), errors.Is(err, scard.ErrResetCard):
		return sap.ResultCardNotAccessible
	default:
		return sap.ResultNoReason
	}
}
