package rsim

import (
	"context"
	"errors"
	"fmt"

	"i4.energy/across/rsim/sap"
)

// SendMessage hands a SAP message received from the remote SIM server to the
// session. A message longer than the negotiated maximum is rejected with
// ErrBadParameter before anything is queued. Otherwise msg is copied, queued
// onto the loop, and cb, if not nil, is invoked exactly once with the message
// id and the processing result. A message still queued when the loop stops
// gets ErrClosed.
func (s *Service) SendMessage(msg []byte, cb Callback) error {
	if limit := s.msgSize.Load(); uint32(len(msg)) > limit {
		return fmt.Errorf("%w: message of %d bytes exceeds %d", ErrBadParameter, len(msg), limit)
	}

	msg = append([]byte(nil), msg...)
	return s.post(task{
		run: func(ctx context.Context) {
			err := s.process(ctx, msg)
			if cb != nil {
				cb(sap.ID(msg), err)
			}
		},
		abort: func() {
			if cb != nil {
				cb(sap.ID(msg), ErrClosed)
			}
		},
	})
}

// process applies one received message to the session.
func (s *Service) process(ctx context.Context, msg []byte) error {
	id := sap.ID(msg)
	s.logger.Debug("SAP message received", "msg", sap.Describe(msg))

	var err error
	switch id {
	case sap.MsgConnectResp:
		err = s.processConnectResp(ctx, msg)
	case sap.MsgDisconnectResp:
		err = s.processDisconnectResp(ctx)
	case sap.MsgDisconnectInd:
		err = s.processDisconnectInd(ctx, msg)
	case sap.MsgTransferAPDUResp:
		err = s.processAPDUResp(ctx, msg)
	case sap.MsgTransferATRResp:
		err = s.processATRResp(ctx, msg)
	case sap.MsgPowerSimOffResp:
		err = s.processPowerOffResp(ctx, msg)
	case sap.MsgPowerSimOnResp:
		err = s.processChainedResp(ctx, msg, SubPowerOn)
	case sap.MsgResetSimResp:
		err = s.processChainedResp(ctx, msg, SubReset)
	case sap.MsgStatusInd:
		err = s.processStatusInd(ctx, msg)
	case sap.MsgErrorResp:
		err = s.processErrorResp(ctx)
	case sap.MsgTransferCardReaderStatusReq, sap.MsgTransferCardReaderStatusResp,
		sap.MsgSetTransportProtocolReq, sap.MsgSetTransportProtocolResp:
		err = ErrUnsupported
	default:
		if id.Known() {
			// server-bound requests make no sense in this direction
			err = ErrUnsupported
		} else {
			err = ErrFault
		}
	}

	if err != nil {
		err = &ProtocolError{MsgID: id, Err: err}
		s.logger.Warn("SAP message rejected", "error", err)
	}
	return err
}

func (s *Service) processConnectResp(ctx context.Context, msg []byte) error {
	if s.state() != StateConnecting {
		return fmt.Errorf("%w: unexpected in %s", ErrFault, s.state())
	}
	if err := sap.CheckParameter(msg, sap.ParamConnectionStatus, sap.LengthConnectionStatus, 1); err != nil {
		return err
	}

	status := sap.ConnectionStatus(sap.Uint8Param(msg, 1))
	switch status {
	case sap.ConnectionOK, sap.ConnectionOKOngoingCall:
		s.guard.Stop()
		s.subState = SubIdle
		s.fire(ctx, eventEstablished)
		return nil

	case sap.ConnectionMaxSizeUnsupported:
		if err := sap.CheckParameter(msg, sap.ParamMaxMsgSize, sap.LengthMaxMsgSize, 2); err != nil {
			return err
		}
		s.guard.Stop()
		size := sap.Uint16Param(msg, 2)
		if size < MinMsgSize || size > MaxMsgSize {
			s.logger.Warn("Server message size out of range", "size", size)
			s.noLink(ctx)
			return nil
		}
		// the size shrinks at most once per session
		if s.sizeAdopted {
			s.logger.Warn("Server renegotiated message size again", "size", size, "current", s.maxMsgSize)
			s.noLink(ctx)
			return nil
		}
		s.logger.Info("Adopting server message size", "size", size)
		s.sizeAdopted = true
		s.setMaxMsgSize(size)
		return s.sendConnectReq(ctx)

	case sap.ConnectionServerNOK, sap.ConnectionMsgSizeTooSmall:
		s.guard.Stop()
		s.logger.Warn("Connection refused by server", "status", status)
		s.noLink(ctx)
		return nil

	default:
		s.guard.Stop()
		s.noLink(ctx)
		return fmt.Errorf("%w: %s", ErrFault, status)
	}
}

func (s *Service) noLink(ctx context.Context) {
	s.notifyStatus(ctx, SimNoLink)
	s.fire(ctx, eventDrop)
}

func (s *Service) processDisconnectResp(ctx context.Context) error {
	if s.state() != StateConnected || s.subState != SubDisconnect {
		return s.unexpected()
	}
	s.fire(ctx, eventDrop)
	return nil
}

func (s *Service) processDisconnectInd(ctx context.Context, msg []byte) error {
	if s.state() != StateConnected {
		return s.unexpected()
	}
	if err := sap.CheckParameter(msg, sap.ParamDisconnectionType, sap.LengthDisconnectionType, 1); err != nil {
		s.subState = SubIdle
		return err
	}

	switch t := sap.DisconnectionType(sap.Uint8Param(msg, 1)); t {
	case sap.DisconnectGraceful:
		if err := s.send(ctx, sap.BuildDisconnectReq()); err != nil {
			s.subState = SubIdle
			return err
		}
		s.notifyDisconnection(ctx)
		s.subState = SubDisconnect
		return nil

	case sap.DisconnectImmediate:
		s.notifyDisconnection(ctx)
		s.fire(ctx, eventDrop)
		return nil

	default:
		s.subState = SubIdle
		return fmt.Errorf("%w: %s", ErrFault, t)
	}
}

func (s *Service) processStatusInd(ctx context.Context, msg []byte) error {
	if err := sap.CheckParameter(msg, sap.ParamStatusChange, sap.LengthStatusChange, 1); err != nil {
		s.closeRequest()
		return err
	}
	if s.state() != StateConnected {
		return s.unexpected()
	}

	var status SimStatus
	switch change := sap.StatusChange(sap.Uint8Param(msg, 1)); change {
	case sap.StatusCardReset:
		return s.requestATR(ctx, SubATRAfterReset)
	case sap.StatusCardInserted:
		return s.requestATR(ctx, SubATRAfterInsert)
	case sap.StatusUnknownError:
		status = SimUnknownError
	case sap.StatusCardNotAccessible:
		status = SimNotAccessible
	case sap.StatusCardRemoved:
		status = SimRemoved
	case sap.StatusCardRecovered:
		status = SimRecovered
	default:
		s.subState = SubIdle
		return fmt.Errorf("%w: %s", ErrFault, change)
	}

	s.notifyStatus(ctx, status)
	s.subState = SubIdle
	return nil
}

func (s *Service) requestATR(ctx context.Context, next SubState) error {
	if err := s.send(ctx, sap.BuildTransferATRReq()); err != nil {
		s.subState = SubIdle
		return err
	}
	s.subState = next
	return nil
}

func (s *Service) processATRResp(ctx context.Context, msg []byte) error {
	if s.state() != StateConnected || (s.subState != SubATRAfterReset && s.subState != SubATRAfterInsert) {
		return s.unexpected()
	}
	trigger := SimReset
	if s.subState == SubATRAfterInsert {
		trigger = SimInserted
	}
	s.subState = SubIdle

	if err := sap.CheckParameter(msg, sap.ParamResultCode, sap.LengthResultCode, 1); err != nil {
		return err
	}
	result := sap.ResultCode(sap.Uint8Param(msg, 1))
	if result != sap.ResultOK {
		return s.notifyResult(ctx, result)
	}

	if err := sap.CheckParameter(msg, sap.ParamATR, 0, 2); err != nil {
		return err
	}
	atr, err := sap.PayloadParam(msg, 2)
	if err != nil {
		return err
	}
	if err := s.notifier.TransferATRResponse(ctx, trigger, atr); err != nil {
		s.logger.Warn("Modem ATR notification failed", "status", trigger, "error", err)
	}
	return nil
}

func (s *Service) processAPDUResp(ctx context.Context, msg []byte) error {
	if s.state() != StateConnected || s.subState != SubAPDU {
		return s.unexpected()
	}
	s.subState = SubIdle

	apdu, err := s.parseAPDUResp(msg)
	if err != nil {
		s.notifyAPDUError(ctx)
		if errors.Is(err, errAPDUFailed) {
			return nil
		}
		return err
	}
	if err := s.notifier.TransferAPDUResponse(ctx, apdu); err != nil {
		s.logger.Warn("Modem APDU notification failed", "error", err)
	}
	return nil
}

func (s *Service) parseAPDUResp(msg []byte) ([]byte, error) {
	if err := sap.CheckParameter(msg, sap.ParamResultCode, sap.LengthResultCode, 1); err != nil {
		return nil, err
	}
	switch result := sap.ResultCode(sap.Uint8Param(msg, 1)); {
	case result == sap.ResultOK:
	case result > sap.ResultNotSupported:
		return nil, fmt.Errorf("%w: %s", ErrFault, result)
	default:
		s.logger.Info("APDU transfer failed", "result", result)
		return nil, errAPDUFailed
	}
	if err := sap.CheckParameter(msg, sap.ParamResponseAPDU, 0, 2); err != nil {
		return nil, err
	}
	return sap.PayloadParam(msg, 2)
}

// errAPDUFailed marks a well formed APDU response carrying an error result.
var errAPDUFailed = errors.New("apdu transfer failed")

func (s *Service) processPowerOffResp(ctx context.Context, msg []byte) error {
	if s.state() != StateConnected || s.subState != SubPowerOff {
		return s.unexpected()
	}
	s.subState = SubIdle

	if err := sap.CheckParameter(msg, sap.ParamResultCode, sap.LengthResultCode, 1); err != nil {
		return err
	}
	if result := sap.ResultCode(sap.Uint8Param(msg, 1)); result != sap.ResultOK {
		return s.notifyResult(ctx, result)
	}
	return nil
}

// processChainedResp handles POWER_SIM_ON_RESP and RESET_SIM_RESP, both of
// which request the ATR on success.
func (s *Service) processChainedResp(ctx context.Context, msg []byte, pending SubState) error {
	if s.state() != StateConnected || s.subState != pending {
		return s.unexpected()
	}

	if err := sap.CheckParameter(msg, sap.ParamResultCode, sap.LengthResultCode, 1); err != nil {
		s.subState = SubIdle
		return err
	}
	if result := sap.ResultCode(sap.Uint8Param(msg, 1)); result != sap.ResultOK {
		s.subState = SubIdle
		return s.notifyResult(ctx, result)
	}
	return s.requestATR(ctx, SubATRAfterReset)
}

func (s *Service) processErrorResp(ctx context.Context) error {
	switch s.state() {
	case StateConnecting:
		s.fire(ctx, eventDrop)
		return nil
	case StateConnected:
		if s.subState == SubAPDU {
			s.notifyAPDUError(ctx)
		}
		s.subState = SubIdle
		return nil
	default:
		return fmt.Errorf("%w: %w: ERROR_RESP in %s", ErrFault, ErrIncoherentState, s.state())
	}
}

// notifyResult reports an error result code to the modem. Unknown codes are
// reported as an unknown error and returned as a fault.
func (s *Service) notifyResult(ctx context.Context, result sap.ResultCode) error {
	status, err := resultStatus(result)
	s.notifyStatus(ctx, status)
	return err
}

func resultStatus(result sap.ResultCode) (SimStatus, error) {
	switch result {
	case sap.ResultNoReason, sap.ResultCardPoweredOn, sap.ResultDataNotAvailable, sap.ResultNotSupported:
		return SimUnknownError, nil
	case sap.ResultCardNotAccessible, sap.ResultCardPoweredOff:
		return SimNotAccessible, nil
	case sap.ResultCardRemoved:
		return SimRemoved, nil
	default:
		return SimUnknownError, fmt.Errorf("%w: %s", ErrFault, result)
	}
}

// unexpected closes the request in flight for a response that does not
// match it.
func (s *Service) unexpected() error {
	err := fmt.Errorf("%w: unexpected in %s/%s", ErrFault, s.state(), s.subState)
	s.closeRequest()
	return err
}

func (s *Service) closeRequest() {
	if s.state() == StateConnected {
		s.subState = SubIdle
	}
}

func (s *Service) notifyStatus(ctx context.Context, status SimStatus) {
	if err := s.notifier.NotifyStatus(ctx, status); err != nil {
		s.logger.Warn("Modem status notification failed", "status", status, "error", err)
	}
}

func (s *Service) notifyDisconnection(ctx context.Context) {
	if err := s.notifier.NotifyDisconnection(ctx); err != nil {
		s.logger.Warn("Modem disconnection notification failed", "error", err)
	}
}

func (s *Service) notifyAPDUError(ctx context.Context) {
	if err := s.notifier.TransferAPDUResponseError(ctx); err != nil {
		s.logger.Warn("Modem APDU error notification failed", "error", err)
	}
}
