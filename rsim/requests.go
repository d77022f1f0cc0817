package rsim

import (
	"context"
	"fmt"

	"i4.energy/across/rsim/sap"
)

// HandleSimAction applies a modem-side SIM action. It returns
// ErrIncoherentState, without sending anything, when the action is not
// permitted in the current state.
func (s *Service) HandleSimAction(ctx context.Context, action SimAction) error {
	return s.exec(ctx, func(ctx context.Context) error {
		s.logger.Debug("SIM action requested", "action", action, "state", s.state(), "subState", s.subState)
		switch action {
		case ActionConnect:
			return s.connect(ctx)
		case ActionDisconnect:
			return s.request(ctx, sap.BuildDisconnectReq(), SubDisconnect, s.isIdle)
		case ActionReset:
			return s.request(ctx, sap.BuildResetSimReq(), SubReset, s.canReset)
		case ActionPowerUp:
			return s.request(ctx, sap.BuildPowerSimOnReq(), SubPowerOn, s.isIdle)
		case ActionPowerDown:
			return s.request(ctx, sap.BuildPowerSimOffReq(), SubPowerOff, s.isIdle)
		default:
			return fmt.Errorf("%w: %s", ErrBadParameter, action)
		}
	})
}

// HandleAPDU forwards a command APDU from the modem to the remote SIM. When
// the APDU cannot be sent the modem is answered with an APDU error and the
// cause is returned.
func (s *Service) HandleAPDU(ctx context.Context, apdu []byte) error {
	apdu = append([]byte(nil), apdu...)
	return s.exec(ctx, func(ctx context.Context) error {
		err := s.transferAPDU(ctx, apdu)
		if err != nil {
			s.notifyAPDUError(ctx)
		}
		return err
	})
}

func (s *Service) transferAPDU(ctx context.Context, apdu []byte) error {
	if !s.isIdle() {
		return s.incoherent("APDU")
	}
	if len(apdu) == 0 {
		return fmt.Errorf("%w: empty APDU", ErrBadParameter)
	}
	msg, err := sap.BuildTransferAPDUReq(apdu)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadParameter, err)
	}
	if len(msg) > int(s.maxMsgSize) {
		return fmt.Errorf("%w: APDU message of %d bytes exceeds %d", ErrBadParameter, len(msg), s.maxMsgSize)
	}
	if err := s.send(ctx, msg); err != nil {
		return err
	}
	s.subState = SubAPDU
	return nil
}

// AddMessageHandler registers the handler receiving outbound SAP messages.
// Only one handler may be registered at a time. A successful registration
// tells the modem the remote SIM is available, provided the capability
// check agrees.
func (s *Service) AddMessageHandler(ctx context.Context, handler MessageHandler) (*HandlerRef, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	var ref *HandlerRef
	err := s.exec(ctx, func(context.Context) error {
		if s.handler != nil {
			return ErrHandlerRegistered
		}
		ref = &HandlerRef{handler: handler}
		s.handler = ref
		s.deferTask(s.notifyAvailable)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// RemoveMessageHandler removes the registration identified by ref. It returns
// ErrNoHandler if ref is not the current registration.
func (s *Service) RemoveMessageHandler(ctx context.Context, ref *HandlerRef) error {
	return s.exec(ctx, func(context.Context) error {
		if ref == nil || s.handler != ref {
			return ErrNoHandler
		}
		s.handler = nil
		return nil
	})
}

func (s *Service) notifyAvailable(ctx context.Context) {
	if s.handler == nil {
		return
	}
	if capability := s.config.Capability; capability != nil {
		supported, err := capability.RemoteSIMSupported(ctx)
		if err != nil {
			s.logger.Warn("Remote SIM capability check failed", "error", err)
			return
		}
		if !supported {
			s.logger.Info("Remote SIM not selected or not supported by modem")
			return
		}
	}
	s.notifyStatus(ctx, SimAvailable)
}

func (s *Service) connect(ctx context.Context) error {
	if s.state() == StateConnected {
		return s.incoherent("connect")
	}
	if s.handler == nil {
		return ErrNoHandler
	}
	if err := s.sendConnectReq(ctx); err != nil {
		s.guard.Stop()
		return err
	}
	s.retries = 0
	if s.state() == StateNotConnected {
		s.fire(ctx, eventConnect)
	}
	return nil
}

// sendConnectReq sends CONNECT_REQ and (re)starts the guard.
func (s *Service) sendConnectReq(ctx context.Context) error {
	s.guard.Reset(s.config.ConnectTimeout)
	return s.send(ctx, sap.BuildConnectReq(s.maxMsgSize))
}

func (s *Service) onGuardExpiry(ctx context.Context) {
	if s.state() != StateConnecting {
		return
	}

	s.retries++
	if limit := s.config.ConnectRetryLimit; limit > 0 && s.retries > limit {
		s.logger.Warn("No CONNECT_RESP, giving up", "retries", limit)
		s.notifyStatus(ctx, SimNoLink)
		s.fire(ctx, eventDrop)
		return
	}

	s.logger.Debug("No CONNECT_RESP, resending", "retry", s.retries)
	if err := s.sendConnectReq(ctx); err != nil {
		s.logger.Warn("Failed to resend CONNECT_REQ", "error", err)
	}
}

// request sends msg and enters next when allowed reports true.
func (s *Service) request(ctx context.Context, msg []byte, next SubState, allowed func() bool) error {
	if !allowed() {
		return s.incoherent(next.String())
	}
	if err := s.send(ctx, msg); err != nil {
		return err
	}
	s.subState = next
	return nil
}

func (s *Service) isIdle() bool {
	return s.state() == StateConnected && s.subState == SubIdle
}

func (s *Service) canReset() bool {
	return s.state() == StateConnected && s.subState != SubPowerOn && s.subState != SubPowerOff
}

func (s *Service) incoherent(request string) error {
	err := fmt.Errorf("%w: %s request in %s/%s", ErrIncoherentState, request, s.state(), s.subState)
	s.logger.Warn("Request rejected", "error", err)
	return err
}
