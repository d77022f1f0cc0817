package modem

import (
	"context"
	"fmt"
	"strings"

	"i4.energy/across/rsim/at"
	"i4.energy/across/rsim/rsim"
)

//go:generate go tool mockgen -destination=mock_events.go -package=modem . Events

// Events receives the SIM actions and command APDUs the modem reports
// through URCs. *rsim.Service implements it.
type Events interface {
	HandleSimAction(ctx context.Context, action rsim.SimAction) error
	HandleAPDU(ctx context.Context, apdu []byte) error
}

var (
	_ rsim.Notifier   = (*Modem)(nil)
	_ rsim.Capability = (*Modem)(nil)
)

// NotifyStatus reports a SIM status change with AT+RSIMSTAT.
func (m *Modem) NotifyStatus(ctx context.Context, status rsim.SimStatus) error {
	return m.expectOk(ctx, at.StatusCommand(int(status)))
}

// NotifyDisconnection tells the modem the remote SIM link is going down.
func (m *Modem) NotifyDisconnection(ctx context.Context) error {
	return m.expectOk(ctx, at.CmdRSIMDisconnect)
}

func (m *Modem) TransferAPDUResponse(ctx context.Context, apdu []byte) error {
	return m.expectOk(ctx, at.APDUCommand(apdu))
}

func (m *Modem) TransferAPDUResponseError(ctx context.Context) error {
	return m.expectOk(ctx, at.APDUErrorCommand())
}

func (m *Modem) TransferATRResponse(ctx context.Context, status rsim.SimStatus, atr []byte) error {
	return m.expectOk(ctx, at.ATRCommand(int(status), atr))
}

// RemoteSIMSupported queries AT+RSIMCAP? and reports whether remote SIM is
// both selected and supported.
func (m *Modem) RemoteSIMSupported(ctx context.Context) (bool, error) {
	resp, err := m.exec(ctx, at.CmdRSIMCapability)
	if err != nil {
		return false, fmt.Errorf("%s: %w", at.CmdRSIMCapability, err)
	}
	for line := range strings.SplitSeq(resp, "\n") {
		if !strings.HasPrefix(line, at.RespRSIMCapability) {
			continue
		}
		selected, supported, err := at.ParseCapability(line)
		if err != nil {
			return false, err
		}
		return selected && supported, nil
	}
	return false, fmt.Errorf("%w: no %s line in %q", at.ErrMalformed, at.RespRSIMCapability, resp)
}

// Serve dispatches remote SIM URCs to events until ctx is cancelled or the
// modem is closed. Malformed URCs and handler errors are logged and skipped.
func (m *Modem) Serve(ctx context.Context, events Events) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.loopCtx.Done():
			return ErrAlreadyClosed
		case urc := <-m.urcChan:
			m.dispatchURC(ctx, events, urc)
		}
	}
}

func (m *Modem) dispatchURC(ctx context.Context, events Events, urc string) {
	switch {
	case strings.HasPrefix(urc, at.UrcRSIMAction):
		code, err := at.ParseAction(urc)
		if err != nil {
			m.logger.Warn("Invalid SIM action URC", "urc", urc, "error", err)
			return
		}
		action := rsim.SimAction(code)
		if code < 0 || action > rsim.ActionPowerDown {
			m.logger.Warn("Unknown SIM action", "code", code)
			return
		}
		if err := events.HandleSimAction(ctx, action); err != nil {
			m.logger.Warn("SIM action rejected", "action", action, "error", err)
		}

	case strings.HasPrefix(urc, at.UrcRSIMAPDU):
		apdu, err := at.ParseAPDU(urc)
		if err != nil {
			m.logger.Warn("Invalid APDU URC", "urc", urc, "error", err)
			return
		}
		if err := events.HandleAPDU(ctx, apdu); err != nil {
			m.logger.Warn("APDU rejected", "error", err)
		}

	default:
		m.logger.Debug("Unhandled URC", "urc", urc)
	}
}
