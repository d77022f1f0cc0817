package rsim

import (
	"fmt"
	"strings"
)

// Wire message size limits used for connection negotiation.
const (
	// MaxMsgSize is the largest SAP message the client accepts. It is the
	// size announced in the first CONNECT_REQ of every session.
	MaxMsgSize = 276
	// MinMsgSize is the smallest server counter-proposal the client adopts.
	MinMsgSize = 200
)

// State is the top-level SAP connection state.
type State string

const (
	StateNotConnected State = "NotConnected"
	StateConnecting   State = "Connecting"
	StateConnected    State = "Connected"
)

// SubState tracks the request/response cycle in flight while connected.
type SubState uint8

const (
	SubIdle SubState = iota
	SubAPDU
	SubReset
	SubATRAfterReset
	SubATRAfterInsert
	SubPowerOff
	SubPowerOn
	SubDisconnect
)

func (s SubState) String() string {
	switch s {
	case SubIdle:
		return "Idle"
	case SubAPDU:
		return "Apdu"
	case SubReset:
		return "Reset"
	case SubATRAfterReset:
		return "AtrAfterReset"
	case SubATRAfterInsert:
		return "AtrAfterInsert"
	case SubPowerOff:
		return "PowerOff"
	case SubPowerOn:
		return "PowerOn"
	case SubDisconnect:
		return "Disconnect"
	default:
		return fmt.Sprintf("SubState(%d)", uint8(s))
	}
}

// MarshalText renders the sub-state by name in JSON snapshots.
func (s SubState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SimStatus is the SIM status reported to the modem.
type SimStatus uint8

const (
	SimUnknownError SimStatus = iota
	SimReset
	SimNotAccessible
	SimRemoved
	SimInserted
	SimRecovered
	SimAvailable
	SimNoLink
)

func (s SimStatus) String() string {
	switch s {
	case SimUnknownError:
		return "unknown-error"
	case SimReset:
		return "reset"
	case SimNotAccessible:
		return "not-accessible"
	case SimRemoved:
		return "removed"
	case SimInserted:
		return "inserted"
	case SimRecovered:
		return "recovered"
	case SimAvailable:
		return "available"
	case SimNoLink:
		return "no-link"
	default:
		return fmt.Sprintf("SimStatus(%d)", uint8(s))
	}
}

// SimAction is a request originating from the modem side.
type SimAction uint8

const (
	ActionConnect SimAction = iota
	ActionDisconnect
	ActionReset
	ActionPowerUp
	ActionPowerDown
)

var actionNames = [...]string{
	ActionConnect:    "connect",
	ActionDisconnect: "disconnect",
	ActionReset:      "reset",
	ActionPowerUp:    "power-up",
	ActionPowerDown:  "power-down",
}

func (a SimAction) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("SimAction(%d)", uint8(a))
}

// ParseSimAction parses the textual form produced by SimAction.String.
func ParseSimAction(s string) (SimAction, error) {
	for i, name := range actionNames {
		if strings.EqualFold(s, name) {
			return SimAction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown SIM action %q", ErrBadParameter, s)
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	State             State    `json:"state"`
	SubState          SubState `json:"subState"`
	MaxMsgSize        uint16   `json:"maxMsgSize"`
	HandlerRegistered bool     `json:"handlerRegistered"`
}
