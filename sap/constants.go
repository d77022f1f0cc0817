package sap

import "fmt"

// MessageID identifies a SAP message. It is the first byte of every message.
type MessageID uint8

const (
	MsgConnectReq                   MessageID = 0x00
	MsgConnectResp                  MessageID = 0x01
	MsgDisconnectReq                MessageID = 0x02
	MsgDisconnectResp               MessageID = 0x03
	MsgDisconnectInd                MessageID = 0x04
	MsgTransferAPDUReq              MessageID = 0x05
	MsgTransferAPDUResp             MessageID = 0x06
	MsgTransferATRReq               MessageID = 0x07
	MsgTransferATRResp              MessageID = 0x08
	MsgPowerSimOffReq               MessageID = 0x09
	MsgPowerSimOffResp              MessageID = 0x0A
	MsgPowerSimOnReq                MessageID = 0x0B
	MsgPowerSimOnResp               MessageID = 0x0C
	MsgResetSimReq                  MessageID = 0x0D
	MsgResetSimResp                 MessageID = 0x0E
	MsgTransferCardReaderStatusReq  MessageID = 0x0F
	MsgTransferCardReaderStatusResp MessageID = 0x10
	MsgStatusInd                    MessageID = 0x11
	MsgErrorResp                    MessageID = 0x12
	MsgSetTransportProtocolReq      MessageID = 0x13
	MsgSetTransportProtocolResp     MessageID = 0x14
	MsgUnknown                      MessageID = 0xFF // used when a message is too short to carry an id
)

var messageNames = map[MessageID]string{
	MsgConnectReq:                   "CONNECT_REQ",
	MsgConnectResp:                  "CONNECT_RESP",
	MsgDisconnectReq:                "DISCONNECT_REQ",
	MsgDisconnectResp:               "DISCONNECT_RESP",
	MsgDisconnectInd:                "DISCONNECT_IND",
	MsgTransferAPDUReq:              "TRANSFER_APDU_REQ",
	MsgTransferAPDUResp:             "TRANSFER_APDU_RESP",
	MsgTransferATRReq:               "TRANSFER_ATR_REQ",
	MsgTransferATRResp:              "TRANSFER_ATR_RESP",
	MsgPowerSimOffReq:               "POWER_SIM_OFF_REQ",
	MsgPowerSimOffResp:              "POWER_SIM_OFF_RESP",
	MsgPowerSimOnReq:                "POWER_SIM_ON_REQ",
	MsgPowerSimOnResp:               "POWER_SIM_ON_RESP",
	MsgResetSimReq:                  "RESET_SIM_REQ",
	MsgResetSimResp:                 "RESET_SIM_RESP",
	MsgTransferCardReaderStatusReq:  "TRANSFER_CARD_READER_STATUS_REQ",
	MsgTransferCardReaderStatusResp: "TRANSFER_CARD_READER_STATUS_RESP",
	MsgStatusInd:                    "STATUS_IND",
	MsgErrorResp:                    "ERROR_RESP",
	MsgSetTransportProtocolReq:      "SET_TRANSPORT_PROTOCOL_REQ",
	MsgSetTransportProtocolResp:     "SET_TRANSPORT_PROTOCOL_RESP",
}

func (id MessageID) String() string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	return fmt.Sprintf("MESSAGE_0x%02X", uint8(id))
}

// Known reports whether id is one of the message ids defined by SAP.
func (id MessageID) Known() bool {
	_, ok := messageNames[id]
	return ok
}

// ParamID identifies a parameter inside a SAP message.
type ParamID uint8

const (
	ParamMaxMsgSize        ParamID = 0x00
	ParamConnectionStatus  ParamID = 0x01
	ParamResultCode        ParamID = 0x02
	ParamDisconnectionType ParamID = 0x03
	ParamCommandAPDU       ParamID = 0x04
	ParamResponseAPDU      ParamID = 0x05
	ParamATR               ParamID = 0x06
	ParamCardReaderStatus  ParamID = 0x07
	ParamStatusChange      ParamID = 0x08
	ParamTransportProtocol ParamID = 0x09
	ParamCommandAPDU7816   ParamID = 0x10
)

var paramNames = map[ParamID]string{
	ParamMaxMsgSize:        "MaxMsgSize",
	ParamConnectionStatus:  "ConnectionStatus",
	ParamResultCode:        "ResultCode",
	ParamDisconnectionType: "DisconnectionType",
	ParamCommandAPDU:       "CommandAPDU",
	ParamResponseAPDU:      "ResponseAPDU",
	ParamATR:               "ATR",
	ParamCardReaderStatus:  "CardReaderStatus",
	ParamStatusChange:      "StatusChange",
	ParamTransportProtocol: "TransportProtocol",
	ParamCommandAPDU7816:   "CommandAPDU7816",
}

func (id ParamID) String() string {
	if name, ok := paramNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Param0x%02X", uint8(id))
}

// Wire lengths, in bytes.
const (
	LengthHeader       = 4
	LengthParamHeader  = 4
	LengthParamPayload = 4 // fixed-size payload slot, padding included
	LengthParamSlot    = LengthParamHeader + LengthParamPayload

	LengthMaxMsgSize        = 2
	LengthConnectionStatus  = 1
	LengthResultCode        = 1
	LengthDisconnectionType = 1
	LengthCardReaderStatus  = 1
	LengthStatusChange      = 1
	LengthTransportProtocol = 1
)

// ConnectionStatus is the value of the ConnectionStatus parameter of CONNECT_RESP.
type ConnectionStatus uint8

const (
	ConnectionOK                 ConnectionStatus = 0x00
	ConnectionServerNOK          ConnectionStatus = 0x01
	ConnectionMaxSizeUnsupported ConnectionStatus = 0x02
	ConnectionMsgSizeTooSmall    ConnectionStatus = 0x03
	ConnectionOKOngoingCall      ConnectionStatus = 0x04
)

func (s ConnectionStatus) String() string {
	switch s {
	case ConnectionOK:
		return "OK"
	case ConnectionServerNOK:
		return "server unable to establish connection"
	case ConnectionMaxSizeUnsupported:
		return "max message size not supported"
	case ConnectionMsgSizeTooSmall:
		return "message size too small"
	case ConnectionOKOngoingCall:
		return "OK, ongoing call"
	default:
		return fmt.Sprintf("connection status 0x%02X", uint8(s))
	}
}

// ResultCode is the value of the ResultCode parameter carried by most responses.
type ResultCode uint8

const (
	ResultOK                ResultCode = 0x00
	ResultNoReason          ResultCode = 0x01
	ResultCardNotAccessible ResultCode = 0x02
	ResultCardPoweredOff    ResultCode = 0x03
	ResultCardRemoved       ResultCode = 0x04
	ResultCardPoweredOn     ResultCode = 0x05
	ResultDataNotAvailable  ResultCode = 0x06
	ResultNotSupported      ResultCode = 0x07
)

func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultNoReason:
		return "error, no reason defined"
	case ResultCardNotAccessible:
		return "card not accessible"
	case ResultCardPoweredOff:
		return "card already powered off"
	case ResultCardRemoved:
		return "card removed"
	case ResultCardPoweredOn:
		return "card already powered on"
	case ResultDataNotAvailable:
		return "data not available"
	case ResultNotSupported:
		return "not supported"
	default:
		return fmt.Sprintf("result code 0x%02X", uint8(r))
	}
}

// DisconnectionType is the value of the DisconnectionType parameter of DISCONNECT_IND.
type DisconnectionType uint8

const (
	DisconnectGraceful  DisconnectionType = 0x00
	DisconnectImmediate DisconnectionType = 0x01
)

func (d DisconnectionType) String() string {
	switch d {
	case DisconnectGraceful:
		return "graceful"
	case DisconnectImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("disconnection type 0x%02X", uint8(d))
	}
}

// StatusChange is the value of the StatusChange parameter of STATUS_IND.
type StatusChange uint8

const (
	StatusUnknownError      StatusChange = 0x00
	StatusCardReset         StatusChange = 0x01
	StatusCardNotAccessible StatusChange = 0x02
	StatusCardRemoved       StatusChange = 0x03
	StatusCardInserted      StatusChange = 0x04
	StatusCardRecovered     StatusChange = 0x05
)

func (s StatusChange) String() string {
	switch s {
	case StatusUnknownError:
		return "unknown error"
	case StatusCardReset:
		return "card reset"
	case StatusCardNotAccessible:
		return "card not accessible"
	case StatusCardRemoved:
		return "card removed"
	case StatusCardInserted:
		return "card inserted"
	case StatusCardRecovered:
		return "card recovered"
	default:
		return fmt.Sprintf("status change 0x%02X", uint8(s))
	}
}
