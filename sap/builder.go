package sap

import (
	"encoding/binary"
	"fmt"
)

// MaxParamLength is the largest payload a single parameter can declare.
const MaxParamLength = 0xFFFF

// Builder assembles a SAP message parameter by parameter. The first error
// encountered is kept and reported by Bytes; later calls become no-ops.
type Builder struct {
	buf []byte
	err error
}

// NewMessage starts a message with the given id and no parameters.
func NewMessage(id MessageID) *Builder {
	b := &Builder{buf: make([]byte, LengthHeader, 64)}
	b.buf[0] = byte(id)
	return b
}

// Param appends a parameter. The payload is copied and padded with zero
// bytes to a four byte boundary.
func (b *Builder) Param(id ParamID, payload []byte) *Builder {
	if b.err != nil {
		return b
	}
	if b.buf[1] == 0xFF {
		b.err = fmt.Errorf("sap: too many parameters in %s", MessageID(b.buf[0]))
		return b
	}
	if len(payload) > MaxParamLength {
		b.err = fmt.Errorf("sap: %s payload of %d bytes exceeds %d", id, len(payload), MaxParamLength)
		return b
	}

	var hdr [LengthParamHeader]byte
	hdr[0] = byte(id)
	binary.BigEndian.PutUint16(hdr[2:], uint16(len(payload)))
	b.buf = append(b.buf, hdr[:]...)
	b.buf = append(b.buf, payload...)
	b.buf = append(b.buf, make([]byte, padding(len(payload)))...)
	b.buf[1]++
	return b
}

// Uint8 appends a one byte parameter.
func (b *Builder) Uint8(id ParamID, v uint8) *Builder {
	return b.Param(id, []byte{v})
}

// Uint16 appends a two byte big endian parameter.
func (b *Builder) Uint16(id ParamID, v uint16) *Builder {
	var p [2]byte
	binary.BigEndian.PutUint16(p[:], v)
	return b.Param(id, p[:])
}

// Len returns the current encoded length.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Bytes returns the encoded message.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.buf, nil
}

// must is used by the fixed-layout builders below, which cannot fail.
func (b *Builder) must() []byte {
	msg, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return msg
}

func padding(n int) int {
	return (4 - n%4) % 4
}

// BuildConnectReq builds CONNECT_REQ announcing maxMsgSize.
func BuildConnectReq(maxMsgSize uint16) []byte {
	return NewMessage(MsgConnectReq).Uint16(ParamMaxMsgSize, maxMsgSize).must()
}

// BuildDisconnectReq builds DISCONNECT_REQ.
func BuildDisconnectReq() []byte {
	return NewMessage(MsgDisconnectReq).must()
}

// BuildTransferAPDUReq builds TRANSFER_APDU_REQ carrying apdu.
func BuildTransferAPDUReq(apdu []byte) ([]byte, error) {
	return NewMessage(MsgTransferAPDUReq).Param(ParamCommandAPDU, apdu).Bytes()
}

// BuildTransferATRReq builds TRANSFER_ATR_REQ.
func BuildTransferATRReq() []byte {
	return NewMessage(MsgTransferATRReq).must()
}

// BuildPowerSimOffReq builds POWER_SIM_OFF_REQ.
func BuildPowerSimOffReq() []byte {
	return NewMessage(MsgPowerSimOffReq).must()
}

// BuildPowerSimOnReq builds POWER_SIM_ON_REQ.
func BuildPowerSimOnReq() []byte {
	return NewMessage(MsgPowerSimOnReq).must()
}

// BuildResetSimReq builds RESET_SIM_REQ.
func BuildResetSimReq() []byte {
	return NewMessage(MsgResetSimReq).must()
}

// BuildConnectResp builds CONNECT_RESP. The MaxMsgSize parameter is only
// included when the server rejects the client's size.
func BuildConnectResp(status ConnectionStatus, maxMsgSize uint16) []byte {
	b := NewMessage(MsgConnectResp).Uint8(ParamConnectionStatus, uint8(status))
	if status == ConnectionMaxSizeUnsupported {
		b.Uint16(ParamMaxMsgSize, maxMsgSize)
	}
	return b.must()
}

// BuildDisconnectResp builds DISCONNECT_RESP.
func BuildDisconnectResp() []byte {
	return NewMessage(MsgDisconnectResp).must()
}

// BuildDisconnectInd builds DISCONNECT_IND.
func BuildDisconnectInd(t DisconnectionType) []byte {
	return NewMessage(MsgDisconnectInd).Uint8(ParamDisconnectionType, uint8(t)).must()
}

// BuildTransferAPDUResp builds TRANSFER_APDU_RESP. The response APDU is only
// carried when result is ResultOK.
func BuildTransferAPDUResp(result ResultCode, apdu []byte) ([]byte, error) {
	b := NewMessage(MsgTransferAPDUResp).Uint8(ParamResultCode, uint8(result))
	if result == ResultOK {
		b.Param(ParamResponseAPDU, apdu)
	}
	return b.Bytes()
}

// BuildTransferATRResp builds TRANSFER_ATR_RESP. The ATR is only carried when
// result is ResultOK.
func BuildTransferATRResp(result ResultCode, atr []byte) ([]byte, error) {
	b := NewMessage(MsgTransferATRResp).Uint8(ParamResultCode, uint8(result))
	if result == ResultOK {
		b.Param(ParamATR, atr)
	}
	return b.Bytes()
}

// BuildPowerSimOffResp builds POWER_SIM_OFF_RESP.
func BuildPowerSimOffResp(result ResultCode) []byte {
	return NewMessage(MsgPowerSimOffResp).Uint8(ParamResultCode, uint8(result)).must()
}

// BuildPowerSimOnResp builds POWER_SIM_ON_RESP.
func BuildPowerSimOnResp(result ResultCode) []byte {
	return NewMessage(MsgPowerSimOnResp).Uint8(ParamResultCode, uint8(result)).must()
}

// BuildResetSimResp builds RESET_SIM_RESP.
func BuildResetSimResp(result ResultCode) []byte {
	return NewMessage(MsgResetSimResp).Uint8(ParamResultCode, uint8(result)).must()
}

// BuildStatusInd builds STATUS_IND.
func BuildStatusInd(change StatusChange) []byte {
	return NewMessage(MsgStatusInd).Uint8(ParamStatusChange, uint8(change)).must()
}

// BuildErrorResp builds ERROR_RESP.
func BuildErrorResp() []byte {
	return NewMessage(MsgErrorResp).must()
}
