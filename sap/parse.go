package sap

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrFormat is returned when a message fails structural validation: it is
// too short, declares too few parameters, or carries a parameter with an
// unexpected id or length.
//
// A well formed message whose values make no sense in the current context is
// not a format error.
var ErrFormat = errors.New("sap: malformed message")

// Param is a decoded parameter. Value aliases the message buffer.
type Param struct {
	ID    ParamID
	Value []byte
}

// ID returns the message id, or MsgUnknown for an empty message.
func ID(msg []byte) MessageID {
	if len(msg) == 0 {
		return MsgUnknown
	}
	return MessageID(msg[0])
}

// ParamCount returns the parameter count declared in the header.
func ParamCount(msg []byte) int {
	if len(msg) < 2 {
		return 0
	}
	return int(msg[1])
}

func paramOffset(index int) int {
	return LengthHeader + (index-1)*LengthParamSlot
}

// CheckParameter validates the index-th parameter (1-based) of msg.
//
// Every parameter before index is assumed to occupy a fixed eight byte slot,
// which holds for all SAP messages: variable length payloads (APDU, ATR) are
// always the last parameter. An expectedLength of 0 skips the length check.
func CheckParameter(msg []byte, expectedID ParamID, expectedLength int, index int) error {
	if index < 1 {
		return fmt.Errorf("%w: parameter index %d", ErrFormat, index)
	}
	if len(msg) < LengthHeader+index*LengthParamSlot {
		return fmt.Errorf("%w: %d bytes too short for parameter %d", ErrFormat, len(msg), index)
	}
	if count := ParamCount(msg); count < index {
		return fmt.Errorf("%w: %d parameters declared, need %d", ErrFormat, count, index)
	}

	off := paramOffset(index)
	if id := ParamID(msg[off]); id != expectedID {
		return fmt.Errorf("%w: parameter %d is %s, want %s", ErrFormat, index, id, expectedID)
	}
	if expectedLength != 0 {
		if l := int(binary.BigEndian.Uint16(msg[off+2:])); l != expectedLength {
			return fmt.Errorf("%w: %s length %d, want %d", ErrFormat, expectedID, l, expectedLength)
		}
	}
	return nil
}

// Uint8Param returns the first payload byte of the index-th parameter. The
// parameter must have been validated with CheckParameter.
func Uint8Param(msg []byte, index int) uint8 {
	return msg[paramOffset(index)+LengthParamHeader]
}

// Uint16Param returns the big endian two byte payload of the index-th
// parameter. The parameter must have been validated with CheckParameter.
func Uint16Param(msg []byte, index int) uint16 {
	off := paramOffset(index) + LengthParamHeader
	return binary.BigEndian.Uint16(msg[off:])
}

// PayloadParam returns the payload of the index-th parameter, bounded by its
// declared length. The parameter must have been validated with
// CheckParameter; a declared length running past the end of msg is a format
// error.
func PayloadParam(msg []byte, index int) ([]byte, error) {
	off := paramOffset(index)
	l := int(binary.BigEndian.Uint16(msg[off+2:]))
	start := off + LengthParamHeader
	if start+l > len(msg) {
		return nil, fmt.Errorf("%w: %s declares %d bytes, %d available",
			ErrFormat, ParamID(msg[off]), l, len(msg)-start)
	}
	return msg[start : start+l], nil
}

// Params walks every parameter of msg using the declared lengths.
func Params(msg []byte) ([]Param, error) {
	if len(msg) < LengthHeader {
		return nil, fmt.Errorf("%w: %d bytes too short for header", ErrFormat, len(msg))
	}

	count := ParamCount(msg)
	params := make([]Param, 0, count)
	off := LengthHeader
	for i := 0; i < count; i++ {
		if off+LengthParamHeader > len(msg) {
			return nil, fmt.Errorf("%w: parameter %d header truncated", ErrFormat, i+1)
		}
		id := ParamID(msg[off])
		l := int(binary.BigEndian.Uint16(msg[off+2:]))
		start := off + LengthParamHeader
		if start+l > len(msg) {
			return nil, fmt.Errorf("%w: parameter %d (%s) truncated", ErrFormat, i+1, id)
		}
		params = append(params, Param{ID: id, Value: msg[start : start+l]})
		off = start + l + padding(l)
	}
	return params, nil
}

// Describe renders msg on a single line for logging.
func Describe(msg []byte) string {
	var sb strings.Builder
	sb.WriteString(ID(msg).String())

	params, err := Params(msg)
	if err != nil {
		fmt.Fprintf(&sb, " malformed(% X)", msg)
		return sb.String()
	}
	for _, p := range params {
		fmt.Fprintf(&sb, " %s=%s", p.ID, strings.ToUpper(hex.EncodeToString(p.Value)))
	}
	return sb.String()
}
