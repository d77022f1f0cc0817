// Package sap encodes and validates SIM Access Profile messages.
//
// Every message starts with a four byte header followed by zero or more
// parameters:
//
//	MsgId(1) | ParamCount(1) | Reserved(2)
//	ParamId(1) | Reserved(1) | ParamLength(2, big endian) | payload | padding
//
// Parameter payloads are padded with zero bytes up to the next multiple of
// four, so a one or two byte parameter always occupies an eight byte slot.
//
// Building a request:
//
//	msg := sap.BuildConnectReq(276)
//
// Validating a response before reading it:
//
//	if err := sap.CheckParameter(msg, sap.ParamResultCode, sap.LengthResultCode, 1); err != nil {
//	    return err // errors.Is(err, sap.ErrFormat)
//	}
//	code := sap.ResultCode(sap.Uint8Param(msg, 1))
package sap
