package sap_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"i4.energy/across/rsim/sap"
)

func TestBuilders(t *testing.T) {
	apdu := []byte{0xA0, 0xA4, 0x00, 0x00, 0x02, 0x3F, 0x00}

	tests := []struct {
		name     string
		build    func() ([]byte, error)
		expected []byte
	}{
		{
			name:  "connect request",
			build: func() ([]byte, error) { return sap.BuildConnectReq(276), nil },
			expected: []byte{
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x02, 0x01, 0x14, 0x00, 0x00,
			},
		},
		{
			name:     "disconnect request",
			build:    func() ([]byte, error) { return sap.BuildDisconnectReq(), nil },
			expected: []byte{0x02, 0x00, 0x00, 0x00},
		},
		{
			name:  "transfer APDU request pads payload",
			build: func() ([]byte, error) { return sap.BuildTransferAPDUReq(apdu) },
			expected: []byte{
				0x05, 0x01, 0x00, 0x00,
				0x04, 0x00, 0x00, 0x07, 0xA0, 0xA4, 0x00, 0x00, 0x02, 0x3F, 0x00, 0x00,
			},
		},
		{
			name:  "transfer APDU request aligned payload",
			build: func() ([]byte, error) { return sap.BuildTransferAPDUReq([]byte{1, 2, 3, 4}) },
			expected: []byte{
				0x05, 0x01, 0x00, 0x00,
				0x04, 0x00, 0x00, 0x04, 0x01, 0x02, 0x03, 0x04,
			},
		},
		{
			name:     "transfer ATR request",
			build:    func() ([]byte, error) { return sap.BuildTransferATRReq(), nil },
			expected: []byte{0x07, 0x00, 0x00, 0x00},
		},
		{
			name:     "power off request",
			build:    func() ([]byte, error) { return sap.BuildPowerSimOffReq(), nil },
			expected: []byte{0x09, 0x00, 0x00, 0x00},
		},
		{
			name:     "power on request",
			build:    func() ([]byte, error) { return sap.BuildPowerSimOnReq(), nil },
			expected: []byte{0x0B, 0x00, 0x00, 0x00},
		},
		{
			name:     "reset request",
			build:    func() ([]byte, error) { return sap.BuildResetSimReq(), nil },
			expected: []byte{0x0D, 0x00, 0x00, 0x00},
		},
		{
			name:  "connect response OK",
			build: func() ([]byte, error) { return sap.BuildConnectResp(sap.ConnectionOK, 0), nil },
			expected: []byte{
				0x01, 0x01, 0x00, 0x00,
				0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
			},
		},
		{
			name:  "connect response with server size",
			build: func() ([]byte, error) { return sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, 200), nil },
			expected: []byte{
				0x01, 0x02, 0x00, 0x00,
				0x01, 0x00, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x02, 0x00, 0xC8, 0x00, 0x00,
			},
		},
		{
			name:  "APDU response error omits payload",
			build: func() ([]byte, error) { return sap.BuildTransferAPDUResp(sap.ResultCardRemoved, []byte{0x90, 0x00}) },
			expected: []byte{
				0x06, 0x01, 0x00, 0x00,
				0x02, 0x00, 0x00, 0x01, 0x04, 0x00, 0x00, 0x00,
			},
		},
		{
			name:  "ATR response",
			build: func() ([]byte, error) { return sap.BuildTransferATRResp(sap.ResultOK, []byte{0x3B, 0x02, 0x14, 0x50}) },
			expected: []byte{
				0x08, 0x02, 0x00, 0x00,
				0x02, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
				0x06, 0x00, 0x00, 0x04, 0x3B, 0x02, 0x14, 0x50,
			},
		},
		{
			name:  "status indication",
			build: func() ([]byte, error) { return sap.BuildStatusInd(sap.StatusCardReset), nil },
			expected: []byte{
				0x11, 0x01, 0x00, 0x00,
				0x08, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00,
			},
		},
		{
			name:  "disconnect indication",
			build: func() ([]byte, error) { return sap.BuildDisconnectInd(sap.DisconnectImmediate), nil },
			expected: []byte{
				0x04, 0x01, 0x00, 0x00,
				0x03, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00,
			},
		},
		{
			name:     "error response",
			build:    func() ([]byte, error) { return sap.BuildErrorResp(), nil },
			expected: []byte{0x12, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("message mismatch (-want +got):\n%s", diff)
			}
			if len(got)%4 != 0 {
				t.Errorf("length %d is not a multiple of 4", len(got))
			}
		})
	}
}

func TestBuilderRejectsOversizedPayload(t *testing.T) {
	_, err := sap.BuildTransferAPDUReq(make([]byte, sap.MaxParamLength+1))
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestCheckParameter(t *testing.T) {
	statusInd := sap.BuildStatusInd(sap.StatusCardInserted)

	tests := []struct {
		name    string
		msg     []byte
		id      sap.ParamID
		length  int
		index   int
		wantErr bool
	}{
		{
			name:   "valid",
			msg:    statusInd,
			id:     sap.ParamStatusChange,
			length: sap.LengthStatusChange,
			index:  1,
		},
		{
			name:    "too short",
			msg:     statusInd[:11],
			id:      sap.ParamStatusChange,
			length:  sap.LengthStatusChange,
			index:   1,
			wantErr: true,
		},
		{
			name:    "header only",
			msg:     []byte{0x11, 0x01, 0x00, 0x00},
			id:      sap.ParamStatusChange,
			index:   1,
			wantErr: true,
		},
		{
			name:    "count too low",
			msg:     []byte{0x11, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00},
			id:      sap.ParamStatusChange,
			length:  sap.LengthStatusChange,
			index:   1,
			wantErr: true,
		},
		{
			name:    "wrong id",
			msg:     statusInd,
			id:      sap.ParamResultCode,
			length:  sap.LengthResultCode,
			index:   1,
			wantErr: true,
		},
		{
			name:    "wrong length",
			msg:     statusInd,
			id:      sap.ParamStatusChange,
			length:  2,
			index:   1,
			wantErr: true,
		},
		{
			name:  "length check skipped",
			msg:   statusInd,
			id:    sap.ParamStatusChange,
			index: 1,
		},
		{
			name:    "second parameter missing",
			msg:     statusInd,
			id:      sap.ParamATR,
			index:   2,
			wantErr: true,
		},
		{
			name:    "zero index",
			msg:     statusInd,
			id:      sap.ParamStatusChange,
			index:   0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sap.CheckParameter(tt.msg, tt.id, tt.length, tt.index)
			if tt.wantErr {
				if !errors.Is(err, sap.ErrFormat) {
					t.Errorf("expected ErrFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParameterAccessors(t *testing.T) {
	msg := sap.BuildConnectResp(sap.ConnectionMaxSizeUnsupported, 250)

	if err := sap.CheckParameter(msg, sap.ParamConnectionStatus, sap.LengthConnectionStatus, 1); err != nil {
		t.Fatalf("status: %v", err)
	}
	if got := sap.ConnectionStatus(sap.Uint8Param(msg, 1)); got != sap.ConnectionMaxSizeUnsupported {
		t.Errorf("status = %v, want %v", got, sap.ConnectionMaxSizeUnsupported)
	}

	if err := sap.CheckParameter(msg, sap.ParamMaxMsgSize, sap.LengthMaxMsgSize, 2); err != nil {
		t.Fatalf("size: %v", err)
	}
	if got := sap.Uint16Param(msg, 2); got != 250 {
		t.Errorf("size = %d, want 250", got)
	}

	atr, _ := sap.BuildTransferATRResp(sap.ResultOK, []byte{0x3B, 0x9F, 0x95})
	if err := sap.CheckParameter(atr, sap.ParamATR, 0, 2); err != nil {
		t.Fatalf("atr: %v", err)
	}
	payload, err := sap.PayloadParam(atr, 2)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if diff := cmp.Diff([]byte{0x3B, 0x9F, 0x95}, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestPayloadParamTruncated(t *testing.T) {
	msg := []byte{
		0x06, 0x02, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
		0x05, 0x00, 0x00, 0x10, 0x90, 0x00, 0x00, 0x00,
	}
	if err := sap.CheckParameter(msg, sap.ParamResponseAPDU, 0, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sap.PayloadParam(msg, 2); !errors.Is(err, sap.ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestID(t *testing.T) {
	if got := sap.ID(nil); got != sap.MsgUnknown {
		t.Errorf("ID(nil) = %v, want %v", got, sap.MsgUnknown)
	}
	if got := sap.ID([]byte{0x11}); got != sap.MsgStatusInd {
		t.Errorf("ID = %v, want %v", got, sap.MsgStatusInd)
	}
	if sap.MessageID(0x42).Known() {
		t.Error("0x42 reported as known")
	}
}

func TestParams(t *testing.T) {
	msg, _ := sap.BuildTransferAPDUResp(sap.ResultOK, []byte{0x90, 0x00})

	got, err := sap.Params(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []sap.Param{
		{ID: sap.ParamResultCode, Value: []byte{0x00}},
		{ID: sap.ParamResponseAPDU, Value: []byte{0x90, 0x00}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	if _, err := sap.Params(msg[:10]); !errors.Is(err, sap.ErrFormat) {
		t.Errorf("expected ErrFormat for truncated message, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	got := sap.Describe(sap.BuildConnectReq(276))
	if got != "CONNECT_REQ MaxMsgSize=0114" {
		t.Errorf("Describe = %q", got)
	}
	if got := sap.Describe([]byte{0x05, 0x01}); !strings.Contains(got, "malformed") {
		t.Errorf("Describe truncated = %q", got)
	}
}
