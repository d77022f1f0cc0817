package at_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"i4.energy/across/rsim/at"
)

func TestCommands(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "status", got: at.StatusCommand(7), expected: "AT+RSIMSTAT=7"},
		{name: "APDU", got: at.APDUCommand([]byte{0x90, 0x00, 0x0a}), expected: `AT+RSIMAPDU=0,"90000A"`},
		{name: "APDU error", got: at.APDUErrorCommand(), expected: "AT+RSIMAPDU=1"},
		{name: "ATR", got: at.ATRCommand(1, []byte{0x3B, 0x02}), expected: `AT+RSIMATR=1,"3B02"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, tt.got)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		selected  bool
		supported bool
		wantErr   bool
	}{
		{name: "selected and supported", input: "+RSIMCAP: 1,1", selected: true, supported: true},
		{name: "supported only", input: "+RSIMCAP: 0,1", supported: true},
		{name: "no space", input: "+RSIMCAP:1,0", selected: true},
		{name: "missing field", input: "+RSIMCAP: 1", wantErr: true},
		{name: "not a number", input: "+RSIMCAP: a,1", wantErr: true},
		{name: "wrong prefix", input: "+CPIN: READY", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, supported, err := at.ParseCapability(tt.input)
			if tt.wantErr {
				if !errors.Is(err, at.ErrMalformed) {
					t.Errorf("Expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if selected != tt.selected || supported != tt.supported {
				t.Errorf("Expected (%v,%v), got (%v,%v)", tt.selected, tt.supported, selected, supported)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	action, err := at.ParseAction("+RSIMACT: 4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if action != 4 {
		t.Errorf("Expected 4, got %d", action)
	}

	if _, err := at.ParseAction("+RSIMACT: x"); !errors.Is(err, at.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestParseAPDU(t *testing.T) {
	apdu, err := at.ParseAPDU(`+RSIMAPDU: "00a40004026FB7"`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff([]byte{0x00, 0xA4, 0x00, 0x04, 0x02, 0x6F, 0xB7}, apdu); diff != "" {
		t.Errorf("APDU mismatch (-want +got):\n%s", diff)
	}

	for _, line := range []string{`+RSIMAPDU: "0A4"`, `+RSIMAPDU: "ZZ"`, `+RSIMAPDU: "00","01"`} {
		if _, err := at.ParseAPDU(line); !errors.Is(err, at.ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", line, err)
		}
	}
}
