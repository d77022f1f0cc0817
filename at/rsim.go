package at

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a remote SIM response or URC cannot be parsed.
var ErrMalformed = errors.New("at: malformed remote SIM line")

// StatusCommand builds AT+RSIMSTAT=<status>.
func StatusCommand(status int) string {
	return fmt.Sprintf("%s=%d", CmdRSIMStatus, status)
}

// APDUCommand builds AT+RSIMAPDU=0,"<hex>" forwarding a response APDU.
func APDUCommand(apdu []byte) string {
	return fmt.Sprintf(`%s=0,"%X"`, CmdRSIMAPDU, apdu)
}

// APDUErrorCommand builds AT+RSIMAPDU=1, telling the modem no response
// APDU is available.
func APDUErrorCommand() string {
	return CmdRSIMAPDU + "=1"
}

// ATRCommand builds AT+RSIMATR=<status>,"<hex>".
func ATRCommand(status int, atr []byte) string {
	return fmt.Sprintf(`%s=%d,"%X"`, CmdRSIMATR, status, atr)
}

// ParseCapability parses "+RSIMCAP: <selected>,<supported>".
func ParseCapability(line string) (selected, supported bool, err error) {
	fields, err := fieldsAfter(line, RespRSIMCapability, 2)
	if err != nil {
		return false, false, err
	}
	sel, err1 := strconv.Atoi(fields[0])
	sup, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return false, false, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return sel == 1, sup == 1, nil
}

// ParseAction parses "+RSIMACT: <action>" and returns the action code.
func ParseAction(line string) (int, error) {
	fields, err := fieldsAfter(line, UrcRSIMAction, 1)
	if err != nil {
		return 0, err
	}
	action, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return action, nil
}

// ParseAPDU parses `+RSIMAPDU: "<hex>"` and returns the command APDU.
func ParseAPDU(line string) ([]byte, error) {
	fields, err := fieldsAfter(line, UrcRSIMAPDU, 1)
	if err != nil {
		return nil, err
	}
	apdu, err := hex.DecodeString(strings.Trim(fields[0], `"`))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
	}
	return apdu, nil
}

func fieldsAfter(line, prefix string, n int) ([]string, error) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q lacks %q", ErrMalformed, line, prefix)
	}
	fields := strings.Split(strings.TrimSpace(rest), ",")
	if len(fields) != n {
		return nil, fmt.Errorf("%w: %q has %d fields, want %d", ErrMalformed, line, len(fields), n)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}
