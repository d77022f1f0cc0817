package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Response Codes
	OK       = "OK"
	ERROR    = "ERROR"
	CmeError = "+CME ERROR:"

	// Setup commands
	CmdAt            = "AT"
	CmdEchoOff       = "ATE0"
	CmdVerboseErrors = "AT+CMEE=2"

	// Remote SIM commands
	CmdEnableRSIM     = "AT+RSIMURC=1" // enable +RSIMACT/+RSIMAPDU reporting
	CmdRSIMCapability = "AT+RSIMCAP?"
	CmdRSIMDisconnect = "AT+RSIMDISC"
	CmdRSIMStatus     = "AT+RSIMSTAT"
	CmdRSIMAPDU       = "AT+RSIMAPDU"
	CmdRSIMATR        = "AT+RSIMATR"

	// Data responses
	RespRSIMCapability = "+RSIMCAP:"

	// URCs (Unsolicited Result Codes)
	UrcRSIMAction = "+RSIMACT:"
	UrcRSIMAPDU   = "+RSIMAPDU:"
)

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK, ERROR
	TypeURC                       // Asynchronous notifications
	TypeData                      // Intermediate command output (+RSIMCAP: ...)
)
