package at

const (
	// Terminal Control
	CRLF = "\r\n"
	// Prompt is the character the module emits when it is ready to take
	// an SMS body. Matched as a bare '>' since surrounding whitespace
	// varies by firmware revision.
	Prompt = ">"
	// CtrlZ terminates an SMS body and hands it to the network.
	CtrlZ = "\x1a"
	// Esc cancels an in-progress SMS prompt.
	Esc = "\x1b"

	// Response Codes
	OK       = "OK"
	ERROR    = "ERROR"
	CmeError = "+CME ERROR:"
	CmsError = "+CMS ERROR:"

	// SendConfirm is reported by the modem once the network accepted an SMS.
	SendConfirm = "+CMGS:"

	// Commands understood by the SIM7070G
	CmdAt            = "AT"
	CmdSetTextMode   = "AT+CMGF=1"
	CmdSMSParams     = "AT+CSMP=17,167,0,0"
	CmdRFOn          = "AT+CFUN=1"
	CmdRFOff         = "AT+CFUN=0"
	CmdGNSSPowerOn   = "AT+CGNSPWR=1"
	CmdGNSSPowerOff  = "AT+CGNSPWR=0"
	CmdFixQuery      = "AT+CGNSINF"
	CmdNetworkStatus = "AT+CREG?"
	CmdSignalQuality = "AT+CSQ"
	CmdOperator      = "AT+COPS?"

	// FixReportPrefix introduces the GNSS information record.
	FixReportPrefix = "+CGNSINF:"

	// Registration fragments accepted as "on the network".
	// 0,1 is the home network, 0,5 is roaming.
	RegisteredHome    = "0,1"
	RegisteredRoaming = "0,5"
)
