// Package protocol defines the text protocol spoken on the controller's
// serial console: single-letter commands, numeric replies and the status
// line.
package protocol

// Serial settings of the controller console
const (
	Baud = 460800

	// OutputMax bounds the buffered console output between drains
	OutputMax = 1024

	// CommandTimeoutMS drops a half-typed numeric argument
	CommandTimeoutMS = 1000
)

// Command letters. Lower case switches a feature on, upper case off.
const (
	CmdHelp         = 'h'
	CmdRestart      = 'r'
	CmdSave         = 'e'
	CmdStatus       = 's'
	CmdFactoryReset = '0'

	CmdErrorLEDOn  = 'n'
	CmdErrorLEDOff = 'N'
	CmdFanOn       = 'v'
	CmdFanOff      = 'V'
	CmdDebugOn     = 'd'
	CmdDebugOff    = 'D'
	CmdAutoOn      = 'a'
	CmdAutoOff     = 'A'
	CmdPowerOn     = 'p'
	CmdPowerOff    = 'P'
	CmdExternalOn  = 't'
	CmdExternalOff = 'T'

	// Commands taking a decimal argument terminated by CR or LF
	CmdFrequency   = 'f'
	CmdDuty        = 'l'
	CmdPropagation = 'b'
)

// Argument limits
const (
	MinFrequencyHz = 1
	MaxFrequencyHz = 30
	MinDutyArgUS   = 50
	MaxDutyArgUS   = 5000
)

// Propagation modes report how the last power transition was caused.
const (
	PropagationNone     = 0
	PropagationPowerOn  = 1
	PropagationPowerOff = 2
)

// StatusPrefix starts every status line.
const StatusPrefix = 'V'

// Reply builds the console reply for a code: "0" or "E<code>".
func Reply(code ErrorCode) []byte {
	if code == OK {
		return []byte("0\r\n")
	}
	buf := make([]byte, 0, 6)
	buf = append(buf, 'E')
	buf = appendUint(buf, uint32(code))
	return append(buf, '\r', '\n')
}
