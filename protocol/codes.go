package protocol

// ErrorCode is a numeric controller error. The values of the controller
// codes (0..7) must never change.
type ErrorCode uint8

// Controller codes
const (
	OK                       ErrorCode = 0
	ErrFrequencyOutOfRange   ErrorCode = 1
	ErrUnknownCommand        ErrorCode = 2
	ErrImageNotTaken         ErrorCode = 3
	ErrImageFrequencyBad     ErrorCode = 4
	ErrPulseFrequencyBad     ErrorCode = 5
	ErrPulseDutyBad          ErrorCode = 6
	ErrPropagationOutOfRange ErrorCode = 7
)

// Host side codes, never sent by the controller
const (
	ErrNoClient          ErrorCode = 8
	ErrUnknownController ErrorCode = 9
	ErrNotConnected      ErrorCode = 10
	ErrConnectionFailed  ErrorCode = 11
	ErrCommunication     ErrorCode = 12
	ErrBusy              ErrorCode = 13
	ErrFlashToolFailed   ErrorCode = 14
	ErrFirmwareNotFound  ErrorCode = 15
	ErrUnknown           ErrorCode = 16
)

// NumCodes is one past the highest code.
const NumCodes = 17

var codeNames = [NumCodes]string{
	OK:                       "OK",
	ErrFrequencyOutOfRange:   "Image Frequency Out of Range",
	ErrUnknownCommand:        "Unknown Command",
	ErrImageNotTaken:         "Image Not Taken",
	ErrImageFrequencyBad:     "Bad Image Frequency",
	ErrPulseFrequencyBad:     "Bad Pulse Frequency",
	ErrPulseDutyBad:          "Bad Pulse Duty Length",
	ErrPropagationOutOfRange: "Propagation Out of Range",
	ErrNoClient:              "No Client Available",
	ErrUnknownController:     "Unknown Controller Error",
	ErrNotConnected:          "Controller Not Connected",
	ErrConnectionFailed:      "Could Not Establish Connection",
	ErrCommunication:         "Communication Failure",
	ErrBusy:                  "Cannot Flash While Connected",
	ErrFlashToolFailed:       "Flash Tool Failed",
	ErrFirmwareNotFound:      "Firmware Image Not Found",
	ErrUnknown:               "Unknown Error",
}

func (c ErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return codeNames[ErrUnknown]
}

// FromController reports whether the code can be sent by the controller.
func (c ErrorCode) FromController() bool {
	return c <= ErrPropagationOutOfRange
}
