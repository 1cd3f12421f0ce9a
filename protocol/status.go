package protocol

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedStatus is returned for lines that are not status lines.
var ErrMalformedStatus = errors.New("protocol: malformed status line")

const statusFields = 11

// Status is the controller state reported by the 's' command.
type Status struct {
	FirmwareVersion  uint32
	FullCycleLenUS   uint32
	LightsPulseLenUS uint32
	DutyLenUS        uint32
	PowerOn          bool
	AutoMode         bool
	CameraWorks      bool
	ErrorLED         bool
	FanOn            bool
	Propagation      uint8
	ExternalTrigger  bool
}

// AppendTo appends the status line, including the CR LF terminator.
//
//	V<ver>,<full>,<pulse>,<duty>,<power>,<auto>,<camera>,<errled>,<fan>,<prop>,<ext>
func (s *Status) AppendTo(buf []byte) []byte {
	buf = append(buf, StatusPrefix)
	buf = appendUint(buf, s.FirmwareVersion)
	for _, v := range [...]uint32{
		s.FullCycleLenUS,
		s.LightsPulseLenUS,
		s.DutyLenUS,
		boolUint(s.PowerOn),
		boolUint(s.AutoMode),
		boolUint(s.CameraWorks),
		boolUint(s.ErrorLED),
		boolUint(s.FanOn),
		uint32(s.Propagation),
		boolUint(s.ExternalTrigger),
	} {
		buf = append(buf, ',')
		buf = appendUint(buf, v)
	}
	return append(buf, '\r', '\n')
}

// ParseStatus parses a status line produced by AppendTo.
func ParseStatus(line string) (Status, error) {
	line = strings.TrimSpace(line)
	if len(line) < 2 || line[0] != StatusPrefix {
		return Status{}, ErrMalformedStatus
	}
	fields := strings.Split(line[1:], ",")
	if len(fields) != statusFields {
		return Status{}, ErrMalformedStatus
	}

	var vals [statusFields]uint32
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return Status{}, ErrMalformedStatus
		}
		vals[i] = uint32(v)
	}
	for _, i := range []int{4, 5, 6, 7, 8, 10} {
		if vals[i] > 1 {
			return Status{}, ErrMalformedStatus
		}
	}
	if vals[9] > PropagationPowerOff {
		return Status{}, ErrMalformedStatus
	}

	return Status{
		FirmwareVersion:  vals[0],
		FullCycleLenUS:   vals[1],
		LightsPulseLenUS: vals[2],
		DutyLenUS:        vals[3],
		PowerOn:          vals[4] == 1,
		AutoMode:         vals[5] == 1,
		CameraWorks:      vals[6] == 1,
		ErrorLED:         vals[7] == 1,
		FanOn:            vals[8] == 1,
		Propagation:      uint8(vals[9]),
		ExternalTrigger:  vals[10] == 1,
	}, nil
}

// CameraFrequency returns the image frequency in Hz.
func (s Status) CameraFrequency() float64 {
	if s.FullCycleLenUS == 0 {
		return 0
	}
	return 1e6 / float64(s.FullCycleLenUS)
}

// StrobeFrequency returns the light pulse frequency in Hz.
func (s Status) StrobeFrequency() float64 {
	if s.LightsPulseLenUS == 0 {
		return 0
	}
	return 1e6 / float64(s.LightsPulseLenUS)
}

func boolUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// appendUint formats n in decimal without pulling in fmt.
func appendUint(buf []byte, n uint32) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	var tmp [10]byte
	pos := len(tmp)
	for n > 0 {
		pos--
		tmp[pos] = byte('0' + n%10)
		n /= 10
	}
	return append(buf, tmp[pos:]...)
}
