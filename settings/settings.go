// Package settings holds the persisted controller configuration record.
package settings

import (
	"encoding/binary"
	"errors"
)

// Firmware identity
const (
	FirmwareVersion = 48
	Magic           = 1100 + FirmwareVersion
)

// Default timing: 5 Hz camera frequency, 200 Hz strobing
const (
	ImageFrequencyHz        = 5
	PulsingFrequencyHz      = 200
	DefaultFullCycleLenUS   = 1000000 / ImageFrequencyHz
	DefaultLightsPulseLenUS = 1000000 / PulsingFrequencyHz
	ExternalTriggerPeriodUS = 2000000
)

// Duty limits. The duty may never exceed 1/MaxDutyRatio of the pulse period.
const (
	MinDutyLenUS = 200
	MaxDutyLenUS = 1800
	MaxDutyRatio = 11
)

// Frequency limits accepted from the console
const (
	MinFrequencyHz = 1
	MaxFrequencyHz = 30
	MinCycleLenUS  = ((1000000 / MaxFrequencyHz) >> 2) << 2
)

// RecordSize is the encoded size of Config in bytes.
const RecordSize = 18

// Byte offsets inside the encoded record.
const (
	offWriteCounter = 0
	offAutoMode     = 2
	offStrobes      = 3
	offExtTrigger   = 5
	offFullCycle    = 6
	offPulse        = 10
	offDuty         = 14
)

var (
	ErrShortRecord = errors.New("settings: record too short")
	ErrInvalid     = errors.New("settings: invalid configuration")
)

// Config is the persisted configuration record.
type Config struct {
	WriteCounter        uint16
	AutoModeOn          bool
	NoOfStrobes         uint16
	ExternalTriggerMode bool
	FullCycleLenUS      uint32
	LightsPulseLenUS    uint32
	LightPulseDutyLenUS uint32
}

// Default returns the factory configuration.
func Default() Config {
	return Config{
		WriteCounter:        0,
		AutoModeOn:          true,
		NoOfStrobes:         DefaultFullCycleLenUS / DefaultLightsPulseLenUS,
		ExternalTriggerMode: false,
		FullCycleLenUS:      DefaultFullCycleLenUS,
		LightsPulseLenUS:    DefaultLightsPulseLenUS,
		LightPulseDutyLenUS: DefaultLightsPulseLenUS / MaxDutyRatio,
	}
}

// Validate checks the record invariants.
func (c *Config) Validate() error {
	switch {
	case c.NoOfStrobes == 0:
		return ErrInvalid
	case c.FullCycleLenUS == 0 || c.LightsPulseLenUS == 0:
		return ErrInvalid
	case c.LightPulseDutyLenUS == 0 || c.LightPulseDutyLenUS >= c.LightsPulseLenUS:
		return ErrInvalid
	case c.LightsPulseLenUS > c.FullCycleLenUS:
		return ErrInvalid
	}
	return nil
}

// MarshalTo encodes the record into buf, which must hold RecordSize bytes.
func (c *Config) MarshalTo(buf []byte) error {
	if len(buf) < RecordSize {
		return ErrShortRecord
	}
	binary.LittleEndian.PutUint16(buf[offWriteCounter:], c.WriteCounter)
	buf[offAutoMode] = boolByte(c.AutoModeOn)
	binary.LittleEndian.PutUint16(buf[offStrobes:], c.NoOfStrobes)
	buf[offExtTrigger] = boolByte(c.ExternalTriggerMode)
	binary.LittleEndian.PutUint32(buf[offFullCycle:], c.FullCycleLenUS)
	binary.LittleEndian.PutUint32(buf[offPulse:], c.LightsPulseLenUS)
	binary.LittleEndian.PutUint32(buf[offDuty:], c.LightPulseDutyLenUS)
	return nil
}

// UnmarshalBinary decodes a record produced by MarshalTo.
func (c *Config) UnmarshalBinary(buf []byte) error {
	if len(buf) < RecordSize {
		return ErrShortRecord
	}
	c.WriteCounter = binary.LittleEndian.Uint16(buf[offWriteCounter:])
	c.AutoModeOn = buf[offAutoMode] != 0
	c.NoOfStrobes = binary.LittleEndian.Uint16(buf[offStrobes:])
	c.ExternalTriggerMode = buf[offExtTrigger] != 0
	c.FullCycleLenUS = binary.LittleEndian.Uint32(buf[offFullCycle:])
	c.LightsPulseLenUS = binary.LittleEndian.Uint32(buf[offPulse:])
	c.LightPulseDutyLenUS = binary.LittleEndian.Uint32(buf[offDuty:])
	return nil
}

// PutWriteCounter patches the write counter of an encoded record in place.
func PutWriteCounter(buf []byte, n uint16) {
	binary.LittleEndian.PutUint16(buf[offWriteCounter:], n)
}

// CycleLenForHz returns the cycle period for a camera frequency, rounded
// down to a multiple of 4 µs.
func CycleLenForHz(hz uint32) uint32 {
	if hz == 0 {
		return 0
	}
	return ((1000000 / hz) >> 2) << 2
}

// ClampDuty limits a duty length to [MinDutyLenUS, MaxDutyLenUS].
func ClampDuty(us uint32) uint32 {
	if us < MinDutyLenUS {
		return MinDutyLenUS
	}
	if us > MaxDutyLenUS {
		return MaxDutyLenUS
	}
	return us
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
