//go:build rp2040

package main

import (
	"machine"
)

// InitUSB initializes USB serial communication
// On RP2040 machine.Serial is USB CDC, not UART; the baud rate is ignored.
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{BaudRate: 460800})
	if err != nil {
		return
	}
}

// USBAvailable returns the number of bytes available to read from USB
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte from USB
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes multiple bytes to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
