//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"strobelink/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareTime reads the low 32 bits of the 1 MHz timer. The strobe
// clock wraps every ~71 minutes; all comparisons are wrap-safe.
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer
func GetHardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UpdateSystemTime updates the core clock with hardware time
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}

// delayMicros busy-waits on the hardware timer. Used for the daisy bus
// settle time and the camera on-delay only.
func delayMicros(us uint32) {
	start := GetHardwareTime()
	for GetHardwareTime()-start < us {
	}
}
