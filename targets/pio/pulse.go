package pio

// Pulse command word:
//
//	Bits 0-15:  high ticks
//	Bits 16-31: low ticks
//
// The state machine runs at 100 kHz (125 MHz / 1250), so one tick is 10 µs.
const (
	TickUS    = 10
	ClkDivInt = 1250

	loopTicks = 2 // set + final jmp
	maxTicks  = 0xFFFF
)

// pulseWord converts µs durations into a command word.
func pulseWord(highUS, lowUS uint32) uint32 {
	return ticks(highUS) | ticks(lowUS)<<16
}

// ticks returns the loop count that keeps a level for us.
func ticks(us uint32) uint32 {
	t := us / TickUS
	if t < loopTicks {
		return 0
	}
	t -= loopTicks
	if t > maxTicks {
		t = maxTicks
	}
	return t
}
