package core

// TimerFreq is the resolution of the system clock: one tick per microsecond.
const TimerFreq = 1000000

// GetTime returns the current system time in microseconds. The value wraps
// every ~71.6 minutes; compare times with Reached, never with <.
func GetTime() uint32 {
	return loadClock()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(us uint32) {
	storeClock(us)
}

// AdvanceTime moves the clock forward by us.
func AdvanceTime(us uint32) {
	storeClock(loadClock() + us)
}

// Reached reports whether now is at or past target, where anything more
// than window after target counts as still in the future.
func Reached(now, target, window uint32) bool {
	return now-target < window
}
