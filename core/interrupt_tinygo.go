//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks the camera-strobe and daisy-chain pin interrupts
// (and everything else) and returns the previous mask.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the mask returned by disableInterrupts.
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
