//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqMu stands in for the interrupt mask on regular Go, so that the
// interrupt entry points can be driven from goroutines in tests.
var irqMu sync.Mutex

// disableInterrupts masks the simulated interrupt entry points
func disableInterrupts() State {
	irqMu.Lock()
	return 0
}

// restoreInterrupts unmasks them again
func restoreInterrupts(state State) {
	irqMu.Unlock()
}
