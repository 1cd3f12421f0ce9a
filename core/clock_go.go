//go:build !tinygo

package core

import "sync/atomic"

// Tests drive the clock with SetTime and AdvanceTime.
var nowUS atomic.Uint32

func loadClock() uint32 { return nowUS.Load() }

func storeClock(us uint32) { nowUS.Store(us) }
