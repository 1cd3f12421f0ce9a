//go:build tinygo

package core

import "sync/atomic"

// nowUS is stored by the main loop and read from pin interrupts.
var nowUS uint32

func loadClock() uint32 { return atomic.LoadUint32(&nowUS) }

func storeClock(us uint32) { atomic.StoreUint32(&nowUS, us) }
