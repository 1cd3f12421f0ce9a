package core

import (
	"sync/atomic"

	"strobelink/daisy"
	"strobelink/protocol"
)

// irqState is written by the interrupt entry points and consumed by the
// control loop. Each field has a single writer.
type irqState struct {
	cycleStartAt atomic.Uint32
	cycleStart   atomic.Bool
	powerOff     atomic.Bool

	exposureStart uint32 // camera ISR only
	startLatch    atomic.Bool
	doneLatch     atomic.Bool
}

// critical runs fn with the interrupt entry points masked.
func critical(fn func()) {
	state := disableInterrupts()
	fn()
	restoreInterrupts(state)
}

// OnCameraStrobe is the interrupt entry point for the camera STROBE_OUT
// line. A low level marks the start of an exposure, a high level its end.
func (c *Controller) OnCameraStrobe(high bool, at uint32) {
	if !high {
		c.irq.exposureStart = at
		c.irq.startLatch.Store(true)
		return
	}
	c.irq.doneLatch.Store(true)
	dur := at - c.irq.exposureStart
	critical(func() {
		c.calFilter.Add(dur)
	})
}

// OnDaisyEdge is the interrupt entry point for the daisy-chain clock line.
// Codes other than CycleStart and PowerOff are ignored.
func (c *Controller) OnDaisyEdge(code daisy.Code, at uint32) {
	switch code {
	case daisy.CycleStart:
		c.irq.cycleStartAt.Store(at)
		c.irq.cycleStart.Store(true)
	case daisy.PowerOff:
		c.irq.powerOff.Store(true)
	}
}

// ReadDaisyInput samples the daisy-chain data lines. The clock line is
// high by definition when its rising edge fires the interrupt.
func (c *Controller) ReadDaisyInput() daisy.Code {
	return daisy.FromBits(
		c.gpio.ReadPin(c.pins.DaisyIn[2]),
		c.gpio.ReadPin(c.pins.DaisyIn[1]),
		true,
	)
}

// consumeIRQ takes over everything the interrupt handlers latched since
// the previous pass.
func (c *Controller) consumeIRQ() {
	if c.irq.cycleStart.Swap(false) {
		at := c.irq.cycleStartAt.Load()
		RecordTiming(EvtDaisyIn, uint8(c.cycle.nth), at, uint32(daisy.CycleStart), 0)
		c.resync(at)
	}
	if c.irq.powerOff.Swap(false) {
		RecordTiming(EvtDaisyIn, uint8(c.cycle.nth), c.now, uint32(daisy.PowerOff), 0)
		if c.powerOn {
			c.powerOffReq = true
			c.propagation = protocol.PropagationPowerOff
		}
	}
}

// takeExposureLatches returns and clears the exposure latches.
func (c *Controller) takeExposureLatches() (started, done bool) {
	return c.irq.startLatch.Swap(false), c.irq.doneLatch.Swap(false)
}

// exposure reads the calibration filter.
func (c *Controller) exposure() (avg uint32, deriv int32) {
	critical(func() {
		avg, deriv = c.calFilter.Average()
	})
	return avg, deriv
}
