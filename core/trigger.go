package core

import (
	"strobelink/settings"
	"strobelink/timing"
)

// pollTrigger handles a CycleStart taken over from the daisy ISR. In
// external-trigger mode it re-derives the cycle from the trigger
// interval; otherwise it scores the master period for drift.
func (c *Controller) pollTrigger() {
	if !c.triggered {
		return
	}
	c.triggered = false

	period, ok := c.sync.Mark(c.triggeredAt)
	if ok {
		RecordTiming(EvtTrigger, uint8(c.cycle.nth), c.now, period, 0)
	}

	if c.cfg.ExternalTriggerMode {
		c.externalRecompute(period, ok)
		// The last strobe is rarely reached between external pulses.
		c.checkCameraLatch()
		return
	}

	if !ok {
		return
	}
	if newPeriod, shifted := c.sync.Track(period); shifted {
		c.inputFullCycle = newPeriod
		RecordTiming(EvtDriftShift, 0, c.now, uint32(c.sync.Index()), newPeriod)
	}
}

// externalRecompute fits the strobe layout to the measured trigger
// interval. Without a previous trigger the default period is used.
func (c *Controller) externalRecompute(period uint32, ok bool) {
	full := uint32(settings.ExternalTriggerPeriodUS)
	if ok {
		full = clampPeriod(period)
		c.meas.triggerPeriod = period
	}
	c.cfg.FullCycleLenUS = full
	r := timing.ComputeExternal(full, c.cfg.LightsPulseLenUS)
	c.cfg.NoOfStrobes = r.NoOfStrobes
	c.cfg.LightsPulseLenUS = r.LightsPulseLenUS
	c.cfg.LightPulseDutyLenUS = r.LightPulseDutyLenUS
	c.meas.resetPulse(&c.cfg)
	if c.aux != nil {
		c.aux.Configure(full)
	}
	c.cycle.schedule(&c.cfg)
	RecordTiming(EvtRecompute, uint8(c.cycle.nth), c.now, full, c.cfg.LightsPulseLenUS)
}

func clampPeriod(us uint32) uint32 {
	if us < settings.MinCycleLenUS {
		return settings.MinCycleLenUS
	}
	if us > settings.ExternalTriggerPeriodUS {
		return settings.ExternalTriggerPeriodUS
	}
	return us
}
