package core

// evaluateCalibration runs right after the first pulse of a cycle turned
// on. An accepted result is applied in the paperwork of the same strobe so
// the pulse already on is never cut short.
func (c *Controller) evaluateCalibration() {
	if !c.cfg.AutoModeOn || !c.cameraWorks {
		return
	}
	avg, deriv := c.exposure()
	last := c.cal.Last()
	res, ok := c.cal.Evaluate(avg, deriv)
	if !ok {
		return
	}
	c.pendingCal = res
	c.calPending = true
	DebugPrintln("calibration:" + itoa(int(deriv)) + "," + utoa(last) + "," +
		utoa(avg) + "," + utoa(res.PulseUS) + "," + utoa(res.DutyUS))
}

func (c *Controller) applyCalibration(now uint32) {
	res := c.pendingCal
	c.cfg.LightPulseDutyLenUS = res.DutyUS
	c.cfg.LightsPulseLenUS = res.PulseUS
	c.recompute()
	c.restartCycle(now + c.cfg.LightsPulseLenUS)
	RecordTiming(EvtCalibrate, 0, now, c.cal.Last(), c.cfg.LightPulseDutyLenUS)
}
