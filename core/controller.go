package core

import (
	"io"

	"strobelink/calib"
	"strobelink/daisy"
	"strobelink/protocol"
	"strobelink/settings"
	"strobelink/storage"
	"strobelink/timing"
)

// Watchdog resets the board unless Update is called in time.
type Watchdog interface {
	Update()
}

// Phase is what the status indicator shows. It is updated at cycle
// boundaries, after the last strobe of the cycle went dark.
type Phase uint8

const (
	PhaseIdle Phase = iota // powered off
	PhaseStrobing
	PhaseExternal // waiting for or following the external trigger

	phaseUnknown Phase = 0xFF
)

// Indicator shows the loop phase, typically on a status LED.
type Indicator interface {
	Show(p Phase)
}

// ByteSource feeds console input to the controller.
type ByteSource interface {
	PopByte() (byte, bool)
}

// Options wires a Controller to its board.
type Options struct {
	GPIO      GPIODriver // defaults to MustGPIO()
	Pins      PinMap
	Store     *storage.Store // nil runs on defaults without persistence
	Input     ByteSource
	Output    io.Writer
	Watchdog  Watchdog
	Indicator Indicator
	Aux       AuxChannel
	// Delay busy-waits for the given number of microseconds.
	Delay func(us uint32)
	// Reset restarts the board; it is not expected to return.
	Reset func()
}

type modeRequest uint8

const (
	modeNone modeRequest = iota
	modeExternal
	modeInternal
)

// Controller is the strobe cycle scheduler. Step must be called from a
// single loop; OnCameraStrobe and OnDaisyEdge may be called from
// interrupt context.
type Controller struct {
	gpio      GPIODriver
	pins      PinMap
	store     *storage.Store
	out       io.Writer
	watchdog  Watchdog
	indicator Indicator
	aux       AuxChannel
	delay     func(us uint32)
	reset     func()

	cfg   settings.Config
	cycle cycleState
	sync  *daisy.Sync
	cal   calib.Engine
	meas  measurements
	errs  errorReporter
	con   console

	calFilter calib.Filter // written by OnCameraStrobe
	irq       irqState

	now      uint32
	lastNow  uint32
	uptimeUS uint64
	phase    Phase

	powerOn           bool
	imageCaptureOn    bool
	cameraTriggerHigh bool
	cameraWorks       bool
	errorLED          bool
	fanOn             bool
	propagation       uint8
	slaveThisCycle    bool

	inputFullCycle  uint32
	inputDuty       uint32
	powerOnReq      bool
	powerOffReq     bool
	modeReq         modeRequest
	statusRequested bool
	pendingCal      calib.Result
	calPending      bool

	triggered   bool
	triggeredAt uint32
}

// New loads the configuration, drives every output to its idle level and
// schedules the first cycle just after the current time.
func New(opts Options) (*Controller, error) {
	c := &Controller{
		gpio:      opts.GPIO,
		pins:      opts.Pins,
		store:     opts.Store,
		out:       opts.Output,
		watchdog:  opts.Watchdog,
		indicator: opts.Indicator,
		aux:       opts.Aux,
		delay:     opts.Delay,
		reset:     opts.Reset,
		phase:     phaseUnknown,
	}
	if c.gpio == nil {
		c.gpio = MustGPIO()
	}
	if c.out == nil {
		c.out = io.Discard
	}
	c.errs.out = c.out
	c.con.in = opts.Input

	if err := configurePins(c.gpio, c.pins); err != nil {
		return nil, err
	}
	c.daisyOut(daisy.NOP)

	c.cfg = settings.Default()
	if c.store != nil {
		cfg, initialized, err := c.store.Load()
		if err != nil {
			return nil, err
		}
		if initialized {
			DebugPrintln("storage: initialized bank " + utoa(uint32(c.store.Bank())))
		}
		c.cfg = cfg
	}

	// The table index follows the stored period even when an external
	// signal paces the cycle, so leaving external mode restores it.
	c.sync = daisy.New(c.cfg.FullCycleLenUS)
	if c.cfg.ExternalTriggerMode {
		c.cfg.FullCycleLenUS = settings.ExternalTriggerPeriodUS
	}
	c.recompute()

	c.now = GetTime()
	c.lastNow = c.now
	c.cycle.restart(c.now+bootLeadUS, &c.cfg)
	if c.aux != nil {
		c.aux.StartCycle(c.cycle.start)
	}

	io.WriteString(c.out, banner())
	return c, nil
}

func banner() string {
	return "Strobing Ctrl/strobelink V" + utoa(settings.FirmwareVersion) + "R\r\n"
}

// Step runs one pass of the control loop.
func (c *Controller) Step() {
	now := GetTime()
	c.now = now
	c.uptimeUS += uint64(now - c.lastNow)
	c.lastNow = now

	c.consumeIRQ()

	// Light transitions come first, right after reading the clock.
	turnedOn, turnedOff := false, false
	full := c.cfg.FullCycleLenUS
	if !c.cycle.pulseOn {
		if Reached(now, c.cycle.nextOn, full) {
			c.pulseOn(now)
			turnedOn = true
		} else {
			c.pollConsole(now)
		}
	} else if Reached(now, c.cycle.nextOff, full) {
		c.pulseOff(now)
		turnedOff = true
	}

	if c.aux != nil {
		c.aux.Poll(now, c.powerOn)
	}
	if c.watchdog != nil {
		c.watchdog.Update()
	}

	c.applyRequests()

	if c.cameraTriggerHigh && c.powerOn && Reached(now, c.cycle.cameraOff, full) {
		c.setPin(c.pins.CameraTrigger, false)
		c.cameraTriggerHigh = false
	}

	if turnedOn && c.cycle.nth == 0 {
		c.evaluateCalibration()
	}
	if turnedOff {
		c.paperwork(now)
	}
}

func (c *Controller) pulseOn(now uint32) {
	nth := c.cycle.nth
	if c.powerOn {
		c.setPin(c.pins.Light, true)
		if nth == 0 && !c.imageCaptureOn {
			c.wait(calib.OnDelayUS)
			c.imageCaptureOn = true
			c.setPin(c.pins.CameraTrigger, true)
			c.cameraTriggerHigh = true
			c.meas.image(now, c.cfg.ExternalTriggerMode)
		}
		// Return the bus to idle so the next CycleStart is a fresh edge.
		if nth == 1 || c.cfg.NoOfStrobes == 1 {
			c.daisyOut(daisy.NOP)
		}
	}
	if nth > 0 {
		c.meas.pulseStart(now)
	}
	RecordTiming(EvtPulseOn, uint8(nth), now, c.cycle.nextOn, 0)
	c.cycle.pulseOn = true
}

func (c *Controller) pulseOff(now uint32) {
	nth := c.cycle.nth
	last := c.cycle.last(&c.cfg)
	if c.powerOn {
		c.setPin(c.pins.Light, false)
		if last {
			c.daisyOut(daisy.CycleStart)
		}
	}
	if nth > 0 {
		c.meas.pulseEnd(now)
	}
	RecordTiming(EvtPulseOff, uint8(nth), now, c.cycle.nextOff, 0)

	if !last {
		c.cycle.nth++
	} else {
		c.rollCycle(now)
	}
	c.cycle.pulseOn = false
	c.cycle.schedule(&c.cfg)
}

// rollCycle advances to the next cycle after the last strobe.
func (c *Controller) rollCycle(now uint32) {
	if c.cfg.ExternalTriggerMode && c.powerOn {
		// One cycle per external pulse.
		c.powerOn = false
		RecordTiming(EvtPower, 0, now, 0, uint32(c.propagation))
	}
	c.cycle.start += c.cfg.FullCycleLenUS
	c.cycle.nth = 0
	slave := c.slaveThisCycle
	if slave {
		// Give the master half a pulse to start the next cycle before
		// continuing autonomously.
		c.slaveThisCycle = false
		c.cycle.start += c.cfg.LightsPulseLenUS >> 1
	}
	c.meas.rollCycle()
	if c.aux != nil {
		c.aux.StartCycle(c.cycle.start)
	}
	RecordTiming(EvtCycleRoll, 0, now, c.cycle.start, boolWord(slave))
}

// resync aligns the cycle to a CycleStart received from upstream.
func (c *Controller) resync(at uint32) {
	if c.cycle.pulseOn && c.powerOn {
		c.setPin(c.pins.Light, false)
	}
	c.cycle.restart(at, &c.cfg)
	c.slaveThisCycle = true
	if !c.powerOn {
		c.powerOn = true
		c.propagation = protocol.PropagationPowerOn
		RecordTiming(EvtPower, 0, at, 1, uint32(c.propagation))
	}
	c.triggered = true
	c.triggeredAt = at
	if c.aux != nil {
		c.aux.StartCycle(at)
	}
}

// applyRequests carries out mode and power changes requested by the
// console or the daisy chain.
func (c *Controller) applyRequests() {
	if c.modeReq != modeNone && c.cycle.nth == 0 && !c.cycle.pulseOn {
		c.applyMode()
	}

	if c.powerOnReq && c.cycle.nth == 0 && !c.cfg.ExternalTriggerMode {
		c.powerOnReq = false
		c.powerOn = true
		RecordTiming(EvtPower, 0, c.now, 1, uint32(c.propagation))
	}

	if c.powerOffReq {
		c.powerOffReq = false
		c.powerOn = false
		c.setPin(c.pins.Light, false)
		c.setPin(c.pins.CameraTrigger, false)
		c.cameraTriggerHigh = false
		c.imageCaptureOn = false
		if c.aux != nil {
			c.aux.Stop()
		}
		c.daisyOut(daisy.PowerOff)
		RecordTiming(EvtPower, 0, c.now, 0, uint32(c.propagation))
	}
}

func (c *Controller) applyMode() {
	req := c.modeReq
	c.modeReq = modeNone
	switch {
	case req == modeExternal && !c.cfg.ExternalTriggerMode:
		c.cfg.ExternalTriggerMode = true
		c.cfg.FullCycleLenUS = settings.ExternalTriggerPeriodUS
	case req == modeInternal && c.cfg.ExternalTriggerMode:
		c.cfg.ExternalTriggerMode = false
		c.cfg.FullCycleLenUS = c.sync.Period()
		c.sync.Forget()
	default:
		return
	}
	c.recompute()
	c.cycle.schedule(&c.cfg)
}

// recompute requantizes the strobe layout and restarts the measurement
// baselines.
func (c *Controller) recompute() {
	timing.Apply(&c.cfg)
	c.meas.reset(&c.cfg)
	c.sync.ResetVotes()
	if c.aux != nil {
		c.aux.Configure(c.cfg.FullCycleLenUS)
	}
	RecordTiming(EvtRecompute, 0, c.now, c.cfg.FullCycleLenUS, c.cfg.LightsPulseLenUS)
}

// paperwork runs after every pulse-off, in the gap before the next pulse.
func (c *Controller) paperwork(now uint32) {
	if c.cycle.last(&c.cfg) && c.powerOn {
		c.checkCameraLatch()
		c.selfCheck(now)
	}
	if c.cycle.nth == 0 {
		c.show(c.runPhase())
	}

	c.pollTrigger()

	if c.calPending {
		c.calPending = false
		c.applyCalibration(now)
	}

	switch {
	case c.changeStaged() && !c.cfg.ExternalTriggerMode:
		c.applyChange(now)
	case c.statusRequested:
		c.statusRequested = false
		c.writeStatus()
	case c.store != nil:
		if !c.store.Update() {
			c.store.Maintain(!c.powerOn)
		}
		if err := c.store.Err(); err != nil {
			RecordTiming(EvtStorage, 0, now, uint32(c.store.Bank()), 0)
			DebugPrintln("storage: " + err.Error())
		}
	}
}

// checkCameraLatch decides whether the camera answered the last trigger.
func (c *Controller) checkCameraLatch() {
	if !c.imageCaptureOn {
		return
	}
	started, done := c.takeExposureLatches()
	c.cameraWorks = started && done
	c.imageCaptureOn = false
}

func (c *Controller) selfCheck(now uint32) {
	if c.cfg.ExternalTriggerMode {
		return
	}
	if !c.cameraWorks {
		DebugPrintln("E" + itoa(int(protocol.ErrImageNotTaken)))
	}
	res := c.meas.check(&c.cfg)
	for i := 0; i < res.n; i++ {
		c.errs.report(res.codes[i], now)
	}
}

func (c *Controller) changeStaged() bool {
	return (c.inputFullCycle != 0 && c.inputFullCycle != c.cfg.FullCycleLenUS) ||
		(c.inputDuty != 0 && c.inputDuty != c.cfg.LightPulseDutyLenUS)
}

// applyChange installs a staged frequency or duty and restarts the cycle.
func (c *Controller) applyChange(now uint32) {
	if c.inputFullCycle != 0 {
		c.cfg.FullCycleLenUS = c.inputFullCycle
	}
	if c.inputDuty != 0 {
		c.cfg.LightPulseDutyLenUS = settings.ClampDuty(c.inputDuty)
		c.cfg.LightsPulseLenUS = settings.MaxDutyRatio * c.cfg.LightPulseDutyLenUS
	}
	c.inputFullCycle = 0
	c.inputDuty = 0

	c.recompute()
	c.restartCycle(now + c.cfg.LightsPulseLenUS)
	c.sync.Find(c.cfg.FullCycleLenUS)
	c.save()
}

func (c *Controller) restartCycle(start uint32) {
	c.cycle.restart(start, &c.cfg)
	if c.aux != nil {
		c.aux.StartCycle(start)
	}
}

// save stages a wear-leveled write of the configuration.
func (c *Controller) save() {
	if c.store == nil {
		return
	}
	c.store.BeginWrite(c.cfg)
	c.cfg.WriteCounter = c.store.WriteCounter()
}

// Status returns a snapshot for the status line.
func (c *Controller) Status() protocol.Status {
	return protocol.Status{
		FirmwareVersion:  settings.FirmwareVersion,
		FullCycleLenUS:   c.cfg.FullCycleLenUS,
		LightsPulseLenUS: c.cfg.LightsPulseLenUS,
		DutyLenUS:        c.cfg.LightPulseDutyLenUS,
		PowerOn:          c.powerOn,
		AutoMode:         c.cfg.AutoModeOn,
		CameraWorks:      c.cameraWorks,
		ErrorLED:         c.errorLED,
		FanOn:            c.fanOn,
		Propagation:      c.propagation,
		ExternalTrigger:  c.cfg.ExternalTriggerMode,
	}
}

func (c *Controller) writeStatus() {
	var buf [64]byte
	s := c.Status()
	c.out.Write(s.AppendTo(buf[:0]))
}

// Config returns a copy of the active configuration.
func (c *Controller) Config() settings.Config {
	return c.cfg
}

// PowerOn reports whether the lights and camera are driven.
func (c *Controller) PowerOn() bool {
	return c.powerOn
}

// Strobe returns the index of the current strobe within the cycle.
func (c *Controller) Strobe() uint16 {
	return c.cycle.nth
}

// DaisyIndex returns the selected daisy-chain table index.
func (c *Controller) DaisyIndex() int {
	return c.sync.Index()
}

// daisyOut drives a code onto the daisy-chain bus. The clock bit goes
// last, after the data lines have settled.
func (c *Controller) daisyOut(code daisy.Code) {
	b2, b1, b0 := code.Bits()
	c.setPin(c.pins.DaisyOut[2], b2)
	c.setPin(c.pins.DaisyOut[1], b1)
	c.wait(1)
	c.setPin(c.pins.DaisyOut[0], b0)
	RecordTiming(EvtDaisyOut, uint8(c.cycle.nth), c.now, uint32(code), 0)
}

func (c *Controller) setPin(pin GPIOPin, high bool) {
	if pin == NoPin {
		return
	}
	c.gpio.SetPin(pin, high)
}

func (c *Controller) wait(us uint32) {
	if c.delay != nil {
		c.delay(us)
	}
}

func (c *Controller) runPhase() Phase {
	switch {
	case c.cfg.ExternalTriggerMode:
		return PhaseExternal
	case c.powerOn:
		return PhaseStrobing
	}
	return PhaseIdle
}

func (c *Controller) show(p Phase) {
	if c.indicator == nil || c.phase == p {
		return
	}
	c.phase = p
	c.indicator.Show(p)
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
