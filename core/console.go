package core

import (
	"io"

	"strobelink/protocol"
	"strobelink/settings"
)

const (
	consoleBufSize   = 16
	commandTimeoutUS = protocol.CommandTimeoutMS * 1000
)

// console accumulates a command with a numeric argument, e.g. "f10\r".
type console struct {
	in         ByteSource
	buf        [consoleBufSize]byte
	n          int
	lastCharAt uint32
}

func (k *console) append(b byte) {
	if k.n < len(k.buf) {
		k.buf[k.n] = b
		k.n++
	}
}

// pollConsole handles at most one input byte.
func (c *Controller) pollConsole(now uint32) {
	k := &c.con
	if k.in == nil {
		return
	}
	if k.n > 0 && now-k.lastCharAt > commandTimeoutUS {
		k.n = 0
	}
	b, ok := k.in.PopByte()
	if !ok {
		return
	}
	k.lastCharAt = now
	c.HandleByte(b)
}

// HandleByte feeds one console character. Letter commands act only when
// no argument is being typed; otherwise the letter joins the argument.
func (c *Controller) HandleByte(b byte) {
	k := &c.con
	if b == '\r' || b == '\n' {
		c.finishCommand()
		return
	}
	if cmd, ok := globalRegistry.Lookup(b); ok && !cmd.TakesArg && (cmd.Immediate || k.n == 0) {
		c.reply(cmd.Handler(c, b, 0))
		return
	}
	k.append(b)
}

func (c *Controller) finishCommand() {
	k := &c.con
	if k.n == 0 {
		return
	}
	letter := k.buf[0]
	arg := parseArg(k.buf[1:k.n])
	k.n = 0

	if cmd, ok := globalRegistry.Lookup(letter); ok && !cmd.TakesArg {
		c.reply(protocol.ErrUnknownCommand)
		return
	}
	code, _ := globalRegistry.Dispatch(c, letter, arg)
	c.reply(code)
}

// parseArg reads leading decimal digits and ignores the rest. An empty
// argument is zero.
func parseArg(b []byte) uint32 {
	var v uint32
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			break
		}
		if v > (0xFFFFFFFF-9)/10 {
			return 0xFFFFFFFF
		}
		v = v*10 + uint32(ch-'0')
	}
	return v
}

func (c *Controller) reply(code protocol.ErrorCode) {
	switch code {
	case replyNone:
	case protocol.OK:
		c.out.Write(protocol.Reply(protocol.OK))
	default:
		c.errs.report(code, c.now)
	}
}

func (c *Controller) restart() {
	if c.store != nil {
		if err := c.store.Flush(); err != nil {
			DebugPrintln("storage: " + err.Error())
		}
	}
	if c.reset != nil {
		c.reset()
	}
}

func init() {
	RegisterCommand(Command{Letter: protocol.CmdHelp, Usage: "h", Help: "help", Handler: cmdHelp})
	RegisterCommand(Command{Letter: protocol.CmdRestart, Usage: "r", Help: "restart controller", Immediate: true, Handler: cmdRestart})
	RegisterCommand(Command{Letter: protocol.CmdSave, Usage: "e", Help: "save configuration", Immediate: true, Handler: cmdSave})
	RegisterCommand(Command{Letter: protocol.CmdStatus, Usage: "s", Help: "return config string", Handler: cmdStatus})
	RegisterCommand(Command{Letter: protocol.CmdFactoryReset, Usage: "0", Help: "reset to factory settings", Handler: cmdFactoryReset})
	RegisterCommand(Command{Letter: protocol.CmdErrorLEDOn, Usage: "n/N", Help: "error LED on/off", Handler: cmdErrorLED})
	RegisterCommand(Command{Letter: protocol.CmdErrorLEDOff, Handler: cmdErrorLED})
	RegisterCommand(Command{Letter: protocol.CmdFanOn, Usage: "v/V", Help: "fan on/off", Handler: cmdFan})
	RegisterCommand(Command{Letter: protocol.CmdFanOff, Handler: cmdFan})
	RegisterCommand(Command{Letter: protocol.CmdDebugOn, Usage: "d/D", Help: "debugging mode on/off", Handler: cmdDebug})
	RegisterCommand(Command{Letter: protocol.CmdDebugOff, Handler: cmdDebug})
	RegisterCommand(Command{Letter: protocol.CmdAutoOn, Usage: "a/A", Help: "auto calibration mode on/off", Handler: cmdAuto})
	RegisterCommand(Command{Letter: protocol.CmdAutoOff, Handler: cmdAuto})
	RegisterCommand(Command{Letter: protocol.CmdPowerOn, Usage: "p/P", Help: "power on/off", Handler: cmdPower})
	RegisterCommand(Command{Letter: protocol.CmdPowerOff, Handler: cmdPower})
	RegisterCommand(Command{Letter: protocol.CmdFrequency, Usage: "f<Hz><CR>", Help: "set frequency", TakesArg: true, Handler: cmdFrequency})
	RegisterCommand(Command{Letter: protocol.CmdDuty, Usage: "l<us><CR>", Help: "length of strobing pulse", TakesArg: true, Handler: cmdDuty})
	RegisterCommand(Command{Letter: protocol.CmdPropagation, Usage: "b<no><CR>", Help: "propagation mode", TakesArg: true, Handler: cmdPropagation})
	RegisterCommand(Command{Letter: protocol.CmdExternalOn, Usage: "t/T", Help: "external trigger mode on/off", Handler: cmdExternal})
	RegisterCommand(Command{Letter: protocol.CmdExternalOff, Handler: cmdExternal})
}

func cmdHelp(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	c.writeHelp()
	return replyNone
}

func cmdRestart(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	c.restart()
	return replyNone
}

func cmdSave(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	c.save()
	return protocol.OK
}

// cmdStatus answers at once when idle. While strobing the line is written
// in the paperwork phase so it cannot delay a pulse.
func cmdStatus(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	if c.powerOn {
		c.statusRequested = true
	} else {
		c.writeStatus()
	}
	return replyNone
}

func cmdFactoryReset(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	if c.store != nil {
		if err := c.store.Write(settings.Default()); err != nil {
			DebugPrintln("storage: " + err.Error())
		}
	}
	c.reply(protocol.OK)
	c.restart()
	return replyNone
}

func cmdErrorLED(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	c.errorLED = letter == protocol.CmdErrorLEDOn
	c.setPin(c.pins.ErrorLED, c.errorLED)
	return protocol.OK
}

func cmdFan(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	c.fanOn = letter == protocol.CmdFanOn
	c.setPin(c.pins.Fan, c.fanOn)
	return protocol.OK
}

func cmdDebug(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	on := letter == protocol.CmdDebugOn
	if !on && IsDebugEnabled() {
		DumpTimingRing()
	}
	SetDebugEnabled(on)
	return protocol.OK
}

func cmdAuto(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	c.cfg.AutoModeOn = letter == protocol.CmdAutoOn
	return protocol.OK
}

func cmdPower(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	switch {
	case letter == protocol.CmdPowerOn && !c.powerOn:
		c.powerOnReq = true
	case letter == protocol.CmdPowerOff && c.powerOn:
		c.powerOffReq = true
	}
	return protocol.OK
}

func cmdExternal(c *Controller, letter byte, arg uint32) protocol.ErrorCode {
	if letter == protocol.CmdExternalOn {
		c.modeReq = modeExternal
	} else {
		c.modeReq = modeInternal
	}
	return protocol.OK
}

func cmdFrequency(c *Controller, letter byte, hz uint32) protocol.ErrorCode {
	if hz < protocol.MinFrequencyHz || hz > protocol.MaxFrequencyHz {
		return protocol.ErrFrequencyOutOfRange
	}
	c.inputFullCycle = settings.CycleLenForHz(hz)
	return protocol.OK
}

func cmdDuty(c *Controller, letter byte, us uint32) protocol.ErrorCode {
	if us < protocol.MinDutyArgUS || us > protocol.MaxDutyArgUS {
		return protocol.ErrFrequencyOutOfRange
	}
	c.inputDuty = (us >> 2) << 2
	return protocol.OK
}

func cmdPropagation(c *Controller, letter byte, mode uint32) protocol.ErrorCode {
	if mode > protocol.PropagationPowerOff {
		return protocol.ErrPropagationOutOfRange
	}
	c.propagation = uint8(mode)
	return protocol.OK
}

// writeHelp prints the version, configuration, measurements and the
// command list.
func (c *Controller) writeHelp() {
	w := c.out
	secs := c.uptimeUS / TimerFreq
	hours := secs / 3600
	minutes := (secs - hours*3600) / 60
	secs -= hours*3600 + minutes*60

	io.WriteString(w, "Camera/Lighting Synchronization V"+utoa(settings.FirmwareVersion)+"\r\n")
	io.WriteString(w, "uptime "+utoa(uint32(hours))+"h "+utoa(uint32(minutes))+"m "+utoa(uint32(secs))+"s\r\n\r\n")

	cfg := &c.cfg
	io.WriteString(w, "Configuration\r\n")
	io.WriteString(w, "\tlen between two images  : "+utoa(cfg.FullCycleLenUS)+"[us]="+utoa(hz(cfg.FullCycleLenUS))+"Hz\r\n")
	io.WriteString(w, "\tlen of light pulse      : "+utoa(cfg.LightsPulseLenUS)+"[us]="+utoa(hz(cfg.LightsPulseLenUS))+"Hz\r\n")
	io.WriteString(w, "\tduty len of light pulse : "+utoa(cfg.LightPulseDutyLenUS)+"[us]\r\n")
	io.WriteString(w, "\tnumber of strobes/cycle : "+utoa(uint32(cfg.NoOfStrobes))+"\r\n")
	io.WriteString(w, "\tcamera works            : "+boolDigit(c.cameraWorks)+"\r\n")
	io.WriteString(w, "\tpower_on                : "+boolDigit(c.powerOn)+"\r\n")
	io.WriteString(w, "\tfan_on                  : "+boolDigit(c.fanOn)+"\r\n")
	io.WriteString(w, "\tpropagation_mode        : "+utoa(uint32(c.propagation))+"\r\n")
	io.WriteString(w, "\terror led on            : "+boolDigit(c.errorLED)+"\r\n")
	io.WriteString(w, "\tauto strobe on          : "+boolDigit(cfg.AutoModeOn)+"\r\n")
	if c.store != nil {
		io.WriteString(w, "\tstorage(bank="+utoa(uint32(c.store.Bank()))+", write_counter="+utoa(uint32(c.store.WriteCounter()))+")\r\n")
	}
	io.WriteString(w, "\tdaisy chain freq index  : "+itoa(c.sync.Index())+"\r\n")
	io.WriteString(w, "\tdaisy chain freq value  : "+utoa(c.sync.Period())+"\r\n")
	io.WriteString(w, "\texternal trigger mode   : "+boolDigit(cfg.ExternalTriggerMode)+"\r\n")
	io.WriteString(w, "\r\n")

	image := c.meas.imagePeriod
	if cfg.ExternalTriggerMode && c.meas.triggerPeriod != 0 {
		image = c.meas.triggerPeriod
	}
	io.WriteString(w, "Validation\r\n")
	io.WriteString(w, "\tlen between two images  : "+utoa(image)+"[us]="+utoa(hz(image))+"Hz\r\n")
	io.WriteString(w, "\tlen of light pulse      : "+utoa(c.meas.pulsePeriod)+"[us]="+utoa(hz(c.meas.pulsePeriod))+"Hz\r\n")
	io.WriteString(w, "\tduty len of light pulse : "+utoa(c.meas.duty())+"[us]\r\n")
	if avg, _ := c.exposure(); avg != 0 {
		io.WriteString(w, "\tcamera exposure time    : "+utoa(avg)+"[us]=1/"+utoa(hz(avg))+"s\r\n")
	}
	io.WriteString(w, "\r\n")

	io.WriteString(w, "Help\r\n")
	for _, line := range globalRegistry.HelpLines() {
		io.WriteString(w, line+"\r\n")
	}
}

func hz(periodUS uint32) uint32 {
	if periodUS == 0 {
		return 0
	}
	return TimerFreq / periodUS
}
