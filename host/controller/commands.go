package controller

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"strobelink/protocol"
)

// ArgKind describes the argument a named command takes.
type ArgKind uint8

const (
	ArgNone   ArgKind = iota
	ArgSwitch         // on/off
	ArgNumber
)

// Command is a console command addressed by name.
type Command struct {
	Name  string
	Help  string
	Kind  ArgKind
	On    byte // the letter for ArgNone, ArgNumber and switching on
	Off   byte // switching off
	Reply bool // false when the controller does not answer
}

var commands = map[string]Command{
	"frequency":     {Name: "frequency", Help: "camera frequency in Hz (1..30)", Kind: ArgNumber, On: protocol.CmdFrequency, Reply: true},
	"duty":          {Name: "duty", Help: "light pulse duty in us (50..5000)", Kind: ArgNumber, On: protocol.CmdDuty, Reply: true},
	"propagation":   {Name: "propagation", Help: "daisy chain propagation mode (0..2)", Kind: ArgNumber, On: protocol.CmdPropagation, Reply: true},
	"power":         {Name: "power", Help: "strobing on/off", Kind: ArgSwitch, On: protocol.CmdPowerOn, Off: protocol.CmdPowerOff, Reply: true},
	"auto":          {Name: "auto", Help: "auto calibration on/off", Kind: ArgSwitch, On: protocol.CmdAutoOn, Off: protocol.CmdAutoOff, Reply: true},
	"external":      {Name: "external", Help: "external trigger mode on/off", Kind: ArgSwitch, On: protocol.CmdExternalOn, Off: protocol.CmdExternalOff, Reply: true},
	"error_led":     {Name: "error_led", Help: "error LED on/off", Kind: ArgSwitch, On: protocol.CmdErrorLEDOn, Off: protocol.CmdErrorLEDOff, Reply: true},
	"fan":           {Name: "fan", Help: "fan on/off", Kind: ArgSwitch, On: protocol.CmdFanOn, Off: protocol.CmdFanOff, Reply: true},
	"debug":         {Name: "debug", Help: "debug trace on/off", Kind: ArgSwitch, On: protocol.CmdDebugOn, Off: protocol.CmdDebugOff, Reply: true},
	"save":          {Name: "save", Help: "store the configuration", On: protocol.CmdSave, Reply: true},
	"restart":       {Name: "restart", Help: "restart the controller", On: protocol.CmdRestart},
	"factory_reset": {Name: "factory_reset", Help: "restore factory settings and restart", On: protocol.CmdFactoryReset, Reply: true},
}

// Lookup returns the command called name.
func Lookup(name string) (Command, bool) {
	cmd, ok := commands[name]
	return cmd, ok
}

// Commands returns all named commands sorted by name.
func Commands() []Command {
	out := make([]Command, 0, len(commands))
	for _, cmd := range commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseSwitch accepts on/off style words.
func ParseSwitch(s string) (bool, error) {
	switch s {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// Execute runs the command called name. value is the number for ArgNumber
// commands and non-zero for switching on.
func (c *Client) Execute(ctx context.Context, name string, value uint32) error {
	cmd, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("unknown command %q: %w", name, &Error{Code: protocol.ErrUnknownCommand})
	}
	letter := cmd.On
	arg := ""
	switch cmd.Kind {
	case ArgSwitch:
		if value == 0 {
			letter = cmd.Off
		}
	case ArgNumber:
		arg = strconv.FormatUint(uint64(value), 10)
	}
	if !cmd.Reply {
		return c.Send(letter)
	}
	return c.Do(ctx, letter, arg)
}

// SetFrequency sets the camera frequency in Hz.
func (c *Client) SetFrequency(ctx context.Context, hz uint32) error {
	return c.Execute(ctx, "frequency", hz)
}

// SetDuty sets the light pulse duty in µs.
func (c *Client) SetDuty(ctx context.Context, us uint32) error {
	return c.Execute(ctx, "duty", us)
}

// SetPower switches strobing on or off.
func (c *Client) SetPower(ctx context.Context, on bool) error {
	return c.Execute(ctx, "power", boolValue(on))
}

// SetExternal switches external trigger mode.
func (c *Client) SetExternal(ctx context.Context, on bool) error {
	return c.Execute(ctx, "external", boolValue(on))
}

// Save stores the configuration.
func (c *Client) Save(ctx context.Context) error {
	return c.Execute(ctx, "save", 0)
}

// Restart restarts the controller. There is no reply.
func (c *Client) Restart() error {
	return c.Send(protocol.CmdRestart)
}

func boolValue(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
