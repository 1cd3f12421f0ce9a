//go:build rp2040

package main

import (
	"image/color"
	"machine"
	"runtime/interrupt"

	"tinygo.org/x/drivers/ws2812"

	"strobelink/core"
)

var phaseColors = [...]color.RGBA{
	core.PhaseIdle:     {R: 0, G: 0, B: 16},
	core.PhaseStrobing: {R: 0, G: 48, B: 0},
	core.PhaseExternal: {R: 24, G: 16, B: 0},
}

var colorFault = color.RGBA{R: 64, G: 0, B: 0}

// ledIndicator shows the run state on a WS2812 status LED. The controller
// only calls Show at cycle boundaries, with the light off.
type ledIndicator struct {
	led  ws2812.Device
	buf  [1]color.RGBA
	last color.RGBA
}

func newLEDIndicator(pin machine.Pin) *ledIndicator {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	ind := &ledIndicator{led: ws2812.New(pin)}
	ind.write(colorFault) // until the first cycle completes
	return ind
}

func (l *ledIndicator) Show(p core.Phase) {
	if int(p) >= len(phaseColors) {
		return
	}
	l.write(phaseColors[p])
}

func (l *ledIndicator) write(c color.RGBA) {
	if c == l.last {
		return
	}
	l.last = c
	l.buf[0] = c
	// The bit timing must not be interrupted.
	state := interrupt.Disable()
	l.led.WriteColors(l.buf[:])
	interrupt.Restore(state)
}
