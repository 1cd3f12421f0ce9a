//go:build rp2040

package main

import (
	"machine"
	"time"

	"strobelink/core"
	"strobelink/protocol"
	"strobelink/storage"
	"strobelink/targets/pio"
)

// Board wiring
var pins = core.PinMap{
	Light:         core.GPIOPin(machine.GPIO2),
	CameraTrigger: core.GPIOPin(machine.GPIO3),
	CameraStrobe:  core.GPIOPin(machine.GPIO4),
	ErrorLED:      core.GPIOPin(machine.LED),
	Fan:           core.GPIOPin(machine.GPIO5),
	Aux:           core.NoPin, // driven by PIO
	DaisyOut: [3]core.GPIOPin{
		core.GPIOPin(machine.GPIO10), // clock
		core.GPIOPin(machine.GPIO11),
		core.GPIOPin(machine.GPIO12),
	},
	DaisyIn: [3]core.GPIOPin{
		core.GPIOPin(machine.GPIO13), // clock
		core.GPIOPin(machine.GPIO14),
		core.GPIOPin(machine.GPIO15),
	},
}

const (
	auxPin       = machine.GPIO6
	indicatorPin = machine.GPIO16

	watchdogTimeoutMS = 1000
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput

	msgerrors                uint32
	consecutiveWriteFailures uint32
)

type hwWatchdog struct{}

func (hwWatchdog) Update() { machine.Watchdog.Update() }

func main() {
	InitUSB()
	UpdateSystemTime()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()
	core.SetDebugWriter(func(s string) {
		outputBuffer.Write([]byte(s))
		outputBuffer.Write([]byte("\r\n"))
	})

	gpio := NewRPGPIODriver()
	core.SetGPIODriver(gpio)

	var store *storage.Store
	if dev, err := openFlashDevice(); err == nil {
		store = storage.New(dev)
	}

	opts := core.Options{
		GPIO:      gpio,
		Pins:      pins,
		Store:     store,
		Input:     inputBuffer,
		Output:    outputBuffer,
		Watchdog:  hwWatchdog{},
		Indicator: newLEDIndicator(indicatorPin),
		Delay:     delayMicros,
		Reset:     resetBoard,
	}
	if aux, err := pio.NewAuxPulser(auxPin); err == nil {
		opts.Aux = aux
	} else {
		// Fall back to the software stripes
		opts.Pins.Aux = core.GPIOPin(auxPin)
		opts.Aux = core.NewStripeChannel(gpio, opts.Pins.Aux)
	}

	ctrl, err := core.New(opts)
	if err != nil {
		// Storage failures are not fatal: run on defaults.
		opts.Store = nil
		ctrl, err = core.New(opts)
		if err != nil {
			for {
				time.Sleep(time.Second)
			}
		}
	}

	strobe := machine.Pin(pins.CameraStrobe)
	strobe.SetInterrupt(machine.PinToggle, func(p machine.Pin) {
		ctrl.OnCameraStrobe(p.Get(), GetHardwareTime())
	})
	daisyClock := machine.Pin(pins.DaisyIn[0])
	daisyClock.SetInterrupt(machine.PinRising, func(machine.Pin) {
		ctrl.OnDaisyEdge(ctrl.ReadDaisyInput(), GetHardwareTime())
	})

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogTimeoutMS})
	machine.Watchdog.Start()

	for {
		UpdateSystemTime()
		pollUSB()
		ctrl.Step()
		if len(outputBuffer.Result()) > 0 {
			writeUSB()
		}
	}
}

// pollUSB moves received bytes into the console buffer. The console
// consumes at most one byte per pass.
func pollUSB() {
	for USBAvailable() > 0 && inputBuffer.Free() > 0 {
		b, err := USBRead()
		if err != nil {
			msgerrors++
			return
		}
		inputBuffer.Write([]byte{b})
	}
}

// writeUSB drains the output buffer.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// No host attached: drop stale output instead of blocking.
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}

// resetBoard restarts through the watchdog, which also re-enumerates USB.
func resetBoard() {
	writeUSB()
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	machine.Watchdog.Start()
	for {
		time.Sleep(1 * time.Millisecond)
	}
}
