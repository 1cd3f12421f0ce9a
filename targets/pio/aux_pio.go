//go:build rp2040 || rp2350

package pio

// Hardware-timed auxiliary trigger. The control loop decides when a stripe
// starts; the state machine times the pulse itself, so loop latency moves
// the rising edge but never stretches the pulse.

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"strobelink/core"
)

// ErrNoStateMachine is returned when both PIO blocks are in use.
var ErrNoStateMachine = errors.New("pio: no free state machine")

// buildPulseProgram creates the aux pulse program using AssemblerV0
func buildPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),   // 1: out x, 16 (high ticks)
		asm.Out(rp2pio.OutDestY, 16).Encode(),   // 2: out y, 16 (low ticks)
		asm.Set(rp2pio.SetDestPins, 1).Encode(), // 3: set pins, 1
		// high_loop:
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 4: jmp x--, 4
		asm.Set(rp2pio.SetDestPins, 0).Encode(),  // 5: set pins, 0
		// low_loop:
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		// .wrap
	}
}

// AuxPulser implements core.AuxChannel on a PIO state machine.
type AuxPulser struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
	pioNum uint8
	smNum  uint8

	cycleLen  uint32
	stripeLen uint32
	start     uint32
	nth       uint32
	nextOn    uint32
	done      bool
	word      uint32
}

// NewAuxPulser claims a free state machine and loads the pulse program
// with pin as output.
func NewAuxPulser(pin machine.Pin) (*AuxPulser, error) {
	pioNum, smNum, ok := allocateSM()
	if !ok {
		return nil, ErrNoStateMachine
	}
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	a := &AuxPulser{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pin:    pin,
		pioNum: pioNum,
		smNum:  smNum,
		done:   true,
	}
	if err := a.init(); err != nil {
		releaseSM(pioNum, smNum)
		return nil, err
	}
	a.word = pulseWord(core.AuxPulseLenUS-core.AuxGoLowUS, core.AuxGoLowUS)
	return a, nil
}

func (a *AuxPulser) init() error {
	a.sm.TryClaim()

	program := buildPulseProgram()
	offset, err := a.pio.AddProgram(program, 0) // absolute jump addresses
	if err != nil {
		return err
	}
	a.offset = offset

	a.pin.Configure(machine.PinConfig{Mode: a.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(a.pin, 1)
	// Shift right, explicit PULL, 32-bit threshold
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(ClkDivInt, 0)

	a.sm.Init(offset, cfg)

	// Pin directions must be set after Init
	a.sm.SetPindirsConsecutive(a.pin, 1, true)
	a.sm.SetPinsConsecutive(a.pin, 1, false)
	a.sm.SetEnabled(true)
	return nil
}

// Configure implements core.AuxChannel.
func (a *AuxPulser) Configure(cycleLenUS uint32) {
	a.cycleLen = cycleLenUS
	a.stripeLen = cycleLenUS / core.AuxStripes
}

// StartCycle implements core.AuxChannel.
func (a *AuxPulser) StartCycle(startUS uint32) {
	a.start = startUS
	a.nth = 0
	a.done = false
	a.nextOn = startUS - core.AuxGoHighUS
}

// Poll implements core.AuxChannel. Each stripe is one FIFO word.
func (a *AuxPulser) Poll(nowUS uint32, powered bool) {
	if a.done || a.cycleLen == 0 || !core.Reached(nowUS, a.nextOn, a.cycleLen) {
		return
	}
	if powered && !a.sm.IsTxFIFOFull() {
		a.sm.TxPut(a.word)
	}
	a.nth++
	if a.nth >= core.AuxStripes {
		a.done = true
		return
	}
	a.nextOn = a.start + a.nth*a.stripeLen - core.AuxGoHighUS
}

// Stop implements core.AuxChannel. It drops queued pulses and drives the
// pin low.
func (a *AuxPulser) Stop() {
	a.sm.SetEnabled(false)
	a.sm.ClearFIFOs()
	a.sm.Restart()
	a.sm.SetPinsConsecutive(a.pin, 1, false)
	a.sm.SetEnabled(true)
	a.done = true
}
