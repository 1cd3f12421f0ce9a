package core

import (
	"testing"

	"strobelink/protocol"
)

func TestStripeChannel(t *testing.T) {
	gpio := newFakeGPIO()
	ch := NewStripeChannel(gpio, 7)
	ch.Configure(200000)

	const start = 1000
	SetTime(start - 10)
	ch.StartCycle(start)
	for i := 0; i < 210000; i++ {
		AdvanceTime(1)
		ch.Poll(GetTime(), true)
	}

	edges := gpio.transitions(7)
	if len(edges) != 2*AuxStripes {
		t.Fatalf("Expected %d edges, got %d", 2*AuxStripes, len(edges))
	}
	for k := 0; k < AuxStripes; k++ {
		on := uint32(start + k*20000 - AuxGoHighUS)
		off := on + AuxPulseLenUS - AuxGoLowUS
		if edges[2*k].at != on || !edges[2*k].high {
			t.Errorf("Stripe %d: expected on at %d, got %+v", k, on, edges[2*k])
		}
		if edges[2*k+1].at != off || edges[2*k+1].high {
			t.Errorf("Stripe %d: expected off at %d, got %+v", k, off, edges[2*k+1])
		}
	}
	if ch.Stripe() != AuxStripes-1 {
		t.Errorf("Expected last stripe index, got %d", ch.Stripe())
	}
}

func TestStripeChannelUnpowered(t *testing.T) {
	gpio := newFakeGPIO()
	ch := NewStripeChannel(gpio, 7)
	ch.Configure(100000)
	SetTime(0)
	ch.StartCycle(100)
	for i := 0; i < 100000; i++ {
		AdvanceTime(1)
		ch.Poll(GetTime(), false)
	}
	if got := len(gpio.rising(7)); got != 0 {
		t.Errorf("Expected no pulses while unpowered, got %d", got)
	}
}

func TestControllerDrivesAux(t *testing.T) {
	SetTime(1000)
	gpio := newFakeGPIO()
	pins := testPins
	pins.Aux = 8
	aux := NewStripeChannel(gpio, pins.Aux)
	c, err := New(Options{GPIO: gpio, Pins: pins, Aux: aux})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.HandleByte('p')
	c.Step()
	for i := 0; i < 200000; i++ {
		AdvanceTime(1)
		c.Step()
	}
	if got := len(gpio.rising(pins.Aux)); got != AuxStripes {
		t.Errorf("Expected %d aux pulses per cycle, got %d", AuxStripes, got)
	}
}

func TestMeasurementsCheck(t *testing.T) {
	r := newRig(t, 1000)
	cfg := r.c.Config()
	var m measurements
	m.reset(&cfg)
	if res := m.check(&cfg); res.n != 0 {
		t.Errorf("Expected nominal filters to pass, got %v", res.codes[:res.n])
	}

	m.pulsePeriod = cfg.LightsPulseLenUS * 12 / 10
	m.imageSamples = 1
	m.imagePeriod = cfg.FullCycleLenUS / 2
	res := m.check(&cfg)
	codes := res.codes[:res.n]
	if len(codes) != 2 {
		t.Fatalf("Expected 2 failing checks, got %v", codes)
	}
	if codes[0] != protocol.ErrImageFrequencyBad || codes[1] != protocol.ErrPulseFrequencyBad {
		t.Errorf("Expected image then pulse frequency codes, got %v", codes)
	}

	allocs := testing.AllocsPerRun(100, func() {
		res = m.check(&cfg)
	})
	if allocs != 0 {
		t.Errorf("Expected check not to allocate, got %v allocations", allocs)
	}
}
