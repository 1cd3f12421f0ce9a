package core

// Auxiliary (NIR camera) trigger: AuxStripes pulses evenly spread over
// each cycle, each AuxPulseLenUS long.
const (
	AuxStripes    = 10
	AuxPulseLenUS = 1200

	// 3.3 V output stage latencies
	AuxGoHighUS = 4
	AuxGoLowUS  = 50
)

// AuxChannel drives the auxiliary trigger. The controller tells it where
// each cycle starts and polls it once per loop pass.
type AuxChannel interface {
	// Configure sets the cycle length the stripes are spread over.
	Configure(cycleLenUS uint32)
	// StartCycle restarts the stripe sequence at start.
	StartCycle(startUS uint32)
	// Poll advances the sequence. Outputs are only driven high while
	// powered.
	Poll(nowUS uint32, powered bool)
	// Stop drives the output low.
	Stop()
}

// StripeChannel is the software AuxChannel: it toggles a GPIO pin from
// the control loop.
type StripeChannel struct {
	gpio GPIODriver
	pin  GPIOPin

	cycleLen  uint32
	stripeLen uint32
	start     uint32
	nth       uint32
	high      bool
	done      bool

	nextOn  uint32
	nextOff uint32
}

// NewStripeChannel creates a software aux channel on pin.
func NewStripeChannel(gpio GPIODriver, pin GPIOPin) *StripeChannel {
	return &StripeChannel{gpio: gpio, pin: pin}
}

// Configure implements AuxChannel.
func (s *StripeChannel) Configure(cycleLenUS uint32) {
	s.cycleLen = cycleLenUS
	s.stripeLen = cycleLenUS / AuxStripes
}

// StartCycle implements AuxChannel.
func (s *StripeChannel) StartCycle(startUS uint32) {
	s.start = startUS
	s.nth = 0
	s.high = false
	s.done = false
	s.schedule()
}

func (s *StripeChannel) schedule() {
	t := s.start + s.nth*s.stripeLen
	s.nextOn = t - AuxGoHighUS
	s.nextOff = s.nextOn + AuxPulseLenUS - AuxGoLowUS
}

// Poll implements AuxChannel.
func (s *StripeChannel) Poll(nowUS uint32, powered bool) {
	if s.done || s.cycleLen == 0 {
		return
	}
	if !s.high {
		if Reached(nowUS, s.nextOn, s.cycleLen) {
			if powered {
				s.gpio.SetPin(s.pin, true)
			}
			s.high = true
		}
		return
	}
	if Reached(nowUS, s.nextOff, s.cycleLen) {
		s.gpio.SetPin(s.pin, false)
		if s.nth < AuxStripes-1 {
			s.nth++
			s.high = false
			s.schedule()
		} else {
			s.done = true
		}
	}
}

// Stop implements AuxChannel.
func (s *StripeChannel) Stop() {
	s.gpio.SetPin(s.pin, false)
}

// Stripe returns the index of the current stripe.
func (s *StripeChannel) Stripe() uint32 {
	return s.nth
}
