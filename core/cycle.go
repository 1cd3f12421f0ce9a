package core

import "strobelink/settings"

// Output stage latencies, measured on the light driver.
const (
	TimeToGoHighUS     = 4
	TimeToGoLowUS      = 92
	CameraTriggerLenUS = 128
)

// bootLeadUS is how far in the future the first cycle starts.
const bootLeadUS = 2 * TimeToGoHighUS

// cycleState is the scheduler position within a cycle. It is owned by
// the control loop.
type cycleState struct {
	pulseOn bool
	nth     uint16
	start   uint32

	nextOn    uint32
	nextOff   uint32
	cameraOff uint32
}

// schedule computes the boundary times of the current strobe.
func (s *cycleState) schedule(cfg *settings.Config) {
	t := s.start + uint32(s.nth)*cfg.LightsPulseLenUS
	s.nextOn = t - TimeToGoHighUS
	s.nextOff = t + cfg.LightPulseDutyLenUS - TimeToGoLowUS
	s.cameraOff = t + CameraTriggerLenUS - TimeToGoLowUS
}

// restart begins a new cycle at start.
func (s *cycleState) restart(start uint32, cfg *settings.Config) {
	s.start = start
	s.nth = 0
	s.pulseOn = false
	s.schedule(cfg)
}

// last reports whether the current strobe is the last of the cycle.
func (s *cycleState) last(cfg *settings.Config) bool {
	return s.nth >= cfg.NoOfStrobes-1
}
