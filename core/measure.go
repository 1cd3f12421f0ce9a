package core

import (
	"strobelink/protocol"
	"strobelink/settings"
)

// maxDeviationDiv sets the self-check tolerance to 1/10 of the nominal
// value (checked as dev*10 > nominal).
const maxDeviationDiv = 10

// measurements keeps filtered observations of the real output timing,
// used by the help screen and the self-check.
type measurements struct {
	imagePeriod uint32
	pulsePeriod uint32
	dutyLen     uint32 // as seen from the loop, latencies included

	lastImageAt  uint32
	haveImage    bool
	imageSamples uint32
	pulseStartAt uint32
	havePulse    bool

	triggerPeriod uint32 // last external trigger interval
}

// reset restarts all filters from the configured values.
func (m *measurements) reset(cfg *settings.Config) {
	m.imagePeriod = cfg.FullCycleLenUS
	m.haveImage = false
	m.imageSamples = 0
	m.resetPulse(cfg)
}

// resetPulse restarts the pulse and duty filters only.
func (m *measurements) resetPulse(cfg *settings.Config) {
	m.pulsePeriod = cfg.LightsPulseLenUS
	m.dutyLen = cfg.LightPulseDutyLenUS - TimeToGoLowUS + TimeToGoHighUS
	m.havePulse = false
}

// rollCycle is called at every cycle boundary. The first strobe of a
// cycle is not measured against the last strobe of the previous one.
func (m *measurements) rollCycle() {
	m.havePulse = false
}

// image records a camera trigger.
func (m *measurements) image(now uint32, external bool) {
	if !m.haveImage {
		m.lastImageAt = now
		m.haveImage = true
		return
	}
	v := now - m.lastImageAt
	m.lastImageAt = now
	if external {
		return
	}
	m.imagePeriod = uint32((uint64(m.imagePeriod)*7168 + uint64(v)*1024) / 8192)
	m.imageSamples++
}

// pulseStart records a light pulse rising edge.
func (m *measurements) pulseStart(now uint32) {
	if !m.havePulse {
		m.pulseStartAt = now
		m.havePulse = true
		return
	}
	v := now - m.pulseStartAt
	m.pulseStartAt = now
	m.pulsePeriod = uint32((uint64(m.pulsePeriod)*(2048-128) + uint64(v)<<7) >> 11)
}

// pulseEnd records a light pulse falling edge.
func (m *measurements) pulseEnd(now uint32) {
	if !m.havePulse {
		return
	}
	v := now - m.pulseStartAt
	m.dutyLen = uint32((uint64(m.dutyLen)*(2048-128) + uint64(v)<<7) >> 11)
}

// duty returns the measured duty length with the output latencies removed.
func (m *measurements) duty() uint32 {
	return m.dutyLen - TimeToGoHighUS + TimeToGoLowUS
}

// checkCodes holds the self-check results of one cycle.
type checkCodes struct {
	codes [3]protocol.ErrorCode
	n     int
}

func (c *checkCodes) add(code protocol.ErrorCode) {
	c.codes[c.n] = code
	c.n++
}

// check compares the filters with cfg and returns the codes of the
// values that deviate by more than 10%.
func (m *measurements) check(cfg *settings.Config) checkCodes {
	var res checkCodes
	if m.imageSamples > 0 && deviates(m.imagePeriod, cfg.FullCycleLenUS) {
		res.add(protocol.ErrImageFrequencyBad)
	}
	if deviates(m.pulsePeriod, cfg.LightsPulseLenUS) {
		res.add(protocol.ErrPulseFrequencyBad)
	}
	if deviates(m.duty(), cfg.LightPulseDutyLenUS) {
		res.add(protocol.ErrPulseDutyBad)
	}
	return res
}

func deviates(measured, nominal uint32) bool {
	return absDiff(measured, nominal)*maxDeviationDiv > nominal
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
