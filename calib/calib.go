// Package calib estimates the camera exposure time and derives a matching
// light duty length.
package calib

import "strobelink/settings"

// Light output latencies compensated when matching the exposure
const (
	OnDelayUS  = 20
	OffDelayUS = 20
)

// Gate parameters: the average must move by more than 1/16 of itself since
// the last accepted value, and the derivative must have settled below
// MaxDerivUS.
const (
	ChangeShift = 4
	MaxDerivUS  = 8
)

// Filter is a complementary filter over exposure durations. Add is called
// from interrupt context; callers read it back with the interrupt masked.
type Filter struct {
	avg    uint32
	deriv  int32
	seeded bool
}

// Add feeds one exposure duration.
func (f *Filter) Add(durUS uint32) {
	if !f.seeded {
		f.avg = durUS
		f.seeded = true
		return
	}
	f.deriv = (f.deriv + (int32(f.avg) - int32(durUS))) >> 1
	f.avg = (f.avg + durUS) >> 1
}

// Average returns the filtered exposure and its derivative.
func (f *Filter) Average() (avg uint32, deriv int32) {
	return f.avg, f.deriv
}

// Reset forgets all samples.
func (f *Filter) Reset() {
	*f = Filter{}
}

// Result is an accepted calibration.
type Result struct {
	DutyUS  uint32
	PulseUS uint32
}

// Engine applies the stability gate to filter readings.
type Engine struct {
	last uint32
}

// Last returns the last accepted exposure average.
func (e *Engine) Last() uint32 { return e.last }

// Evaluate decides whether avg warrants a new duty length.
func (e *Engine) Evaluate(avg uint32, deriv int32) (Result, bool) {
	if avg == 0 {
		return Result{}, false
	}
	if absDiff(avg, e.last)<<ChangeShift <= avg {
		return Result{}, false
	}
	if deriv >= MaxDerivUS || deriv <= -MaxDerivUS {
		return Result{}, false
	}

	e.last = avg
	duty := settings.ClampDuty(avg + OnDelayUS - OffDelayUS)
	return Result{
		DutyUS:  duty,
		PulseUS: duty * settings.MaxDutyRatio,
	}, true
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
