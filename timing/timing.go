// Package timing turns a desired cycle length into an integral number of
// strobes per cycle.
package timing

import "strobelink/settings"

// ScaleFactor is the fixed-point scale applied before dividing the cycle
// by the pulse length.
const ScaleFactor = 2000

// ExternalStrobes is the strobe count used while an external signal paces
// the cycle.
const ExternalStrobes = 3

const maxStrobes = 0xFFFF

// Result is a quantized strobe layout.
type Result struct {
	NoOfStrobes         uint16
	LightsPulseLenUS    uint32
	LightPulseDutyLenUS uint32
}

// Compute quantizes fullCycleUS into whole pulses of roughly pulseUS.
// The strobe count is rounded half-up in fixed point; the resulting pulse
// length is truncated so that strobes*pulse never exceeds the cycle.
func Compute(fullCycleUS, pulseUS uint32) Result {
	if pulseUS == 0 {
		pulseUS = settings.DefaultLightsPulseLenUS
	}
	scaled := uint64(fullCycleUS) * ScaleFactor / uint64(pulseUS)
	count := scaled / ScaleFactor
	if scaled%ScaleFactor >= ScaleFactor/2 {
		count++
	}
	return layout(fullCycleUS, count)
}

// ComputeExternal is the external-trigger variant: no rounding, and the
// strobe count is forced to ExternalStrobes afterwards.
func ComputeExternal(fullCycleUS, pulseUS uint32) Result {
	if pulseUS == 0 {
		pulseUS = settings.DefaultLightsPulseLenUS
	}
	r := layout(fullCycleUS, uint64(fullCycleUS/pulseUS))
	r.NoOfStrobes = ExternalStrobes
	return r
}

// Apply recomputes the strobe layout of cfg in place, choosing the variant
// by cfg.ExternalTriggerMode.
func Apply(cfg *settings.Config) {
	var r Result
	if cfg.ExternalTriggerMode {
		r = ComputeExternal(cfg.FullCycleLenUS, cfg.LightsPulseLenUS)
	} else {
		r = Compute(cfg.FullCycleLenUS, cfg.LightsPulseLenUS)
	}
	cfg.NoOfStrobes = r.NoOfStrobes
	cfg.LightsPulseLenUS = r.LightsPulseLenUS
	cfg.LightPulseDutyLenUS = r.LightPulseDutyLenUS
}

func layout(fullCycleUS uint32, count uint64) Result {
	if count < 1 {
		count = 1
	}
	if count > maxStrobes {
		count = maxStrobes
	}
	pulse := fullCycleUS / uint32(count)
	if pulse == 0 {
		pulse = 1
	}
	return Result{
		NoOfStrobes:         uint16(count),
		LightsPulseLenUS:    pulse,
		LightPulseDutyLenUS: Duty(pulse),
	}
}

// Duty returns the duty length for a pulse period: 1/MaxDutyRatio of it,
// clamped to the duty limits while staying shorter than the pulse.
func Duty(pulseUS uint32) uint32 {
	d := settings.ClampDuty(pulseUS / settings.MaxDutyRatio)
	if d >= pulseUS {
		d = pulseUS / settings.MaxDutyRatio
		if d == 0 && pulseUS > 1 {
			d = 1
		}
	}
	return d
}
