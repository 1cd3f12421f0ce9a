package calib

import (
	"testing"

	"strobelink/settings"
)

func TestFilterSeed(t *testing.T) {
	var f Filter
	f.Add(1000)
	avg, deriv := f.Average()
	if avg != 1000 || deriv != 0 {
		t.Errorf("Expected seed 1000/0, got %d/%d", avg, deriv)
	}

	f.Add(1000)
	f.Add(1000)
	avg, deriv = f.Average()
	if avg != 1000 || deriv != 0 {
		t.Errorf("Steady input: expected 1000/0, got %d/%d", avg, deriv)
	}
}

func TestFilterStep(t *testing.T) {
	var f Filter
	f.Add(1000)
	f.Add(2000)
	avg, deriv := f.Average()
	if avg != 1500 {
		t.Errorf("Expected avg 1500, got %d", avg)
	}
	if deriv != -500 {
		t.Errorf("Expected deriv -500, got %d", deriv)
	}

	// Settles towards the new value and the derivative decays
	for i := 0; i < 20; i++ {
		f.Add(2000)
	}
	avg, deriv = f.Average()
	if avg < 1990 || avg > 2000 {
		t.Errorf("Expected avg near 2000, got %d", avg)
	}
	if deriv >= MaxDerivUS || deriv <= -MaxDerivUS {
		t.Errorf("Expected settled derivative, got %d", deriv)
	}

	f.Reset()
	if avg, _ := f.Average(); avg != 0 {
		t.Errorf("Expected reset avg 0, got %d", avg)
	}
}

func TestEvaluateGate(t *testing.T) {
	tests := []struct {
		name    string
		last    uint32
		avg     uint32
		deriv   int32
		trigger bool
	}{
		{"first reading", 0, 1000, 0, true},
		{"small change", 1000, 1050, 0, false},
		{"6 percent", 1000, 1060, 0, false},
		{"qualifying change", 1000, 1100, 0, true},
		{"qualifying drop", 1000, 900, 2, true},
		{"unstable rise", 1000, 1500, 40, false},
		{"unstable drop", 1000, 500, -40, false},
		{"derivative at threshold", 1000, 1500, MaxDerivUS, false},
		{"no exposure", 1000, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Engine{last: tt.last}
			_, ok := e.Evaluate(tt.avg, tt.deriv)
			if ok != tt.trigger {
				t.Errorf("Expected trigger=%v, got %v", tt.trigger, ok)
			}
			if ok && e.Last() != tt.avg {
				t.Errorf("Expected last %d, got %d", tt.avg, e.Last())
			}
			if !ok && e.Last() != tt.last {
				t.Errorf("Rejected reading changed last to %d", e.Last())
			}
		})
	}
}

func TestEvaluateClamp(t *testing.T) {
	var e Engine
	r, ok := e.Evaluate(5000, 0)
	if !ok {
		t.Fatal("Expected trigger")
	}
	if r.DutyUS != settings.MaxDutyLenUS {
		t.Errorf("Expected duty %d, got %d", settings.MaxDutyLenUS, r.DutyUS)
	}
	if r.PulseUS != settings.MaxDutyLenUS*settings.MaxDutyRatio {
		t.Errorf("Expected pulse %d, got %d", settings.MaxDutyLenUS*settings.MaxDutyRatio, r.PulseUS)
	}

	e = Engine{}
	r, _ = e.Evaluate(50, 0)
	if r.DutyUS != settings.MinDutyLenUS {
		t.Errorf("Expected duty %d, got %d", settings.MinDutyLenUS, r.DutyUS)
	}

	e = Engine{}
	r, _ = e.Evaluate(700, 0)
	if r.DutyUS != 700 || r.PulseUS != 7700 {
		t.Errorf("Expected 700/7700, got %d/%d", r.DutyUS, r.PulseUS)
	}
}
