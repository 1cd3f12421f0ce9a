package timing

import (
	"testing"

	"strobelink/settings"
)

func TestComputeDefaults(t *testing.T) {
	r := Compute(200000, 5000)

	if r.NoOfStrobes != 40 {
		t.Errorf("Expected 40 strobes, got %d", r.NoOfStrobes)
	}
	if r.LightsPulseLenUS != 5000 {
		t.Errorf("Expected pulse 5000, got %d", r.LightsPulseLenUS)
	}
	if r.LightPulseDutyLenUS != 454 {
		t.Errorf("Expected duty 454, got %d", r.LightPulseDutyLenUS)
	}
}

func TestComputeRounding(t *testing.T) {
	tests := []struct {
		name    string
		full    uint32
		pulse   uint32
		strobes uint16
	}{
		// 1000 * 2000 / 400 = 5000 -> 2.5 exactly, ties round up
		{"exact half", 1000, 400, 3},
		// 2.4995 stays at 2
		{"just below half", 9998, 4000, 2},
		{"above half", 10400, 4000, 3},
		{"whole", 200000, 5000, 40},
		{"30 Hz", 33332, 5000, 7},
		{"pulse longer than cycle", 1000, 5000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Compute(tt.full, tt.pulse)
			if r.NoOfStrobes != tt.strobes {
				t.Errorf("Expected %d strobes, got %d", tt.strobes, r.NoOfStrobes)
			}
			if uint32(r.NoOfStrobes)*r.LightsPulseLenUS > tt.full {
				t.Errorf("strobes*pulse %d exceeds cycle %d",
					uint32(r.NoOfStrobes)*r.LightsPulseLenUS, tt.full)
			}
		})
	}
}

func TestComputeConverges(t *testing.T) {
	for _, seed := range []uint32{1, 3, 7, 333, 4999, 5000, 5001, 12345, 66667, 199999, 200000, 500000} {
		pulse := seed
		var prev Result
		converged := false
		for i := 0; i < 8; i++ {
			r := Compute(200000, pulse)
			if i > 0 && r == prev {
				converged = true
				break
			}
			prev = r
			pulse = r.LightsPulseLenUS
		}
		if !converged {
			t.Errorf("Seed %d: no fixed point after 8 iterations (last %+v)", seed, prev)
		}
	}
}

func TestDutyInvariant(t *testing.T) {
	for hz := uint32(settings.MinFrequencyHz); hz <= settings.MaxFrequencyHz; hz++ {
		full := settings.CycleLenForHz(hz)
		for duty := uint32(settings.MinDutyLenUS); duty <= settings.MaxDutyLenUS; duty += 50 {
			r := Compute(full, duty*settings.MaxDutyRatio)
			if r.LightPulseDutyLenUS >= r.LightsPulseLenUS {
				t.Fatalf("%d Hz duty %d: duty %d not below pulse %d",
					hz, duty, r.LightPulseDutyLenUS, r.LightsPulseLenUS)
			}
			if r.LightPulseDutyLenUS < settings.MinDutyLenUS || r.LightPulseDutyLenUS > settings.MaxDutyLenUS {
				t.Fatalf("%d Hz duty %d: duty %d outside clamp", hz, duty, r.LightPulseDutyLenUS)
			}
		}
	}
}

func TestComputeExternal(t *testing.T) {
	r := ComputeExternal(2000000, 5000)
	if r.NoOfStrobes != ExternalStrobes {
		t.Errorf("Expected %d strobes, got %d", ExternalStrobes, r.NoOfStrobes)
	}
	if r.LightsPulseLenUS != 5000 {
		t.Errorf("Expected pulse 5000, got %d", r.LightsPulseLenUS)
	}

	// Truncation only: 7400/5000 = 1, so the pulse spans the whole period
	r = ComputeExternal(7400, 5000)
	if r.LightsPulseLenUS != 7400 {
		t.Errorf("Expected pulse 7400, got %d", r.LightsPulseLenUS)
	}
	if r.NoOfStrobes != ExternalStrobes {
		t.Errorf("Expected %d strobes, got %d", ExternalStrobes, r.NoOfStrobes)
	}
}

func TestApply(t *testing.T) {
	cfg := settings.Default()
	cfg.NoOfStrobes = 17
	cfg.ExternalTriggerMode = true
	Apply(&cfg)
	if cfg.NoOfStrobes != ExternalStrobes {
		t.Errorf("External mode: expected %d strobes, got %d", ExternalStrobes, cfg.NoOfStrobes)
	}

	cfg.ExternalTriggerMode = false
	cfg.FullCycleLenUS = 100000
	Apply(&cfg)
	if cfg.NoOfStrobes != 20 {
		t.Errorf("Expected 20 strobes at 10 Hz, got %d", cfg.NoOfStrobes)
	}
}
