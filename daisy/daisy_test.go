package daisy

import "testing"

func TestPeriodTable(t *testing.T) {
	if len(Periods) != 25 {
		t.Fatalf("Expected 25 periods, got %d", len(Periods))
	}
	for i, p := range Periods {
		fps := uint32(i + 1)
		want := ((1000000 / fps) >> 2) << 2
		if p != want {
			t.Errorf("Entry %d (%d fps): expected %d, got %d", i, fps, want, p)
		}
	}
}

func TestFind(t *testing.T) {
	tests := []struct {
		target uint32
		index  int
	}{
		{200000, 4},
		{199000, 4},
		{1000000, 0},
		{5000000, 0},
		{40000, 24},
		{10, 24},
		{101000, 9},
	}

	s := &Sync{}
	for _, tt := range tests {
		if got := s.Find(tt.target); got != tt.index {
			t.Errorf("Find(%d): expected index %d, got %d", tt.target, tt.index, got)
		}
	}
}

func TestTrackHysteresis(t *testing.T) {
	s := New(200000)
	lower := Periods[3]

	for i := 0; i < DriftVotes-1; i++ {
		if _, shifted := s.Track(lower); shifted {
			t.Fatalf("Shifted after %d votes", i+1)
		}
	}
	if s.Index() != 4 {
		t.Errorf("Expected index 4 before the fifth vote, got %d", s.Index())
	}
	if s.Votes() != -(DriftVotes - 1) {
		t.Errorf("Expected %d votes, got %d", -(DriftVotes - 1), s.Votes())
	}

	p, shifted := s.Track(lower)
	if !shifted {
		t.Fatal("Expected shift on the fifth vote")
	}
	if p != lower {
		t.Errorf("Expected new period %d, got %d", lower, p)
	}
	if s.Index() != 3 {
		t.Errorf("Expected index 3, got %d", s.Index())
	}
	if s.Votes() != 0 {
		t.Errorf("Expected votes reset to 0, got %d", s.Votes())
	}

	// The new entry matches: no further shifting
	for i := 0; i < 10; i++ {
		if _, shifted := s.Track(lower + 400); shifted {
			t.Fatal("Unexpected shift while in range")
		}
	}
}

func TestTrackUpward(t *testing.T) {
	s := New(200000)
	faster := Periods[5]

	shifts := 0
	for i := 0; i < DriftVotes; i++ {
		if _, shifted := s.Track(faster); shifted {
			shifts++
		}
	}
	if shifts != 1 || s.Index() != 5 {
		t.Errorf("Expected one shift to index 5, got %d shifts, index %d", shifts, s.Index())
	}
}

func TestTrackNoise(t *testing.T) {
	s := New(200000)
	// Alternating noise cancels out
	for i := 0; i < 20; i++ {
		p := Periods[3]
		if i%2 == 1 {
			p = Periods[5]
		}
		if _, shifted := s.Track(p); shifted {
			t.Fatalf("Unexpected shift at sample %d", i)
		}
	}
}

func TestTrackTableEdges(t *testing.T) {
	s := New(1000000)
	for i := 0; i < 10; i++ {
		if _, shifted := s.Track(2000000); shifted {
			t.Fatal("Shifted below the first entry")
		}
	}
	if s.Index() != 0 {
		t.Errorf("Expected index 0, got %d", s.Index())
	}
}

func TestMark(t *testing.T) {
	s := New(200000)
	if _, ok := s.Mark(1000); ok {
		t.Error("First mark should not yield a period")
	}
	p, ok := s.Mark(201000)
	if !ok || p != 200000 {
		t.Errorf("Expected period 200000, got %d (ok=%v)", p, ok)
	}

	// Across the 32-bit wrap
	s.Forget()
	s.Mark(0xFFFFF000)
	p, ok = s.Mark(0x00001000)
	if !ok || p != 0x2000 {
		t.Errorf("Expected period across wrap 0x2000, got 0x%x", p)
	}
}

func TestCodeBits(t *testing.T) {
	for _, c := range []Code{NOP, CycleStart, PowerOff, 3, 5} {
		b2, b1, b0 := c.Bits()
		if got := FromBits(b2, b1, b0); got != c {
			t.Errorf("Code %d: bits round trip gave %d", c, got)
		}
	}
	if CycleStart.String() != "CYCLE_START" || Code(4).String() != "RESERVED" {
		t.Error("Unexpected code names")
	}
}
