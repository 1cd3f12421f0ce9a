package core

import (
	"strings"
	"testing"
)

func TestTimingRingKeepsNewest(t *testing.T) {
	ClearTimingRing()
	for i := uint32(0); i < TimingRingSize+8; i++ {
		RecordTiming(EvtPulseOn, uint8(i), i, 0, 0)
	}
	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("Expected %d events, got %d", TimingRingSize, len(events))
	}
	if events[0].Clock != 8 || events[len(events)-1].Clock != TimingRingSize+7 {
		t.Errorf("Expected oldest 8 and newest %d, got %d and %d",
			TimingRingSize+7, events[0].Clock, events[len(events)-1].Clock)
	}
	ClearTimingRing()
}

func TestDebugOffDumpsRing(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(nil)

	r := newRig(t, 1000)
	RecordTiming(EvtPower, 0, 1000, 1, 0)

	r.send("d")
	DebugPrintln("hello")
	r.send("D")
	DebugPrintln("hidden")

	if len(lines) < 3 || lines[0] != "hello" {
		t.Fatalf("Unexpected debug output %q", lines)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "[TIMING] POWER n=0 clock=1000 v1=1 v2=0") {
		t.Errorf("Expected the power event in the dump, got %q", joined)
	}
	if strings.Contains(joined, "hidden") {
		t.Error("Expected no debug lines after D")
	}
	if r.out.String() != "0\r\n0\r\n" {
		t.Errorf("Expected two OK replies, got %q", r.out.String())
	}
}
