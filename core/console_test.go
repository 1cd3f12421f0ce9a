package core

import (
	"bytes"
	"testing"

	"strobelink/protocol"
)

func TestConsoleReplies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"frequency", "f10\r", "0\r\n"},
		{"frequency LF", "f30\n", "0\r\n"},
		{"frequency too high", "f31\r", "E1\r\n"},
		{"frequency empty", "f\r", "E1\r\n"},
		{"duty", "l1000\r", "0\r\n"},
		{"duty too short", "l49\r", "E1\r\n"},
		{"propagation", "b2\r", "0\r\n"},
		{"propagation out of range", "b3\r", "E7\r\n"},
		{"unknown", "x\r", "E2\r\n"},
		{"letter inside argument", "fn\r", "E1\r\n"},
		{"bare CR", "\r", ""},
		{"error LED", "n", "0\r\n"},
		{"fan", "V", "0\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, 1000)
			r.send(tt.input)
			if got := r.out.String(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConsoleOutputs(t *testing.T) {
	r := newRig(t, 1000)
	r.send("nv")
	if !r.gpio.levels[testPins.ErrorLED] || !r.gpio.levels[testPins.Fan] {
		t.Error("Expected error LED and fan on")
	}
	st := r.c.Status()
	if !st.ErrorLED || !st.FanOn {
		t.Errorf("Expected status to report LED and fan, got %+v", st)
	}

	r.send("NV")
	if r.gpio.levels[testPins.ErrorLED] || r.gpio.levels[testPins.Fan] {
		t.Error("Expected error LED and fan off")
	}
}

func TestConsolePropagation(t *testing.T) {
	r := newRig(t, 1000)
	r.send("b1\r")
	if got := r.c.Status().Propagation; got != protocol.PropagationPowerOn {
		t.Errorf("Expected propagation 1, got %d", got)
	}
}

func TestConsoleImmediateCommands(t *testing.T) {
	r := newRig(t, 1000)
	// r acts even while an argument is being typed
	r.send("f1r")
	if r.resets != 1 {
		t.Errorf("Expected reset, got %d", r.resets)
	}
	r.send("\r")
	if r.out.String() != "0\r\n" {
		t.Errorf("Expected f1 to complete, got %q", r.out.String())
	}
}

func TestConsoleTimeout(t *testing.T) {
	r := newRig(t, 1000)
	in := protocol.NewFifoBuffer(32)
	r.c.con.in = in

	in.Write([]byte("f5"))
	r.c.pollConsole(1000)
	r.c.pollConsole(1001)
	if r.c.con.n != 2 {
		t.Fatalf("Expected 2 buffered bytes, got %d", r.c.con.n)
	}

	in.Write([]byte("\r"))
	r.c.pollConsole(1001 + commandTimeoutUS + 1)
	if r.out.Len() != 0 {
		t.Errorf("Expected stale command dropped, got %q", r.out.String())
	}
	if r.c.inputFullCycle != 0 {
		t.Errorf("Expected no staged frequency, got %d", r.c.inputFullCycle)
	}
}

func TestHelpScreen(t *testing.T) {
	r := newRig(t, 1000)
	r.send("h")
	out := r.out.String()
	for _, want := range []string{
		"Camera/Lighting Synchronization V48",
		"Configuration",
		"len between two images  : 200000[us]=5Hz",
		"number of strobes/cycle : 40",
		"Validation",
		"Help",
		"f<Hz><CR> set frequency",
	} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("Expected help to contain %q", want)
		}
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0},
		{"10", 10},
		{"12x3", 12},
		{"x", 0},
		{"99999999999", 0xFFFFFFFF},
	}
	for _, tt := range tests {
		if got := parseArg([]byte(tt.in)); got != tt.want {
			t.Errorf("parseArg(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestErrorReporterRateLimit(t *testing.T) {
	var out bytes.Buffer
	r := errorReporter{out: &out}

	if !r.report(protocol.ErrFrequencyOutOfRange, 0) {
		t.Error("Expected first report written")
	}
	if r.report(protocol.ErrFrequencyOutOfRange, 500000) {
		t.Error("Expected repeat within 1s suppressed")
	}
	if !r.report(protocol.ErrUnknownCommand, 500000) {
		t.Error("Expected other code written")
	}
	if !r.report(protocol.ErrFrequencyOutOfRange, 1000001) {
		t.Error("Expected report after 1s written")
	}
	if r.report(protocol.OK, 2000000) {
		t.Error("Expected OK never reported as error")
	}
	if out.String() != "E1\r\nE2\r\nE1\r\n" {
		t.Errorf("Unexpected output %q", out.String())
	}
}
