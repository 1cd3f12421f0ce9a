package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a cycle event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Strobe    uint8  // nth strobe, low byte
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtPulseOn    = 1  // light on; v1=target
	EvtPulseOff   = 2  // light off; v1=target
	EvtCycleRoll  = 3  // cycle boundary; v1=new start, v2=slave
	EvtDaisyIn    = 4  // code latched by the daisy ISR; v1=code
	EvtDaisyOut   = 5  // code driven on the bus; v1=code
	EvtCalibrate  = 6  // calibration accepted; v1=avg, v2=duty
	EvtPower      = 7  // power change; v1=on, v2=propagation
	EvtRecompute  = 8  // strobe layout recomputed; v1=full, v2=pulse
	EvtTrigger    = 9  // trigger period measured; v1=period
	EvtDriftShift = 10 // daisy index moved; v1=index, v2=period
	EvtStorage    = 11 // storage error or rotation; v1=bank
)

// TimingRingSize is the number of events kept.
const TimingRingSize = 32

var eventNames = [...]string{
	EvtPulseOn:    "PULSE_ON",
	EvtPulseOff:   "PULSE_OFF",
	EvtCycleRoll:  "CYCLE",
	EvtDaisyIn:    "DAISY_IN",
	EvtDaisyOut:   "DAISY_OUT",
	EvtCalibrate:  "CALIB",
	EvtPower:      "POWER",
	EvtRecompute:  "RECOMPUTE",
	EvtTrigger:    "TRIGGER",
	EvtDriftShift: "DRIFT!",
	EvtStorage:    "STORAGE",
}

var (
	debugPrintln DebugWriter = func(string) {}
	debugEnabled bool // console d/D

	// Post-mortem trace, always recording. Written by the loop only.
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
)

// SetDebugWriter routes debug lines to the target's console.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled switches debug lines on or off. The timing ring records
// either way.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes msg when debugging is on.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// RecordTiming appends an event to the ring, overwriting the oldest.
// Interrupt handlers must not call it.
func RecordTiming(eventType, strobe uint8, clock, value1, value2 uint32) {
	timingRing[timingRingHead] = TimingEvent{
		EventType: eventType,
		Strobe:    strobe,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (timingRingHead + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType != 0 {
			events = append(events, evt)
		}
	}
	return events
}

// DumpTimingRing writes the ring through the debug writer, regardless of
// the debug switch.
func DumpTimingRing() {
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		name := "UNKNOWN"
		if int(evt.EventType) < len(eventNames) && eventNames[evt.EventType] != "" {
			name = eventNames[evt.EventType]
		}
		debugPrintln("[TIMING] " + name +
			" n=" + itoa(int(evt.Strobe)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

func ClearTimingRing() {
	timingRing = [TimingRingSize]TimingEvent{}
	timingRingHead = 0
}
