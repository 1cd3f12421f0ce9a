// Package daisy implements the master/slave frequency tracking used on the
// 3-wire daisy-chain link.
package daisy

// Code is a 3-bit message on the daisy-chain bus.
type Code uint8

// Bus codes. All other values are reserved and ignored.
const (
	NOP        Code = 0
	CycleStart Code = 1
	PowerOff   Code = 7
)

// String names a bus code.
func (c Code) String() string {
	switch c {
	case NOP:
		return "NOP"
	case CycleStart:
		return "CYCLE_START"
	case PowerOff:
		return "POWER_OFF"
	default:
		return "RESERVED"
	}
}

// Bits returns the three output line levels (bit 2, bit 1, bit 0).
// Bit 0 is the clock line and must be written last.
func (c Code) Bits() (b2, b1, b0 bool) {
	return c&4 != 0, c&2 != 0, c&1 != 0
}

// FromBits assembles a code from the three input line levels.
func FromBits(b2, b1, b0 bool) Code {
	var c Code
	if b2 {
		c |= 4
	}
	if b1 {
		c |= 2
	}
	if b0 {
		c |= 1
	}
	return c
}

// Drift tracking parameters
const (
	InRangeUS  = 1000
	DriftVotes = 5
)

// Periods lists the supported cycle lengths for 1..25 frames per second,
// each rounded down to a multiple of 4 µs.
var Periods = [...]uint32{
	1000000, 500000, 333332, 250000, 200000,
	166664, 142856, 125000, 111108, 100000,
	90908, 83332, 76920, 71428, 66664,
	62500, 58820, 55552, 52628, 50000,
	47616, 45452, 43476, 41664, 40000,
}

// Sync tracks which table entry the local cycle follows and how far an
// upstream master has drifted from it.
type Sync struct {
	index int
	below uint32 // period of index-1 (longer period, lower fps)
	above uint32 // period of index+1
	votes int8

	prevTrigger uint32
	havePrev    bool
}

// New returns a Sync locked to the entry nearest to fullCycleUS.
func New(fullCycleUS uint32) *Sync {
	s := &Sync{}
	s.Find(fullCycleUS)
	return s
}

// Find selects the table entry nearest to target and caches its neighbors.
func (s *Sync) Find(target uint32) int {
	best := 0
	bestErr := absDiff(Periods[0], target)
	for i := 1; i < len(Periods); i++ {
		if err := absDiff(Periods[i], target); err < bestErr {
			best, bestErr = i, err
		}
	}
	s.setIndex(best)
	return best
}

func (s *Sync) setIndex(i int) {
	s.index = i
	s.below, s.above = 0, 0
	if i > 0 {
		s.below = Periods[i-1]
	}
	if i < len(Periods)-1 {
		s.above = Periods[i+1]
	}
}

// Index returns the selected table index.
func (s *Sync) Index() int { return s.index }

// Period returns the selected table period.
func (s *Sync) Period() uint32 { return Periods[s.index] }

// Votes returns the drift counter.
func (s *Sync) Votes() int8 { return s.votes }

// ResetVotes clears the drift counter.
func (s *Sync) ResetVotes() { s.votes = 0 }

// Mark records a trigger timestamp and returns the period since the
// previous one. ok is false for the first trigger.
func (s *Sync) Mark(at uint32) (period uint32, ok bool) {
	if s.havePrev {
		period, ok = at-s.prevTrigger, true
	}
	s.prevTrigger = at
	s.havePrev = true
	return period, ok
}

// Forget drops the previous trigger timestamp.
func (s *Sync) Forget() {
	s.havePrev = false
}

// Track scores an observed master period against the selected entry.
// When DriftVotes consecutive votes agree, the index moves one step and
// the new period is returned with shifted set.
func (s *Sync) Track(period uint32) (newPeriod uint32, shifted bool) {
	current := Periods[s.index]
	errCur := absDiff(period, current)
	if errCur < InRangeUS {
		return 0, false
	}

	if s.below != 0 && absDiff(period, s.below) < errCur {
		s.votes--
		if s.votes <= -DriftVotes {
			s.votes = 0
			s.setIndex(s.index - 1)
			return Periods[s.index], true
		}
	}
	if s.above != 0 && absDiff(period, s.above) < errCur {
		s.votes++
		if s.votes >= DriftVotes {
			s.votes = 0
			s.setIndex(s.index + 1)
			return Periods[s.index], true
		}
	}
	return 0, false
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
