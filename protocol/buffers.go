package protocol

// FifoBuffer queues console bytes from the serial reader to the control
// loop. Writes that do not fit are truncated.
type FifoBuffer struct {
	buf  []byte
	head int // oldest byte
	n    int
}

// NewFifoBuffer creates a queue holding up to capacity bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends data and returns how many bytes fit.
func (f *FifoBuffer) Write(data []byte) int {
	k := 0
	for ; k < len(data) && f.n < len(f.buf); k++ {
		f.buf[(f.head+f.n)%len(f.buf)] = data[k]
		f.n++
	}
	return k
}

// PopByte removes and returns the oldest byte.
func (f *FifoBuffer) PopByte() (byte, bool) {
	if f.n == 0 {
		return 0, false
	}
	b := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.n--
	return b, true
}

// Available returns the number of queued bytes.
func (f *FifoBuffer) Available() int { return f.n }

// Free returns the room left.
func (f *FifoBuffer) Free() int { return len(f.buf) - f.n }

// Reset drops everything queued.
func (f *FifoBuffer) Reset() {
	f.head = 0
	f.n = 0
}

// ScratchOutput collects console output until the target drains it.
// Bytes past OutputMax are dropped and counted.
type ScratchOutput struct {
	buf     [OutputMax]byte
	pos     int
	dropped uint32
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

// Write implements io.Writer. It never fails; overflow is dropped.
func (s *ScratchOutput) Write(data []byte) (int, error) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	s.dropped += uint32(len(data) - n)
	return len(data), nil
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Dropped returns the number of bytes lost to overflow.
func (s *ScratchOutput) Dropped() uint32 {
	return s.dropped
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}
