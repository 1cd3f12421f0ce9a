package protocol

import "testing"

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	n, err := scratch.Write([]byte("0\r\n"))
	if n != 3 || err != nil {
		t.Errorf("Expected 3 bytes written, got %d (%v)", n, err)
	}
	scratch.Write([]byte("E2\r\n"))

	if got := string(scratch.Result()); got != "0\r\nE2\r\n" {
		t.Errorf("Unexpected result %q", got)
	}

	scratch.Reset()
	if len(scratch.Result()) != 0 {
		t.Errorf("After reset, expected empty result, got %d bytes", len(scratch.Result()))
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	big := make([]byte, OutputMax+10)

	n, _ := scratch.Write(big)
	if n != len(big) {
		t.Errorf("Write should report the full length, got %d", n)
	}
	if len(scratch.Result()) != OutputMax {
		t.Errorf("Expected %d buffered bytes, got %d", OutputMax, len(scratch.Result()))
	}
	if scratch.Dropped() != 10 {
		t.Errorf("Expected 10 dropped bytes, got %d", scratch.Dropped())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(4)

	if fifo.Available() != 0 || fifo.Free() != 4 {
		t.Errorf("Expected empty FIFO, got %d available, %d free", fifo.Available(), fifo.Free())
	}
	if n := fifo.Write([]byte("f10\r\n")); n != 4 {
		t.Errorf("Expected 4 bytes to fit, got %d", n)
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected full FIFO, %d free", fifo.Free())
	}

	var got []byte
	for {
		b, ok := fifo.PopByte()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "f10\r" {
		t.Errorf("Expected %q, got %q", "f10\r", got)
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.PopByte()
	fifo.PopByte()

	if n := fifo.Write([]byte{5, 6, 7}); n != 3 {
		t.Errorf("Expected to write 3 bytes, wrote %d", n)
	}
	for _, want := range []byte{3, 4, 5, 6, 7} {
		if b, ok := fifo.PopByte(); !ok || b != want {
			t.Errorf("Expected %d, got %d (ok=%v)", want, b, ok)
		}
	}
	if _, ok := fifo.PopByte(); ok {
		t.Error("Expected empty FIFO after reading everything")
	}

	fifo.Write([]byte{1, 2})
	fifo.Reset()
	if fifo.Available() != 0 {
		t.Errorf("Expected reset FIFO to be empty, got %d", fifo.Available())
	}
}
