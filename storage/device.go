package storage

import "io"

// Device is byte-addressable non-volatile memory. machine.Flash and
// EEPROM emulations satisfy the subset used here.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

// Syncer is implemented by devices that buffer writes and need an explicit
// commit once a record is complete.
type Syncer interface {
	Sync() error
}

// Committer is implemented by devices that persist in slices. Commit does
// at most one unit of slow device work and only erases when idle is set.
type Committer interface {
	Commit(idle bool) (bool, error)
}

// Flusher is implemented by devices that can complete pending work in one
// blocking call.
type Flusher interface {
	Flush() error
}

// DefaultDeviceSize matches the 1 KiB EEPROM of the original controller
// boards.
const DefaultDeviceSize = 1024

// MemDevice is a RAM-backed Device. Fresh memory reads as 0xFF like erased
// flash.
type MemDevice struct {
	data   []byte
	writes []int // per-byte write counts
}

// NewMemDevice returns an erased device of the given size.
func NewMemDevice(size int) *MemDevice {
	d := &MemDevice{
		data:   make([]byte, size),
		writes: make([]int, size),
	}
	for i := range d.data {
		d.data[i] = 0xFF
	}
	return d
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, ErrOutOfRange
	}
	copy(d.data[off:], p)
	for i := range p {
		d.writes[int(off)+i]++
	}
	return len(p), nil
}

func (d *MemDevice) Size() int64 {
	return int64(len(d.data))
}

// Writes returns how many times the byte at off was written.
func (d *MemDevice) Writes(off int) int {
	return d.writes[off]
}

// Bytes exposes the raw contents.
func (d *MemDevice) Bytes() []byte {
	return d.data
}
