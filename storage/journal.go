package storage

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// Flash is an erase-before-write block device. machine.Flash satisfies it.
// EraseBlocks takes block numbers, not byte offsets.
type Flash interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
	WriteBlockSize() int64
	EraseBlockSize() int64
	EraseBlocks(start, length int64) error
}

// DefaultJournalBlocks is how many erase blocks the journal rotates over.
const DefaultJournalBlocks = 4

const (
	journalMagic = 0x534c4a31
	maxPageSize  = 256
	minBlocks    = 3
)

var (
	ErrFlashGeometry = errors.New("storage: unsupported flash geometry")
	ErrJournalStall  = errors.New("storage: journal cannot make progress")
)

// Journal is a DefaultDeviceSize byte Device kept in RAM and persisted to
// flash as an append-only log of slots. A slot is the image followed by a
// tag page {magic, sequence, crc32}; the tag is programmed last so a torn
// slot is never mounted. Slots fill erase blocks in order and the blocks
// are reused round robin.
//
// Sync only queues the image. Commit does one unit of flash work per call:
// one page program, or one block erase when the caller reports idle.
type Journal struct {
	flash Flash

	page     int64
	block    int64
	slotSize int64
	perBlock int
	blocks   int

	image    [DefaultDeviceSize]byte
	snapshot [DefaultDeviceSize]byte
	buf      [maxPageSize]byte

	seq    uint32
	latest int  // slot of the newest commit, -1 if none
	next   int  // slot the next commit is programmed into
	ready  bool // next and the rest of its block are erased
	spare  bool // the block after next's block is erased

	queued  bool
	writing bool
	pageIdx int64
}

// OpenJournal mounts the newest valid slot found in the first blocks erase
// blocks of f. Blank flash mounts as an erased image.
func OpenJournal(f Flash, blocks int) (*Journal, error) {
	page, block := f.WriteBlockSize(), f.EraseBlockSize()
	if page <= 0 || page > maxPageSize || DefaultDeviceSize%page != 0 {
		return nil, ErrFlashGeometry
	}
	if avail := int(f.Size() / block); blocks > avail {
		blocks = avail
	}
	slot := int64(DefaultDeviceSize) + page
	if blocks < minBlocks || slot > block {
		return nil, ErrFlashGeometry
	}

	j := &Journal{
		flash:    f,
		page:     page,
		block:    block,
		slotSize: slot,
		perBlock: int(block / slot),
		blocks:   blocks,
		latest:   -1,
	}
	for i := range j.image {
		j.image[i] = 0xFF
	}
	if err := j.mount(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) mount() error {
	for s := 0; s < j.slots(); s++ {
		seq, ok, err := j.readSlot(s)
		if err != nil {
			return err
		}
		if ok && (j.latest < 0 || seq > j.seq) {
			j.latest, j.seq = s, seq
			j.image = j.snapshot
		}
	}

	if j.latest >= 0 {
		j.next = (j.latest + 1) % j.slots()
	}
	blank, err := j.blankFrom(j.next)
	if err != nil {
		return err
	}
	if !blank && j.next%j.perBlock != 0 {
		// Torn slot: continue at the next block.
		j.next = j.blockStart(j.blockOf(j.next) + 1)
		if blank, err = j.blankFrom(j.next); err != nil {
			return err
		}
	}
	j.ready = blank

	b := j.spareBlock()
	if j.latest >= 0 && j.blockOf(j.latest) == b {
		return nil
	}
	j.spare, err = j.blankFrom(j.blockStart(b))
	return err
}

func (j *Journal) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(j.image)) {
		return 0, ErrOutOfRange
	}
	return copy(p, j.image[off:]), nil
}

func (j *Journal) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(j.image)) {
		return 0, ErrOutOfRange
	}
	return copy(j.image[off:], p), nil
}

func (j *Journal) Size() int64 {
	return int64(len(j.image))
}

// Sync queues the current image for the next free slot.
func (j *Journal) Sync() error {
	j.queued = true
	return nil
}

// Pending reports whether an image is queued or being programmed.
func (j *Journal) Pending() bool {
	return j.queued || j.writing
}

// Commit performs at most one page program or one block erase. Erases
// are only done when idle is set. It reports whether flash was touched.
func (j *Journal) Commit(idle bool) (bool, error) {
	switch {
	case j.writing:
		return true, j.program()
	case j.queued && j.ready:
		j.snapshot = j.image
		j.queued = false
		j.writing = true
		j.pageIdx = 0
		return true, j.program()
	case !idle:
		return false, nil
	case !j.ready:
		// next is at a block start whenever it is not ready
		b := j.blockOf(j.next)
		if j.latest >= 0 && j.blockOf(j.latest) == b {
			return false, nil
		}
		if err := j.erase(b); err != nil {
			return true, err
		}
		j.ready = true
		return true, nil
	case !j.spare:
		b := j.spareBlock()
		if j.latest >= 0 && j.blockOf(j.latest) == b {
			return false, nil
		}
		if err := j.erase(b); err != nil {
			return true, err
		}
		j.spare = true
		return true, nil
	}
	return false, nil
}

// Flush runs Commit until the queued image is on flash. It may erase and
// blocks for the whole duration, so it is meant for shutdown paths.
func (j *Journal) Flush() error {
	limit := int(int64(DefaultDeviceSize)/j.page) + 4
	for n := 0; j.Pending(); n++ {
		if n > limit {
			return ErrJournalStall
		}
		if _, err := j.Commit(true); err != nil {
			return err
		}
	}
	return nil
}

// Sequence returns the sequence number of the newest commit.
func (j *Journal) Sequence() uint32 { return j.seq }

// program writes the next page of the slot being committed; the tag page
// goes last.
func (j *Journal) program() error {
	pages := int64(DefaultDeviceSize) / j.page
	p := j.buf[:j.page]
	if j.pageIdx < pages {
		copy(p, j.snapshot[j.pageIdx*j.page:])
	} else {
		for i := range p {
			p[i] = 0xFF
		}
		binary.LittleEndian.PutUint32(p[0:], journalMagic)
		binary.LittleEndian.PutUint32(p[4:], j.seq+1)
		binary.LittleEndian.PutUint32(p[8:], crc32.ChecksumIEEE(j.snapshot[:]))
	}

	if _, err := j.flash.WriteAt(p, j.slotOffset(j.next)+j.pageIdx*j.page); err != nil {
		// The slot is dirty now. Retry the image in a fresh block.
		j.writing = false
		j.queued = true
		j.next = j.blockStart(j.blockOf(j.next) + 1)
		j.ready = j.spare
		j.spare = false
		return err
	}
	j.pageIdx++
	if j.pageIdx <= pages {
		return nil
	}

	j.writing = false
	j.seq++
	j.latest = j.next
	j.next = (j.next + 1) % j.slots()
	if j.next%j.perBlock == 0 {
		j.ready = j.spare
		j.spare = false
	}
	return nil
}

// readSlot checks the tag of slot s and loads its image into snapshot.
func (j *Journal) readSlot(s int) (seq uint32, ok bool, err error) {
	off := j.slotOffset(s)
	tag := j.buf[:j.page]
	if _, err := j.flash.ReadAt(tag, off+DefaultDeviceSize); err != nil {
		return 0, false, err
	}
	if binary.LittleEndian.Uint32(tag[0:]) != journalMagic {
		return 0, false, nil
	}
	seq = binary.LittleEndian.Uint32(tag[4:])
	sum := binary.LittleEndian.Uint32(tag[8:])
	if _, err := j.flash.ReadAt(j.snapshot[:], off); err != nil {
		return 0, false, err
	}
	return seq, crc32.ChecksumIEEE(j.snapshot[:]) == sum, nil
}

// blankFrom reports whether slot s and every later slot of its block
// read as erased.
func (j *Journal) blankFrom(s int) (bool, error) {
	end := j.blockStart(j.blockOf(s)) + j.perBlock
	p := j.buf[:j.page]
	for off := j.slotOffset(s); off < j.slotOffset(end-1)+j.slotSize; off += j.page {
		if _, err := j.flash.ReadAt(p, off); err != nil {
			return false, err
		}
		for _, b := range p {
			if b != 0xFF {
				return false, nil
			}
		}
	}
	return true, nil
}

func (j *Journal) erase(b int) error {
	return j.flash.EraseBlocks(int64(b), 1)
}

func (j *Journal) slots() int { return j.perBlock * j.blocks }

func (j *Journal) blockOf(s int) int { return s / j.perBlock }

func (j *Journal) blockStart(b int) int { return (b % j.blocks) * j.perBlock }

func (j *Journal) spareBlock() int { return (j.blockOf(j.next) + 1) % j.blocks }

func (j *Journal) slotOffset(s int) int64 {
	return int64(j.blockOf(s))*j.block + int64(s%j.perBlock)*j.slotSize
}
