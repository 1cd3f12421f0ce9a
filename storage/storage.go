// Package storage persists the controller configuration with wear leveling
// by address rotation.
//
// Layout: a master record {magic u16, bank u16} at offset 0 and the
// configuration record at the bank address. Updates are staged and written
// one byte per call so they fit in the gaps between light pulses. When a
// bank has taken MaxWrites updates the record moves one record size up the
// device and the master record follows it.
//
// On flash the device is a Journal, which turns each completed record into
// an append-only slot programmed a page at a time.
package storage

import (
	"encoding/binary"
	"errors"

	"strobelink/settings"
)

// HeaderSize is the size of the master record.
const HeaderSize = 4

// MaxWrites is the default per-bank write ceiling.
const MaxWrites = 50000

var (
	ErrShortDevice = errors.New("storage: device too small")
	ErrOutOfRange  = errors.New("storage: write out of range")
)

// Store owns the persisted configuration record.
type Store struct {
	dev       Device
	magic     uint16
	bank      uint16
	maxWrites uint16
	counter   uint16

	staged [settings.RecordSize]byte
	next   int // next staged byte to write, -1 when idle
	header bool

	err error
}

// Option adjusts a Store.
type Option func(*Store)

// WithMaxWrites overrides the per-bank write ceiling.
func WithMaxWrites(n uint16) Option {
	return func(s *Store) { s.maxWrites = n }
}

// WithMagic overrides the master record magic number.
func WithMagic(m uint16) Option {
	return func(s *Store) { s.magic = m }
}

// New creates a store on dev.
func New(dev Device, opts ...Option) *Store {
	s := &Store{
		dev:       dev,
		magic:     settings.Magic,
		bank:      HeaderSize,
		maxWrites: MaxWrites,
		next:      -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the configuration at boot. A missing or foreign master
// record, or an invalid configuration, resets the device to defaults.
// initialized reports whether that happened.
func (s *Store) Load() (cfg settings.Config, initialized bool, err error) {
	if s.dev.Size() < HeaderSize+settings.RecordSize {
		return settings.Default(), false, ErrShortDevice
	}

	var hdr [HeaderSize]byte
	if _, err := s.dev.ReadAt(hdr[:], 0); err != nil {
		return settings.Default(), false, err
	}
	magic := binary.LittleEndian.Uint16(hdr[0:])
	bank := binary.LittleEndian.Uint16(hdr[2:])

	if magic == s.magic && s.bankValid(bank) {
		var rec [settings.RecordSize]byte
		if _, err := s.dev.ReadAt(rec[:], int64(bank)); err != nil {
			return settings.Default(), false, err
		}
		if err := cfg.UnmarshalBinary(rec[:]); err == nil && cfg.Validate() == nil {
			s.bank = bank
			s.counter = cfg.WriteCounter
			return cfg, false, nil
		}
	}

	cfg = settings.Default()
	s.bank = HeaderSize
	s.counter = 0
	if err := s.Write(cfg); err != nil {
		return cfg, true, err
	}
	return cfg, true, nil
}

// Write stores cfg and the master record immediately. Any staged update
// is dropped.
func (s *Store) Write(cfg settings.Config) error {
	s.next = -1
	s.header = false
	cfg.WriteCounter = s.counter
	var rec [settings.RecordSize]byte
	if err := cfg.MarshalTo(rec[:]); err != nil {
		return err
	}
	if _, err := s.dev.WriteAt(rec[:], int64(s.bank)); err != nil {
		return err
	}
	if err := s.writeHeader(); err != nil {
		return err
	}
	return s.sync()
}

// BeginWrite stages cfg for incremental writing and bumps the bank write
// counter. Calling it while a write is in flight restarts from the first
// byte with the new contents; a pending master record update is kept.
func (s *Store) BeginWrite(cfg settings.Config) {
	if s.counter < 0xFFFF {
		s.counter++
	}
	cfg.WriteCounter = s.counter
	cfg.MarshalTo(s.staged[:])
	s.next = 0
}

// Pending reports whether a staged write is still in progress.
func (s *Store) Pending() bool {
	return s.next >= 0
}

// Update writes at most one staged byte. It returns true if it touched the
// device.
func (s *Store) Update() bool {
	if s.next < 0 {
		return false
	}

	if s.counter >= s.maxWrites {
		s.rotate()
	}

	if s.next < settings.RecordSize {
		var b [1]byte
		b[0] = s.staged[s.next]
		if _, err := s.dev.WriteAt(b[:], int64(s.bank)+int64(s.next)); err != nil {
			s.fail(err)
			return true
		}
		s.next++
		if s.next == settings.RecordSize && !s.header {
			s.next = -1
			s.fail(s.sync())
		}
		return true
	}

	// A rotated bank is followed by the master record
	s.next = -1
	s.header = false
	if err := s.writeHeader(); err != nil {
		s.fail(err)
		return true
	}
	s.fail(s.sync())
	return true
}

// rotate moves to the next bank and restarts the staged record there.
func (s *Store) rotate() {
	s.bank += settings.RecordSize
	if !s.bankValid(s.bank) {
		s.bank = HeaderSize
	}
	s.counter = 0
	settings.PutWriteCounter(s.staged[:], 0)
	s.next = 0
	s.header = true
}

func (s *Store) bankValid(bank uint16) bool {
	return bank >= HeaderSize && int64(bank)+settings.RecordSize <= s.dev.Size()
}

func (s *Store) writeHeader() error {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], s.magic)
	binary.LittleEndian.PutUint16(hdr[2:], s.bank)
	_, err := s.dev.WriteAt(hdr[:], 0)
	return err
}

func (s *Store) sync() error {
	if syncer, ok := s.dev.(Syncer); ok {
		return syncer.Sync()
	}
	return nil
}

// Maintain gives a slicing device one unit of work once no staged byte is
// left. idle allows slow operations such as flash erases. It returns true
// if it touched the device.
func (s *Store) Maintain(idle bool) bool {
	if s.next >= 0 {
		return false
	}
	committer, ok := s.dev.(Committer)
	if !ok {
		return false
	}
	busy, err := committer.Commit(idle)
	s.fail(err)
	return busy
}

// Flush writes out any staged bytes and waits for the device to persist
// them. It blocks and is meant for the restart path.
func (s *Store) Flush() error {
	for s.Update() {
	}
	if flusher, ok := s.dev.(Flusher); ok {
		s.fail(flusher.Flush())
	}
	return s.Err()
}

func (s *Store) fail(err error) {
	if err != nil {
		s.err = err
	}
}

// Err returns and clears the last error from an incremental write.
func (s *Store) Err() error {
	err := s.err
	s.err = nil
	return err
}

// Bank returns the active bank address.
func (s *Store) Bank() uint16 { return s.bank }

// WriteCounter returns the number of writes taken by the active bank.
func (s *Store) WriteCounter() uint16 { return s.counter }
