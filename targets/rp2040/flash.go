//go:build rp2040

package main

import (
	"machine"

	"strobelink/storage"
)

// openFlashDevice mounts the settings journal on the flash data area. The
// store programs it one page per paperwork pass and the controller only
// lets it erase while the light is powered off.
func openFlashDevice() (*storage.Journal, error) {
	return storage.OpenJournal(&machine.Flash, storage.DefaultJournalBlocks)
}
