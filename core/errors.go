package core

import (
	"io"

	"strobelink/protocol"
)

// errorRepeatUS is the minimum spacing of two reports of the same code.
const errorRepeatUS = TimerFreq

// errorReporter writes E<code> replies, at most one per code per second.
type errorReporter struct {
	out  io.Writer
	last [protocol.NumCodes]uint32
	seen [protocol.NumCodes]bool
}

// report writes code unless it was reported within the last second.
// It returns whether the reply was written.
func (r *errorReporter) report(code protocol.ErrorCode, now uint32) bool {
	if int(code) >= len(r.last) || code == protocol.OK {
		return false
	}
	if r.seen[code] && now-r.last[code] <= errorRepeatUS {
		return false
	}
	r.seen[code] = true
	r.last[code] = now
	if r.out != nil {
		r.out.Write(protocol.Reply(code))
	}
	return true
}
