// Package controller talks to a strobe controller over its text console.
package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"strobelink/host/serial"
	"strobelink/protocol"
)

// DefaultTimeout is the reply deadline used when none is configured.
const DefaultTimeout = 1500 * time.Millisecond

// Error is a failure reported by, or about, the controller.
type Error struct {
	Code protocol.ErrorCode
}

func (e *Error) Error() string {
	return "E" + strconv.Itoa(int(e.Code)) + " " + e.Code.String()
}

// ErrClosed is returned by requests on a closed client.
var ErrClosed = &Error{Code: protocol.ErrNotConnected}

// Client sends commands to one controller and waits for the replies.
// Requests are serialized.
type Client struct {
	mu      sync.Mutex
	port    io.ReadWriter
	closer  io.Closer
	timeout time.Duration
	closed  bool

	pending []byte
	buf     [256]byte

	// OnLine receives lines that are not the reply to a request, such as
	// the boot banner, debug output or self-check errors.
	OnLine func(line string)
}

// New wraps an open port. timeout bounds each request that has no
// context deadline.
func New(port io.ReadWriter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{port: port, timeout: timeout}
	if cl, ok := port.(io.Closer); ok {
		c.closer = cl
	}
	return c
}

// Dial opens the serial port in cfg and returns a client on it.
func Dial(cfg *serial.Config, timeout time.Duration) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", &Error{Code: protocol.ErrConnectionFailed}, err)
	}
	// Give the controller time to finish its banner.
	time.Sleep(100 * time.Millisecond)
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", cfg.Device, err)
	}
	return New(port, timeout), nil
}

// Close closes the underlying port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Do sends a single-letter command, or a letter with a numeric argument
// when arg is non-empty, and waits for the 0 or E<code> reply.
func (c *Client) Do(ctx context.Context, letter byte, arg string) error {
	line := []byte{letter}
	if arg != "" {
		line = append(line, arg...)
		line = append(line, '\r')
	}
	_, err := c.request(ctx, line, isAck)
	return err
}

// Send writes a command that gets no reply, such as a restart.
func (c *Client) Send(letter byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.pending = c.pending[:0]
	if _, err := c.port.Write([]byte{letter}); err != nil {
		return fmt.Errorf("failed to write command %q: %w", letter, err)
	}
	return nil
}

// Status requests and parses the status line.
func (c *Client) Status(ctx context.Context) (protocol.Status, error) {
	line, err := c.request(ctx, []byte{protocol.CmdStatus}, isStatus)
	if err != nil {
		return protocol.Status{}, err
	}
	st, err := protocol.ParseStatus(line)
	if err != nil {
		return protocol.Status{}, fmt.Errorf("bad status line %q: %w", line, &Error{Code: protocol.ErrUnknownController})
	}
	return st, nil
}

// Help returns the help screen. The screen has no terminator, so lines are
// collected until the controller stays quiet for quiet.
func (c *Client) Help(ctx context.Context, quiet time.Duration) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.pending = c.pending[:0]
	if _, err := c.port.Write([]byte{protocol.CmdHelp}); err != nil {
		return nil, fmt.Errorf("failed to write command %q: %w", protocol.CmdHelp, err)
	}

	var lines []string
	last := time.Now()
	for {
		line, ok, err := c.readLine()
		if err != nil {
			return lines, err
		}
		if ok {
			lines = append(lines, line)
			last = time.Now()
			continue
		}
		if len(lines) > 0 && time.Since(last) >= quiet {
			return lines, nil
		}
		if ctx.Err() != nil {
			if len(lines) > 0 {
				return lines, nil
			}
			return nil, fmt.Errorf("no help screen: %w", &Error{Code: protocol.ErrCommunication})
		}
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// request writes cmd and returns the first line accepted by match. Lines
// that do not match go to OnLine.
func (c *Client) request(ctx context.Context, cmd []byte, match func(string) bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.pending = c.pending[:0]
	if _, err := c.port.Write(cmd); err != nil {
		return "", fmt.Errorf("failed to write command %q: %w", cmd, err)
	}

	for {
		line, ok, err := c.readLine()
		if err != nil {
			return "", err
		}
		if ok {
			if match(line) {
				return line, replyError(line)
			}
			if c.OnLine != nil {
				c.OnLine(line)
			}
			continue
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("no reply to %q: %w", cmd[0], &Error{Code: protocol.ErrCommunication})
		}
	}
}

// readLine returns one complete line without its terminator. ok is false
// when no complete line has arrived yet.
func (c *Client) readLine() (string, bool, error) {
	if line, ok := c.cutLine(); ok {
		return line, true, nil
	}
	n, err := c.port.Read(c.buf[:])
	c.pending = append(c.pending, c.buf[:n]...)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("failed to read reply: %w", err)
	}
	if n == 0 {
		// Ports with a read timeout return no data instead of blocking.
		time.Sleep(time.Millisecond)
	}
	line, ok := c.cutLine()
	return line, ok, nil
}

func (c *Client) cutLine() (string, bool) {
	for {
		i := bytes.IndexByte(c.pending, '\n')
		if i < 0 {
			return "", false
		}
		line := strings.TrimRight(string(c.pending[:i]), "\r")
		c.pending = append(c.pending[:0], c.pending[i+1:]...)
		if line != "" {
			return line, true
		}
	}
}

// isAck matches the replies a command can get. Self-check reports
// (E3..E6) can arrive at any time and are not replies.
func isAck(line string) bool {
	if line == "0" {
		return true
	}
	code, ok := parseErrorLine(line)
	if !ok {
		return false
	}
	switch code {
	case protocol.ErrFrequencyOutOfRange, protocol.ErrUnknownCommand, protocol.ErrPropagationOutOfRange:
		return true
	}
	return false
}

func isStatus(line string) bool {
	return len(line) > 1 && line[0] == protocol.StatusPrefix && line[1] >= '0' && line[1] <= '9'
}

func replyError(line string) error {
	if code, ok := parseErrorLine(line); ok {
		return &Error{Code: code}
	}
	return nil
}

// parseErrorLine recognizes "E<code>".
func parseErrorLine(line string) (protocol.ErrorCode, bool) {
	if len(line) < 2 || line[0] != 'E' {
		return 0, false
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 || n >= protocol.NumCodes {
		return 0, false
	}
	return protocol.ErrorCode(n), true
}
