package core

import (
	"errors"
	"sync"

	"strobelink/protocol"
)

// CommandHandler handles one console command. arg is the parsed numeric
// argument for commands that take one and zero otherwise. The returned
// code is reported to the host; a handler that writes its own reply
// returns replyNone.
type CommandHandler func(c *Controller, letter byte, arg uint32) protocol.ErrorCode

// replyNone tells the console not to print a reply.
const replyNone protocol.ErrorCode = 0xFF

// Command is a single-letter console command.
type Command struct {
	Letter   byte
	Usage    string // help column, empty to hide
	Help     string
	TakesArg bool
	// Immediate commands act even while an argument is being typed.
	Immediate bool
	Handler   CommandHandler
}

// CommandRegistry holds the console commands
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[byte]*Command
	order    []byte
}

// ErrUnknownCommand is returned by Dispatch for unregistered letters.
var ErrUnknownCommand = errors.New("unknown command")

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[byte]*Command),
	}
}

// RegisterCommand registers a command in the global registry
func RegisterCommand(cmd Command) {
	globalRegistry.Register(cmd)
}

// Register adds a command to the registry. Registering a letter twice
// replaces the handler but keeps its help position.
func (r *CommandRegistry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Letter]; !exists {
		r.order = append(r.order, cmd.Letter)
	}
	c := cmd
	r.commands[cmd.Letter] = &c
}

// Lookup retrieves a command by letter
func (r *CommandRegistry) Lookup(letter byte) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[letter]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for letter
func (r *CommandRegistry) Dispatch(c *Controller, letter byte, arg uint32) (protocol.ErrorCode, error) {
	cmd, ok := r.Lookup(letter)
	if !ok || cmd.Handler == nil {
		return protocol.ErrUnknownCommand, ErrUnknownCommand
	}
	return cmd.Handler(c, letter, arg), nil
}

// HelpLines returns one line per documented command in registration order.
func (r *CommandRegistry) HelpLines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := make([]string, 0, len(r.order))
	for _, letter := range r.order {
		cmd := r.commands[letter]
		if cmd.Usage == "" {
			continue
		}
		usage := cmd.Usage
		for len(usage) < 10 {
			usage += " "
		}
		lines = append(lines, "\t"+usage+cmd.Help)
	}
	return lines
}

// GetGlobalRegistry returns the global command registry
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
