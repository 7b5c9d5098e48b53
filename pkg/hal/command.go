// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package hal

import (
	"strings"
	"sync"
)

// StatusCode is the result of executing a $-command.
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusUnhandled
	StatusInvalidStatement
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusUnhandled:
		return "unhandled"
	default:
		return "invalid statement"
	}
}

// MessageKind classifies report messages.
type MessageKind int

const (
	MessagePlain MessageKind = iota
	MessageWarning
)

// Reporter is the sink for human-readable output: report messages and
// raw capability strings.
type Reporter interface {
	Message(kind MessageKind, msg string)
	Write(s string)
}

// CommandHandler executes a $-command. args is nil when the command was
// given without an argument.
type CommandHandler func(state State, args *string) StatusCode

// Command is one registered $-command.
type Command struct {
	Name    string
	Handler CommandHandler
	Help    []string
}

// CommandRegistry holds the system $-commands.
type CommandRegistry struct {
	mu       sync.Mutex
	commands map[string]Command
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]Command)}
}

// Register adds commands to the registry. Names are case-insensitive.
func (r *CommandRegistry) Register(cmds ...Command) {
	r.mu.Lock()
	for _, cmd := range cmds {
		r.commands[strings.ToUpper(cmd.Name)] = cmd
	}
	r.mu.Unlock()
}

// Execute runs the named command. Unknown names return StatusUnhandled.
func (r *CommandRegistry) Execute(name string, args *string, state State) StatusCode {
	r.mu.Lock()
	cmd, ok := r.commands[strings.ToUpper(name)]
	r.mu.Unlock()
	if !ok {
		return StatusUnhandled
	}
	return cmd.Handler(state, args)
}

// Help returns the help text of the named command, or nil.
func (r *CommandRegistry) Help(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd, ok := r.commands[strings.ToUpper(name)]; ok {
		return cmd.Help
	}
	return nil
}
