package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrNegativeAddress is returned when an effective address resolves to a
	// negative index.
	ErrNegativeAddress = errors.New("negative address")

	// ErrInvalidDestination is returned when an instruction stores to an
	// immediate-mode operand.
	ErrInvalidDestination = errors.New("invalid destination")

	// ErrUnhandledOpcode is returned when the opcode matches no instruction.
	ErrUnhandledOpcode = errors.New("unhandled opcode")

	// ErrUnhandledParameterMode is returned for a mode digit outside {0,1,2}.
	ErrUnhandledParameterMode = errors.New("unhandled parameter mode")

	// ErrInputExhausted is returned by a Buffer (or a Console at EOF) that has
	// no further input to hand out.
	ErrInputExhausted = errors.New("input exhausted")

	// ErrChannelClosed is returned by a Channel whose peer has gone away.
	// Network drivers treat it as a normal stop for one node.
	ErrChannelClosed = errors.New("channel closed")

	// ErrHalted is returned by Step once the engine has terminated.
	ErrHalted = errors.New("engine halted")

	// ErrMemoryLimit is returned when an access would grow memory past the
	// limit set with WithMemoryLimit.
	ErrMemoryLimit = errors.New("memory limit exceeded")

	// ErrStepLimit is returned when the instruction budget set with
	// WithStepLimit is used up.
	ErrStepLimit = errors.New("step limit exceeded")
)

// Fault is the fatal error recorded by an Engine. It wraps one of the
// sentinel errors above and records where execution stopped.
type Fault struct {
	Err  error
	IP   int64 // address of the faulting instruction
	Word int64 // instruction word at IP
}

func (f *Fault) Error() string {
	return fmt.Sprintf("vm: %v at ip=%d (word %d)", f.Err, f.IP, f.Word)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
