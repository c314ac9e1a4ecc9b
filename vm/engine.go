package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("intcode.vm")

// Status is the observable result of a Step call.
type Status uint8

const (
	StatusAwaitingInput Status = iota + 1 // the program wants a value
	StatusOutput                          // the program produced Event.Value
	StatusTerminated                      // the program executed halt
)

func (s Status) String() string {
	switch s {
	case StatusAwaitingInput:
		return "awaiting_input"
	case StatusOutput:
		return "output"
	case StatusTerminated:
		return "terminated"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Event is what Step returns when the engine suspends. Value is only
// meaningful for StatusOutput.
type Event struct {
	Status Status
	Value  int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithMemoryLimit bounds memory growth to the given number of cells.
func WithMemoryLimit(cells int64) Option {
	return func(e *Engine) { e.mem.SetLimit(cells) }
}

// WithStepLimit makes Step fail with ErrStepLimit once n instructions have
// executed. Zero means no limit.
func WithStepLimit(n int64) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithTrace enables per-instruction debug logging.
func WithTrace(trace bool) Option {
	return func(e *Engine) { e.Trace = trace }
}

// Engine is the fetch-decode-execute state machine. It owns its memory,
// instruction pointer and relative base, and is not safe for concurrent
// use: each engine belongs to the goroutine driving it.
type Engine struct {
	mem      *Memory
	ip       int64
	base     int64
	awaiting bool // the input instruction at ip is half done
	halted   bool
	err      error // sticky fault
	steps    int64
	maxSteps int64

	// Trace logs every executed instruction at debug level.
	Trace bool
}

// New returns an engine at instruction pointer 0 with relative base 0,
// running a private copy of program.
func New(program []int64, opts ...Option) *Engine {
	e := &Engine{mem: NewMemory(program)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IP returns the instruction pointer.
func (e *Engine) IP() int64 { return e.ip }

// RelativeBase returns the relative base register.
func (e *Engine) RelativeBase() int64 { return e.base }

// Steps returns the number of instructions executed so far.
func (e *Engine) Steps() int64 { return e.steps }

// Halted reports whether the program has terminated.
func (e *Engine) Halted() bool { return e.halted }

// AwaitingInput reports whether the last Step returned StatusAwaitingInput
// and the engine is waiting to be resumed with a value.
func (e *Engine) AwaitingInput() bool { return e.awaiting }

// Err returns the fault that stopped the engine, if any.
func (e *Engine) Err() error { return e.err }

// Peek reads memory without growing it. Peek(0) is the result of programs
// used as pure evaluators.
func (e *Engine) Peek(addr int64) (int64, error) {
	return e.mem.Peek(addr)
}

// Memory returns a copy of the engine's memory.
func (e *Engine) Memory() []int64 {
	return e.mem.Cells()
}

// Step runs the program until it needs input, produces one output or halts.
//
// When the previous call returned StatusAwaitingInput, input is stored by
// the pending input instruction before execution continues; otherwise input
// is ignored. Any fault is fatal: it is returned by this and every later
// call. Calling Step after StatusTerminated returns ErrHalted.
func (e *Engine) Step(input int64) (Event, error) {
	if e.err != nil {
		return Event{}, e.err
	}
	if e.halted {
		return Event{Status: StatusTerminated}, ErrHalted
	}

	if e.awaiting {
		if err := e.finishInput(input); err != nil {
			return Event{}, e.fail(err)
		}
	}

	for {
		ev, suspend, err := e.exec()
		if err != nil {
			return Event{}, e.fail(err)
		}
		if suspend {
			return ev, nil
		}
	}
}

func (e *Engine) fail(err error) error {
	word, _ := e.mem.Peek(e.ip)
	e.err = &Fault{Err: err, IP: e.ip, Word: word}
	return e.err
}

// operand returns the raw cell of parameter i of the instruction at ip.
func (e *Engine) operand(i int) (int64, error) {
	return e.mem.Read(e.ip + 1 + int64(i))
}

func (e *Engine) param(in Instruction, i int) (int64, error) {
	op, err := e.operand(i)
	if err != nil {
		return 0, err
	}
	return e.mem.Load(op, in.Modes[i], e.base)
}

func (e *Engine) store(in Instruction, i int, v int64) error {
	op, err := e.operand(i)
	if err != nil {
		return err
	}
	return e.mem.Store(op, v, in.Modes[i], e.base)
}

func (e *Engine) finishInput(input int64) error {
	word, err := e.mem.Read(e.ip)
	if err != nil {
		return err
	}
	if err := e.store(Decode(word), 0, input); err != nil {
		return err
	}
	e.awaiting = false
	e.ip += 2
	e.steps++
	return nil
}

// exec executes one instruction. suspend is true when control must go back
// to the caller.
func (e *Engine) exec() (ev Event, suspend bool, err error) {
	if e.maxSteps > 0 && e.steps >= e.maxSteps {
		return Event{}, false, fmt.Errorf("%w: %d", ErrStepLimit, e.maxSteps)
	}

	word, err := e.mem.Read(e.ip)
	if err != nil {
		return Event{}, false, err
	}
	in := Decode(word)

	if e.Trace {
		log.Debugf("[%04d] %-4s modes=%v base=%d", e.ip, in.Op, in.Modes, e.base)
	}

	switch in.Op {
	case OpAdd, OpMul, OpLessThan, OpEquals:
		a, err := e.param(in, 0)
		if err != nil {
			return Event{}, false, err
		}
		b, err := e.param(in, 1)
		if err != nil {
			return Event{}, false, err
		}
		var v int64
		switch in.Op {
		case OpAdd:
			v = a + b
		case OpMul:
			v = a * b
		case OpLessThan:
			v = boolToInt(a < b)
		case OpEquals:
			v = boolToInt(a == b)
		}
		if err := e.store(in, 2, v); err != nil {
			return Event{}, false, err
		}
		e.ip += 4

	case OpInput:
		// Check the destination now so a program that can never accept a
		// value does not ask for one.
		switch in.Modes[0] {
		case ModeImmediate:
			return Event{}, false, ErrInvalidDestination
		case ModePosition, ModeRelative:
		default:
			return Event{}, false, fmt.Errorf("%w: %d", ErrUnhandledParameterMode, int8(in.Modes[0]))
		}
		e.awaiting = true
		return Event{Status: StatusAwaitingInput}, true, nil

	case OpOutput:
		a, err := e.param(in, 0)
		if err != nil {
			return Event{}, false, err
		}
		e.ip += 2
		e.steps++
		return Event{Status: StatusOutput, Value: a}, true, nil

	case OpJumpTrue, OpJumpFalse:
		a, err := e.param(in, 0)
		if err != nil {
			return Event{}, false, err
		}
		b, err := e.param(in, 1)
		if err != nil {
			return Event{}, false, err
		}
		if (a != 0) == (in.Op == OpJumpTrue) {
			if b < 0 {
				return Event{}, false, fmt.Errorf("%w: jump to %d", ErrNegativeAddress, b)
			}
			e.ip = b
		} else {
			e.ip += 3
		}

	case OpAdjustBase:
		a, err := e.param(in, 0)
		if err != nil {
			return Event{}, false, err
		}
		e.base += a
		e.ip += 2

	case OpHalt:
		e.halted = true
		e.steps++
		return Event{Status: StatusTerminated}, true, nil

	default:
		return Event{}, false, fmt.Errorf("%w: %d", ErrUnhandledOpcode, int64(in.Op))
	}

	e.steps++
	return Event{}, false, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Evaluate runs program without I/O and returns the final value at
// address 0.
func Evaluate(program []int64) (int64, error) {
	e := New(program)
	if err := Run(e, NewBuffer()); err != nil {
		return 0, err
	}
	return e.Peek(0)
}
