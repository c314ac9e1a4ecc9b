package vm

import "fmt"

// Opcode selects an Intcode operation. It is the two least significant
// decimal digits of an instruction word.
type Opcode int64

const (
	OpAdd        Opcode = 1  // c = a + b
	OpMul        Opcode = 2  // c = a * b
	OpInput      Opcode = 3  // a = input
	OpOutput     Opcode = 4  // output a
	OpJumpTrue   Opcode = 5  // if a != 0 { ip = b }
	OpJumpFalse  Opcode = 6  // if a == 0 { ip = b }
	OpLessThan   Opcode = 7  // c = a < b
	OpEquals     Opcode = 8  // c = a == b
	OpAdjustBase Opcode = 9  // base += a
	OpHalt       Opcode = 99 // stop
)

// OpcodeInfo describes an opcode for disassembly and tracing.
type OpcodeInfo struct {
	Name   string
	Params int // number of parameters following the opcode word
}

var opcodeInfo = map[Opcode]OpcodeInfo{
	OpAdd:        {"add", 3},
	OpMul:        {"mul", 3},
	OpInput:      {"in", 1},
	OpOutput:     {"out", 1},
	OpJumpTrue:   {"jnz", 2},
	OpJumpFalse:  {"jz", 2},
	OpLessThan:   {"lt", 3},
	OpEquals:     {"eq", 3},
	OpAdjustBase: {"arb", 1},
	OpHalt:       {"halt", 0},
}

// LookupOpcode returns the description of op and whether op is defined.
func LookupOpcode(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfo[op]
	return info, ok
}

func (op Opcode) String() string {
	if info, ok := opcodeInfo[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("op(%d)", int64(op))
}

// Mode is a parameter addressing mode.
type Mode int8

const (
	ModePosition  Mode = 0 // operand is an address
	ModeImmediate Mode = 1 // operand is the value
	ModeRelative  Mode = 2 // operand is an offset from the relative base
)

func (m Mode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeImmediate:
		return "immediate"
	case ModeRelative:
		return "relative"
	}
	return fmt.Sprintf("mode(%d)", int8(m))
}

// Valid reports whether m is one of the three defined modes.
func (m Mode) Valid() bool {
	return m == ModePosition || m == ModeImmediate || m == ModeRelative
}

// Instruction is a decoded instruction word.
type Instruction struct {
	Op    Opcode
	Modes [3]Mode
}

// Decode splits an instruction word into its opcode and parameter modes.
// It never fails: undefined opcodes and modes are only reported by the
// Engine when an instruction using them is executed.
func Decode(word int64) Instruction {
	in := Instruction{Op: Opcode(word % 100)}
	digits := word / 100
	for i := range in.Modes {
		in.Modes[i] = Mode(digits % 10)
		digits /= 10
	}
	return in
}
