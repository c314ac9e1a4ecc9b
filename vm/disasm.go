package vm

import (
	"fmt"
	"strings"
)

// Line is one entry of a disassembly listing: either a decoded instruction
// with its operand cells, or a single data cell.
type Line struct {
	Addr        int64
	Cells       []int64 // the instruction word followed by its operands
	Instruction Instruction
	Data        bool
}

// writes reports which parameter, if any, an opcode writes to.
func writes(op Opcode) int {
	switch op {
	case OpAdd, OpMul, OpLessThan, OpEquals:
		return 2
	case OpInput:
		return 0
	}
	return -1
}

// LineAt decodes the cell at addr as an instruction. Cells that do not form
// a complete, well-formed instruction come back as data.
func LineAt(program []int64, addr int64) Line {
	if addr < 0 || addr >= int64(len(program)) {
		return Line{Addr: addr, Cells: []int64{0}, Data: true}
	}
	word := program[addr]
	data := Line{Addr: addr, Cells: program[addr : addr+1], Data: true}

	in := Decode(word)
	info, ok := LookupOpcode(in.Op)
	if !ok || word < 0 {
		return data
	}
	end := addr + 1 + int64(info.Params)
	if end > int64(len(program)) {
		return data
	}
	for i := 0; i < info.Params; i++ {
		if !in.Modes[i].Valid() {
			return data
		}
	}
	if w := writes(in.Op); w >= 0 && in.Modes[w] == ModeImmediate {
		return data
	}
	return Line{Addr: addr, Cells: program[addr:end], Instruction: in}
}

// Disassemble walks program linearly and returns one Line per instruction
// or data cell. Self-modifying programs may of course execute something
// different from this static view.
func Disassemble(program []int64) []Line {
	var lines []Line
	for addr := int64(0); addr < int64(len(program)); {
		l := LineAt(program, addr)
		lines = append(lines, l)
		addr += int64(len(l.Cells))
	}
	return lines
}

func formatOperand(v int64, m Mode) string {
	switch m {
	case ModeImmediate:
		return fmt.Sprintf("%d", v)
	case ModeRelative:
		if v < 0 {
			return fmt.Sprintf("[rb%d]", v)
		}
		return fmt.Sprintf("[rb+%d]", v)
	}
	return fmt.Sprintf("[%d]", v)
}

// Mnemonic returns the assembly-like text of the line, e.g. "add [9], 3, [0]".
func (l Line) Mnemonic() string {
	if l.Data {
		return fmt.Sprintf("data %d", l.Cells[0])
	}
	ops := make([]string, 0, len(l.Cells)-1)
	for i, v := range l.Cells[1:] {
		ops = append(ops, formatOperand(v, l.Instruction.Modes[i]))
	}
	if len(ops) == 0 {
		return l.Instruction.Op.String()
	}
	return fmt.Sprintf("%-4s %s", l.Instruction.Op, strings.Join(ops, ", "))
}

func (l Line) String() string {
	return fmt.Sprintf("%04d  %-24s %s", l.Addr, FormatProgram(l.Cells), l.Mnemonic())
}

// Listing returns the disassembly of program as text, one line per entry.
func Listing(program []int64) string {
	var sb strings.Builder
	for _, l := range Disassemble(program) {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
