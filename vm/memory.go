package vm

import "fmt"

// MaxCells is the hard ceiling on memory size. It applies when no limit is
// set or the limit is larger.
const MaxCells int64 = 1 << 27

// Memory is the linear, zero-indexed store of an Engine. Any access past the
// current end grows the backing slice with zeros, up to the limit if one is
// set and never past MaxCells.
type Memory struct {
	cells []int64
	limit int64 // maximum number of cells, 0 for none
}

// NewMemory returns a Memory holding a copy of program.
func NewMemory(program []int64) *Memory {
	cells := make([]int64, len(program))
	copy(cells, program)
	return &Memory{cells: cells}
}

// Len returns the current logical length.
func (m *Memory) Len() int {
	return len(m.cells)
}

// Cells returns a copy of the memory contents.
func (m *Memory) Cells() []int64 {
	out := make([]int64, len(m.cells))
	copy(out, m.cells)
	return out
}

// SetLimit bounds the number of cells memory may grow to. Zero removes the
// bound.
func (m *Memory) SetLimit(cells int64) {
	m.limit = cells
}

// grow extends memory so that addr is a valid index. append doubles the
// capacity as needed, so repeated growth stays amortised.
func (m *Memory) grow(addr int64) error {
	if addr < int64(len(m.cells)) {
		return nil
	}
	limit := MaxCells
	if m.limit > 0 && m.limit < limit {
		limit = m.limit
	}
	if addr >= limit {
		return fmt.Errorf("%w: address %d, limit %d", ErrMemoryLimit, addr, limit)
	}
	m.cells = append(m.cells, make([]int64, addr+1-int64(len(m.cells)))...)
	return nil
}

// Read returns the cell at addr, growing memory if addr is past the end.
func (m *Memory) Read(addr int64) (int64, error) {
	if addr < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeAddress, addr)
	}
	if err := m.grow(addr); err != nil {
		return 0, err
	}
	return m.cells[addr], nil
}

// Write stores v at addr, growing memory if addr is past the end.
func (m *Memory) Write(addr, v int64) error {
	if addr < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeAddress, addr)
	}
	if err := m.grow(addr); err != nil {
		return err
	}
	m.cells[addr] = v
	return nil
}

// Peek returns the cell at addr without growing memory. Cells past the end
// read as zero.
func (m *Memory) Peek(addr int64) (int64, error) {
	if addr < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeAddress, addr)
	}
	if addr >= int64(len(m.cells)) {
		return 0, nil
	}
	return m.cells[addr], nil
}

// address resolves operand to an effective address for mode.
func address(operand int64, mode Mode, base int64) (int64, error) {
	switch mode {
	case ModePosition:
		return operand, nil
	case ModeRelative:
		return operand + base, nil
	case ModeImmediate:
		return 0, ErrInvalidDestination
	}
	return 0, fmt.Errorf("%w: %d", ErrUnhandledParameterMode, int8(mode))
}

// Load returns the value of a parameter: the operand itself in immediate
// mode, otherwise the cell it addresses.
func (m *Memory) Load(operand int64, mode Mode, base int64) (int64, error) {
	if mode == ModeImmediate {
		return operand, nil
	}
	addr, err := address(operand, mode, base)
	if err != nil {
		return 0, err
	}
	return m.Read(addr)
}

// Store writes value to the cell a parameter addresses. Immediate mode has
// no address and fails with ErrInvalidDestination.
func (m *Memory) Store(operand, value int64, mode Mode, base int64) error {
	addr, err := address(operand, mode, base)
	if err != nil {
		return err
	}
	return m.Write(addr, value)
}
