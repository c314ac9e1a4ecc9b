package vm

import "fmt"

// State is a complete copy of an engine's machine state. It can be stored
// and later turned back into a running engine with Restore.
type State struct {
	Memory        []int64
	IP            int64
	RelativeBase  int64
	AwaitingInput bool
	Halted        bool
	Steps         int64
}

// State exports the engine's current machine state. A faulted engine has
// no resumable state.
func (e *Engine) State() (State, error) {
	if e.err != nil {
		return State{}, fmt.Errorf("vm: cannot export faulted engine: %w", e.err)
	}
	return State{
		Memory:        e.mem.Cells(),
		IP:            e.ip,
		RelativeBase:  e.base,
		AwaitingInput: e.awaiting,
		Halted:        e.halted,
		Steps:         e.steps,
	}, nil
}

// Restore builds an engine from an exported state. An engine that was
// awaiting input resumes with the second half of the input protocol: its
// next Step stores the supplied value.
func Restore(st State, opts ...Option) (*Engine, error) {
	if st.IP < 0 {
		return nil, fmt.Errorf("vm: restore: %w: ip %d", ErrNegativeAddress, st.IP)
	}
	if st.AwaitingInput && st.Halted {
		return nil, fmt.Errorf("vm: restore: state is both halted and awaiting input")
	}
	e := New(st.Memory, opts...)
	e.ip = st.IP
	e.base = st.RelativeBase
	e.awaiting = st.AwaitingInput
	e.halted = st.Halted
	e.steps = st.Steps
	return e, nil
}
