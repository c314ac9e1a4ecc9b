package vm

// Run drives e through io until the program halts. Errors from the engine
// or the backend stop the run and are returned unchanged, so callers can
// match them with errors.Is. An engine restored while awaiting input is
// given its value from io first.
func Run(e *Engine, io IO) error {
	var in int64
	if e.AwaitingInput() {
		v, err := io.Input()
		if err != nil {
			return err
		}
		in = v
	}
	for {
		ev, err := e.Step(in)
		if err != nil {
			return err
		}
		switch ev.Status {
		case StatusAwaitingInput:
			in, err = io.Input()
			if err != nil {
				return err
			}
		case StatusOutput:
			in = 0
			if err := io.Output(ev.Value); err != nil {
				return err
			}
		case StatusTerminated:
			return nil
		}
	}
}

// RunProgram runs program on a fresh engine with a Buffer holding inputs and
// returns the outputs.
func RunProgram(program []int64, inputs ...int64) ([]int64, error) {
	buf := NewBuffer(inputs...)
	if err := Run(New(program), buf); err != nil {
		return buf.Outputs(), err
	}
	return buf.Outputs(), nil
}
