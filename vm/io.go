package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// IO is the capability set an engine driver needs: a possibly blocking
// source of input values and a sink for output values.
type IO interface {
	Input() (int64, error)
	Output(v int64) error
}

// Buffer is a deterministic IO backed by a fixed input list. Outputs are
// accumulated in order.
type Buffer struct {
	input   []int64
	next    int
	outputs []int64
}

// NewBuffer returns a Buffer that hands out inputs in order.
func NewBuffer(inputs ...int64) *Buffer {
	in := make([]int64, len(inputs))
	copy(in, inputs)
	return &Buffer{input: in}
}

// Input returns the next pre-supplied value, or ErrInputExhausted.
func (b *Buffer) Input() (int64, error) {
	if b.next >= len(b.input) {
		return 0, ErrInputExhausted
	}
	v := b.input[b.next]
	b.next++
	return v, nil
}

// Output appends v to the captured outputs.
func (b *Buffer) Output(v int64) error {
	b.outputs = append(b.outputs, v)
	return nil
}

// Push appends more values to the input list.
func (b *Buffer) Push(inputs ...int64) {
	b.input = append(b.input, inputs...)
}

// Outputs returns the captured outputs.
func (b *Buffer) Outputs() []int64 {
	return b.outputs
}

// Len returns the number of captured outputs.
func (b *Buffer) Len() int {
	return len(b.outputs)
}

// Get returns the i-th captured output.
func (b *Buffer) Get(i int) int64 {
	return b.outputs[i]
}

// Last returns the most recent output and whether there was one.
func (b *Buffer) Last() (int64, bool) {
	if len(b.outputs) == 0 {
		return 0, false
	}
	return b.outputs[len(b.outputs)-1], true
}

// Console is the interactive IO: it prompts on w, reads one integer per line
// from r, and prints each output on its own line.
type Console struct {
	in     *bufio.Scanner
	out    io.Writer
	Prompt string
}

// NewConsole returns a Console reading from r and writing to w.
func NewConsole(r io.Reader, w io.Writer) *Console {
	return &Console{
		in:     bufio.NewScanner(r),
		out:    w,
		Prompt: "Input: ",
	}
}

// Input prompts and blocks until a line is available. End of input is
// reported as ErrInputExhausted.
func (c *Console) Input() (int64, error) {
	if c.Prompt != "" {
		if _, err := io.WriteString(c.out, c.Prompt); err != nil {
			return 0, err
		}
	}
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return 0, err
		}
		return 0, ErrInputExhausted
	}
	line := strings.TrimSpace(c.in.Text())
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("console: bad input %q: %w", line, err)
	}
	return v, nil
}

// Output writes v as one line.
func (c *Console) Output(v int64) error {
	_, err := fmt.Fprintln(c.out, v)
	return err
}
