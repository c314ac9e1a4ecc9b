package vm

import (
	"bufio"
	"fmt"
	"io"
)

// ASCII is an IO for programs that talk in text. Input is read a line at a
// time and fed to the program one byte per request, followed by '\n'.
// Outputs in the ASCII range are written as characters; anything larger is
// written as a decimal line, which is how such programs report their final
// answer.
type ASCII struct {
	in      *bufio.Reader
	out     io.Writer
	pending []byte
}

// NewASCII returns an ASCII IO reading from r and writing to w.
func NewASCII(r io.Reader, w io.Writer) *ASCII {
	return &ASCII{in: bufio.NewReader(r), out: w}
}

// Input returns the next byte of the current line, reading a new line when
// the previous one has been consumed.
func (a *ASCII) Input() (int64, error) {
	if len(a.pending) == 0 {
		line, err := a.in.ReadBytes('\n')
		if len(line) == 0 {
			if err == io.EOF {
				return 0, ErrInputExhausted
			}
			return 0, err
		}
		if line[len(line)-1] != '\n' {
			line = append(line, '\n')
		}
		a.pending = line
	}
	b := a.pending[0]
	a.pending = a.pending[1:]
	return int64(b), nil
}

// Output writes v as a character when it is ASCII, otherwise as a number.
func (a *ASCII) Output(v int64) error {
	if v >= 0 && v <= 127 {
		_, err := a.out.Write([]byte{byte(v)})
		return err
	}
	_, err := fmt.Fprintf(a.out, "%d\n", v)
	return err
}

// EncodeASCII converts text to the input values an ASCII program expects.
func EncodeASCII(text string) []int64 {
	out := make([]int64, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = int64(text[i])
	}
	return out
}
