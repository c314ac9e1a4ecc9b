package vm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// SyntaxError reports a cell of program text that is not a base-10 integer.
type SyntaxError struct {
	Cell   int    // zero-based cell index
	Offset int    // byte offset of the cell in the original text
	Text   string // the offending cell, trimmed
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("vm: cell %d (offset %d): invalid integer %q", e.Cell, e.Offset, e.Text)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// ParseProgram parses comma-separated, optionally signed base-10 integers.
// Surrounding whitespace, including a trailing newline, is ignored.
func ParseProgram(text string) ([]int64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var program []int64
	offset := 0
	for i, field := range strings.Split(text, ",") {
		lead := len(field) - len(strings.TrimLeftFunc(field, unicode.IsSpace))
		cell := strings.TrimSpace(field)
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Cell: i, Offset: offset + lead, Text: cell, Err: err}
		}
		program = append(program, v)
		offset += len(field) + 1
	}
	return program, nil
}

// ReadProgram reads and parses a program file.
func ReadProgram(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	program, err := ParseProgram(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return program, nil
}

// FormatProgram renders values in the comma-separated program format.
func FormatProgram(values []int64) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	}
	return sb.String()
}
