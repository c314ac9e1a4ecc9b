package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// Text position helpers
// ---------------------------------------------------------------------------

func TestCellAt(t *testing.T) {
	text := "1002,4,3,\n4,33"
	tests := []struct {
		line, char uint32
		want       int64
	}{
		{0, 0, 0},
		{0, 4, 0},
		{0, 5, 1},
		{0, 7, 2},
		{1, 0, 3},
		{1, 3, 4},
		{1, 99, 4},
		{5, 0, -1},
	}

	for _, tc := range tests {
		got := cellAt(text, protocol.Position{Line: tc.line, Character: tc.char})
		if got != tc.want {
			t.Errorf("cellAt(%d:%d) = %d, want %d", tc.line, tc.char, got, tc.want)
		}
	}
}

func TestPosition(t *testing.T) {
	text := "1,2,\n3,x"
	pos := position(text, 7)
	if pos.Line != 1 || pos.Character != 2 {
		t.Errorf("position = %d:%d, want 1:2", pos.Line, pos.Character)
	}
	pos = position(text, 100)
	if pos.Line != 1 || pos.Character != 3 {
		t.Errorf("clamped position = %d:%d, want 1:3", pos.Line, pos.Character)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose_Valid(t *testing.T) {
	if d := diagnose("1,0,0,3,99\n"); len(d) != 0 {
		t.Errorf("diagnose returned %d diagnostics for a valid program", len(d))
	}
}

func TestDiagnose_BadCell(t *testing.T) {
	d := diagnose("1,0,\n0,abc,99")
	if len(d) != 1 {
		t.Fatalf("diagnose returned %d diagnostics, want 1", len(d))
	}
	r := d[0].Range
	if r.Start.Line != 1 || r.Start.Character != 2 || r.End.Character != 5 {
		t.Errorf("range = %+v, want 1:2-1:5", r)
	}
	if *d[0].Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", *d[0].Severity)
	}
	if !strings.Contains(d[0].Message, "cell 3") {
		t.Errorf("message = %q, want it to name cell 3", d[0].Message)
	}
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

func hoverText(t *testing.T, text string, char uint32) string {
	t.Helper()
	h := hover(text, protocol.Position{Line: 0, Character: char})
	if h == nil {
		return ""
	}
	return h.Contents.(protocol.MarkupContent).Value
}

func TestHover_Instruction(t *testing.T) {
	got := hoverText(t, "1002,4,3,4,33", 1)
	if !strings.Contains(got, "mul  [4], 3, [4]") {
		t.Errorf("hover = %q, want the mul instruction", got)
	}
	if !strings.Contains(got, "opcode 2 (mul)") || !strings.Contains(got, "param 2 immediate") {
		t.Errorf("hover = %q, want opcode and modes", got)
	}
}

func TestHover_Operand(t *testing.T) {
	got := hoverText(t, "1002,4,3,4,33", 7)
	if !strings.Contains(got, "cell 2: param 2, immediate mode") {
		t.Errorf("hover = %q", got)
	}
}

func TestHover_Data(t *testing.T) {
	got := hoverText(t, "1002,4,3,4,33", 12)
	if !strings.Contains(got, "**0004** `data 33`") {
		t.Errorf("hover = %q", got)
	}
}

func TestHover_Invalid(t *testing.T) {
	if got := hoverText(t, "1,x,3", 0); got != "" {
		t.Errorf("hover on malformed program = %q, want none", got)
	}
	if h := hover("99", protocol.Position{Line: 3}); h != nil {
		t.Error("hover outside the text should be nil")
	}
}
