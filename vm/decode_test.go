package vm

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		word  int64
		op    Opcode
		modes [3]Mode
	}{
		{1, OpAdd, [3]Mode{0, 0, 0}},
		{1002, OpMul, [3]Mode{0, 1, 0}},
		{1101, OpAdd, [3]Mode{1, 1, 0}},
		{10199, OpHalt, [3]Mode{1, 0, 1}},
		{21101, OpAdd, [3]Mode{1, 1, 2}},
		{204, OpOutput, [3]Mode{2, 0, 0}},
		{99, OpHalt, [3]Mode{0, 0, 0}},
	}

	for _, tc := range tests {
		in := Decode(tc.word)
		if in.Op != tc.op {
			t.Errorf("Decode(%d).Op = %v, want %v", tc.word, in.Op, tc.op)
		}
		if in.Modes != tc.modes {
			t.Errorf("Decode(%d).Modes = %v, want %v", tc.word, in.Modes, tc.modes)
		}
	}
}

func TestDecode_UnknownValuesDoNotPanic(t *testing.T) {
	in := Decode(98765)
	if in.Op != 65 {
		t.Errorf("Op = %d, want 65", in.Op)
	}
	if in.Modes[0] != 7 || in.Modes[1] != 8 || in.Modes[2] != 9 {
		t.Errorf("Modes = %v, want [7 8 9]", in.Modes)
	}
	if in.Modes[0].Valid() {
		t.Error("mode 7 should not be valid")
	}
}

func TestOpcodeString(t *testing.T) {
	if OpAdd.String() != "add" {
		t.Errorf("OpAdd.String() = %q, want %q", OpAdd.String(), "add")
	}
	if Opcode(42).String() != "op(42)" {
		t.Errorf("Opcode(42).String() = %q, want %q", Opcode(42).String(), "op(42)")
	}
	if _, ok := LookupOpcode(42); ok {
		t.Error("LookupOpcode(42) should report undefined")
	}
	if info, ok := LookupOpcode(OpJumpTrue); !ok || info.Params != 2 {
		t.Errorf("LookupOpcode(OpJumpTrue) = %+v, %v", info, ok)
	}
}
