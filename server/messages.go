package server

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/intcode/vm"
)

// Messages are google.protobuf.Struct values. Integers travel as decimal
// strings, and integer lists in the comma-separated program format, since
// Struct numbers are doubles and lose precision past 2^53.

func stringField(msg *structpb.Struct, name string) (string, bool, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return "", false, nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", false, fmt.Errorf("field %q must be a string", name)
	}
	return s.StringValue, true, nil
}

func requiredString(msg *structpb.Struct, name string) (string, error) {
	s, ok, err := stringField(msg, name)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return s, nil
}

func valuesField(msg *structpb.Struct, name string) ([]int64, error) {
	s, _, err := stringField(msg, name)
	if err != nil {
		return nil, err
	}
	values, err := vm.ParseProgram(s)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	return values, nil
}

func programField(msg *structpb.Struct) ([]int64, error) {
	program, err := valuesField(msg, "program")
	if err != nil {
		return nil, err
	}
	if len(program) == 0 {
		return nil, fmt.Errorf("program is required")
	}
	return program, nil
}

func intField(msg *structpb.Struct, name string) (int64, error) {
	s, ok, err := stringField(msg, name)
	if err != nil || !ok || s == "" {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return v, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}
