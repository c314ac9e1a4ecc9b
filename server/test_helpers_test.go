package server

import (
	"context"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/intcode/store"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

func bg() context.Context {
	return context.Background()
}

func testConfig() Config {
	return Config{MaxSteps: 100_000, MaxMemory: 1 << 16}
}

// connectReq builds a request message from string fields.
func connectReq(t *testing.T, fields map[string]any) *connect.Request[structpb.Struct] {
	t.Helper()
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return connect.NewRequest(msg)
}

// newTestService creates a MachineService with its own sessions and,
// when withStore is set, a snapshot store in a temp dir.
func newTestService(t *testing.T, withStore bool) (*MachineService, *SessionStore) {
	t.Helper()
	sessions := NewSessionStore()
	t.Cleanup(sessions.CloseAll)

	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open(filepath.Join(t.TempDir(), "snapshots.db"))
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		t.Cleanup(func() { st.Close() })
	}
	return NewMachineService(sessions, st, testConfig()), sessions
}

func field(t *testing.T, resp *connect.Response[structpb.Struct], name string) string {
	t.Helper()
	v, ok := resp.Msg.GetFields()[name]
	if !ok {
		t.Fatalf("response has no %q field: %v", name, resp.Msg)
	}
	return v.GetStringValue()
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Errorf("error code = %v, want %v (%v)", got, code, err)
	}
}
