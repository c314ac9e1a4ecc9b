package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[program]
path = "day09.txt"

[run]
mode = "console"
input = [1, -2]

[amplifier]
phases = [9, 8, 7, 6, 5]
feedback = true

[network]
nodes = 10
nat = 300

[store]
path = "snapshots.db"

[server]
addr = ":9000"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Program.Path != "day09.txt" {
		t.Errorf("program path = %q, want day09.txt", m.Program.Path)
	}
	if m.Run.Mode != ModeConsole {
		t.Errorf("run mode = %q, want console", m.Run.Mode)
	}
	if !reflect.DeepEqual(m.Run.Input, []int64{1, -2}) {
		t.Errorf("run input = %v, want [1 -2]", m.Run.Input)
	}
	if !reflect.DeepEqual(m.Amplifier.Phases, []int64{9, 8, 7, 6, 5}) || !m.Amplifier.Feedback {
		t.Errorf("amplifier = %+v", m.Amplifier)
	}
	if m.Network.Nodes != 10 || m.Network.NAT != 300 {
		t.Errorf("network = %+v", m.Network)
	}
	if m.Server.Addr != ":9000" {
		t.Errorf("server addr = %q, want :9000", m.Server.Addr)
	}

	absDir, _ := filepath.Abs(dir)
	if m.Dir != absDir {
		t.Errorf("dir = %q, want %q", m.Dir, absDir)
	}
	if m.ProgramPath() != filepath.Join(absDir, "day09.txt") {
		t.Errorf("ProgramPath = %q", m.ProgramPath())
	}
	if m.StorePath() != filepath.Join(absDir, "snapshots.db") {
		t.Errorf("StorePath = %q", m.StorePath())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[program]
path = "/abs/prog.txt"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Run.Mode != ModeBuffer {
		t.Errorf("default mode = %q, want buffer", m.Run.Mode)
	}
	if m.Network.Nodes != 50 || m.Network.NAT != 255 {
		t.Errorf("default network = %+v, want 50 nodes, NAT 255", m.Network)
	}
	if m.Network.Enabled {
		t.Error("network enabled without a [network] table")
	}
	if m.ProgramPath() != "/abs/prog.txt" {
		t.Errorf("absolute path changed: %q", m.ProgramPath())
	}
	if m.StorePath() != "" {
		t.Errorf("StorePath = %q, want empty", m.StorePath())
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[program\npath = 1"},
		{"unknown mode", "[run]\nmode = \"batch\""},
		{"unknown table", "[image]\noutput = \"x\""},
		{"unknown key", "[program]\nname = \"x\""},
		{"empty phases", "[amplifier]\nphases = []"},
		{"negative nodes", "[network]\nnodes = -1"},
		{"wrong type", "[run]\ninput = \"1,2\""},
	}

	for _, tc := range tests {
		dir := t.TempDir()
		writeManifest(t, dir, tc.content)
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[program]\npath = \"prog.txt\"\n")

	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected a manifest")
	}
	if !strings.HasSuffix(m.ProgramPath(), filepath.Join(filepath.Base(root), "prog.txt")) {
		t.Errorf("ProgramPath = %q", m.ProgramPath())
	}
}

func TestFindAndLoadNone(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected no manifest, got %+v", m)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
