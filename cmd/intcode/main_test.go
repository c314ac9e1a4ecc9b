package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/intcode/manifest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, o options, args []string, stdin string) (string, error) {
	t.Helper()
	if o.config == "" {
		// Keep the tests independent of any intcode.toml above the temp dir.
		o.config = writeFile(t, t.TempDir(), "intcode.toml", "")
	}
	if o.transport == "" {
		o.transport = "connect"
	}
	if o.nat == 0 {
		o.nat = 255
	}
	var out bytes.Buffer
	err := run(context.Background(), o, args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestRun_Buffered(t *testing.T) {
	prog := writeFile(t, t.TempDir(), "echo.txt", "3,0,4,0,99\n")

	out, err := runCLI(t, options{input: "42"}, []string{prog}, "")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if out != "42\naddress 0: 42\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_Console(t *testing.T) {
	prog := writeFile(t, t.TempDir(), "echo.txt", "3,0,4,0,99\n")

	out, err := runCLI(t, options{console: true}, []string{prog}, "7\n")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if out != "Input: 7\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_Disasm(t *testing.T) {
	prog := writeFile(t, t.TempDir(), "p.txt", "1002,4,3,4,33")

	out, err := runCLI(t, options{disasm: true}, []string{prog}, "")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out, "mul  [4], 3, [4]") || !strings.Contains(out, "data 33") {
		t.Errorf("listing = %q", out)
	}
}

func TestRun_Amplify(t *testing.T) {
	prog := writeFile(t, t.TempDir(), "amp.txt",
		"3,26,1001,26,-4,26,3,27,1002,27,2,27,1,27,26,27,4,27,1001,28,-1,28,1005,28,6,99,0,0,5")

	out, err := runCLI(t, options{amplify: "9,8,7,6,5", feedback: true}, []string{prog}, "")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if strings.TrimSpace(out) != "139629729" {
		t.Errorf("output = %q, want 139629729", out)
	}
}

func TestRun_ManifestProgram(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sum.txt", "3,11,3,12,1,11,12,13,4,13,99,0,0,0")
	cfg := writeFile(t, dir, "intcode.toml", "[program]\npath = \"sum.txt\"\n\n[run]\ninput = [20, 22]\n")

	out, err := runCLI(t, options{config: cfg}, nil, "")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.HasPrefix(out, "42\n") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_SaveAndResume(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "sum.txt", "3,11,3,12,1,11,12,13,4,13,99,0,0,0")
	db := filepath.Join(dir, "snaps.db")

	out, err := runCLI(t, options{input: "40", db: db, save: "half"}, []string{prog}, "")
	if err != nil {
		t.Fatalf("save run returned error: %v", err)
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 4 || fields[0] != "saved" {
		t.Fatalf("output = %q", out)
	}
	id := fields[3]

	out, err = runCLI(t, options{input: "2", db: db, resume: id}, nil, "")
	if err != nil {
		t.Fatalf("resume run returned error: %v", err)
	}
	if !strings.HasPrefix(out, "42\n") {
		t.Errorf("resumed output = %q", out)
	}

	out, err = runCLI(t, options{db: db, list: true}, nil, "")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if !strings.HasPrefix(out, id) || !strings.Contains(out, "half") {
		t.Errorf("list output = %q", out)
	}

	if _, err := runCLI(t, options{db: db, forget: id}, nil, ""); err != nil {
		t.Fatalf("forget returned error: %v", err)
	}
	if _, err := runCLI(t, options{db: db, resume: id}, nil, ""); err == nil {
		t.Error("expected an error resuming a forgotten snapshot")
	}
}

func TestRun_Errors(t *testing.T) {
	if _, err := runCLI(t, options{}, nil, ""); err == nil {
		t.Error("expected an error without a program")
	}

	prog := writeFile(t, t.TempDir(), "p.txt", "99")
	if _, err := runCLI(t, options{save: "x"}, []string{prog}, ""); err == nil {
		t.Error("expected an error for -save without a database")
	}
	if _, err := runCLI(t, options{input: "a"}, []string{prog}, ""); err == nil {
		t.Error("expected an error for malformed -input")
	}
	if _, err := runCLI(t, options{remote: "localhost:1", transport: "smoke"}, []string{prog}, ""); err == nil {
		t.Error("expected an error for an unknown transport")
	}
}

func TestApplyManifest(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		o        options
		wantNet  int
		wantNAT  int64
		wantPort int
	}{
		{"no network table", "[program]\npath = \"p.txt\"\n", options{nat: 255}, 0, 255, 0},
		{"network defaults", "[network]\n", options{nat: 255}, 50, 255, 0},
		{"network values", "[network]\nnodes = 4\nnat = 9\n", options{nat: 255}, 4, 9, 0},
		{"flags win", "[network]\nnodes = 4\nnat = 9\n", options{network: 2, nat: 7}, 2, 7, 0},
		{"ipv6 addr", "[server]\naddr = \"[::1]:8421\"\n", options{nat: 255}, 0, 255, 8421},
		{"host addr", "[server]\naddr = \"localhost:9000\"\n", options{nat: 255}, 0, 255, 9000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := manifest.LoadFile(writeFile(t, t.TempDir(), "intcode.toml", tc.content))
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			o := tc.o
			if err := applyManifest(&o, m); err != nil {
				t.Fatalf("applyManifest: %v", err)
			}
			if o.network != tc.wantNet || o.nat != tc.wantNAT || o.port != tc.wantPort {
				t.Errorf("got network %d, nat %d, port %d; want %d, %d, %d",
					o.network, o.nat, o.port, tc.wantNet, tc.wantNAT, tc.wantPort)
			}
		})
	}
}

func TestApplyManifest_BadServerAddr(t *testing.T) {
	for _, addr := range []string{"8420", "localhost:http", "localhost:70000"} {
		m, err := manifest.LoadFile(writeFile(t, t.TempDir(), "intcode.toml", "[server]\naddr = \""+addr+"\"\n"))
		if err != nil {
			t.Fatalf("LoadFile(%q): %v", addr, err)
		}
		o := options{nat: 255}
		if err := applyManifest(&o, m); err == nil {
			t.Errorf("addr %q: expected an error", addr)
		}
	}
}
