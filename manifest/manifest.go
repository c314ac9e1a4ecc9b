// Package manifest handles intcode.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project file.
const FileName = "intcode.toml"

// Run modes.
const (
	ModeBuffer  = "buffer"
	ModeConsole = "console"
	ModeASCII   = "ascii"
)

// Manifest represents an intcode.toml file.
type Manifest struct {
	Program   Program   `toml:"program"`
	Run       Run       `toml:"run"`
	Amplifier Amplifier `toml:"amplifier"`
	Network   Network   `toml:"network"`
	Store     Store     `toml:"store"`
	Server    Server    `toml:"server"`

	// Dir is the directory containing the intcode.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program locates the program text.
type Program struct {
	Path string `toml:"path"`
}

// Run configures a single-engine run.
type Run struct {
	Mode  string  `toml:"mode"`
	Input []int64 `toml:"input"`
}

// Amplifier configures an amplifier chain or feedback ring.
type Amplifier struct {
	Phases   []int64 `toml:"phases"`
	Feedback bool    `toml:"feedback"`
	Search   bool    `toml:"search"`
}

// Network configures a packet network.
type Network struct {
	Nodes int   `toml:"nodes"`
	NAT   int64 `toml:"nat"`

	// Enabled is set when the file has a [network] table.
	Enabled bool `toml:"-"`
}

// Store configures snapshot persistence.
type Store struct {
	Path string `toml:"path"`
}

// Server configures the machine service.
type Server struct {
	Addr string `toml:"addr"`
}

// Load parses the intcode.toml file in dir.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses and validates a manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	_, m.Network.Enabled = raw["network"]

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if m.Run.Mode == "" {
		m.Run.Mode = ModeBuffer
	}
	if m.Network.Nodes == 0 {
		m.Network.Nodes = 50
	}
	if m.Network.NAT == 0 {
		m.Network.NAT = 255
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an intcode.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ProgramPath returns the program path resolved against the manifest
// directory, or "" when none is configured.
func (m *Manifest) ProgramPath() string {
	return m.resolve(m.Program.Path)
}

// StorePath returns the snapshot database path resolved against the
// manifest directory, or "" when none is configured.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Store.Path)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
