// Package manifest handles stackvm.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "stackvm.toml"

// Manifest represents a stackvm.toml configuration.
type Manifest struct {
	VM      VMConfig      `toml:"vm"`
	Server  ServerConfig  `toml:"server"`
	History HistoryConfig `toml:"history"`
	Log     LogConfig     `toml:"log"`

	// Dir is the directory containing the stackvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures machines created by the CLI and the server.
type VMConfig struct {
	Debug    bool  `toml:"debug"`
	MaxSteps int64 `toml:"max-steps"`
}

// ServerConfig configures the RPC server.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// Timeout bounds a single Run request, e.g. "5s".
	Timeout Duration `toml:"timeout"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no stackvm.toml exists.
func Default() *Manifest {
	return &Manifest{
		VM: VMConfig{
			MaxSteps: 1_000_000,
		},
		Server: ServerConfig{
			Addr:    ":4567",
			Timeout: defaultTimeout,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(".stackvm", "history.db"),
		},
		Log: LogConfig{
			Verbosity: 1,
		},
	}
}

// Load parses the stackvm.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file at an explicit path. Values missing
// from the file keep their defaults.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if m.VM.MaxSteps < 0 {
		return nil, fmt.Errorf("%s: vm.max-steps must not be negative", path)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a stackvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// HistoryPath returns the history database path, resolved against the
// manifest directory when relative.
func (m *Manifest) HistoryPath() string {
	p := m.History.Path
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// LogPath returns the log file path, or nil to log to stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.Log.File
	if !filepath.IsAbs(p) && m.Dir != "" {
		p = filepath.Join(m.Dir, p)
	}
	return &p
}
