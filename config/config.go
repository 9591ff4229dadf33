// Package config handles c0vm.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file FindAndLoad looks for.
const FileName = "c0vm.toml"

// Config represents a c0vm.toml file.
type Config struct {
	Run     Run     `toml:"run"`
	Log     Log     `toml:"log"`
	History History `toml:"history"`

	// Dir is the directory containing the c0vm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Run configures program execution.
type Run struct {
	Trace     bool     `toml:"trace"`
	HeapLimit int64    `toml:"heap-limit"`
	Natives   []string `toml:"natives"`
}

// Log configures commonlog output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// History configures the run history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no c0vm.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath()
	}
}

// DefaultHistoryPath returns ~/.c0vm/history.db, or a relative
// .c0vm/history.db when the home directory is unknown.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".c0vm", "history.db")
	}
	return filepath.Join(home, ".c0vm", "history.db")
}

// Load parses the c0vm.toml file in dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file at an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if c.Run.HeapLimit < 0 {
		return nil, fmt.Errorf("%s: heap-limit must not be negative, got %d", path, c.Run.HeapLimit)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Relative paths are relative to the config file
	if c.History.Path != "" && !filepath.IsAbs(c.History.Path) {
		c.History.Path = filepath.Join(c.Dir, c.History.Path)
	}
	if c.Log.File != "" && !filepath.IsAbs(c.Log.File) {
		c.Log.File = filepath.Join(c.Dir, c.Log.File)
	}
	c.applyDefaults()

	return &c, nil
}

// FindAndLoad walks up from startDir to find a c0vm.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
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
