// Package manifest handles bufgrind.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Default workload sizes, matching the classic bufio stress runs:
// 16 writers doing 1024 gets each, and an 8 GiB device's worth of
// 4 KiB blocks for the writeback scenarios.
const (
	DefaultThreads = 16
	DefaultGets    = 1024
	DefaultBlocks  = 2 * 1024 * 1024
)

// DefaultDB is the results database filename used when the manifest
// does not name one.
const DefaultDB = "bufgrind.db"

// Config represents a bufgrind.toml configuration.
type Config struct {
	Device  DeviceConfig  `toml:"device"`
	Results ResultsConfig `toml:"results"`
	Run     RunConfig     `toml:"run"`

	// Dir is the directory containing the bufgrind.toml file (set at load time).
	Dir string `toml:"-"`
}

// DeviceConfig names the bufio test device to drive.
type DeviceConfig struct {
	Path string `toml:"path"`
}

// ResultsConfig configures run result storage.
type ResultsConfig struct {
	DB string `toml:"db"`
}

// RunConfig sets the scenario workload knobs.
type RunConfig struct {
	Threads int `toml:"threads"`
	Gets    int `toml:"gets"`
	Blocks  int `toml:"blocks"`
}

// Load parses a bufgrind.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "bufgrind.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	applyDefaults(&c)
	return &c, nil
}

// FindAndLoad walks up from startDir to find a bufgrind.toml file,
// then loads and returns the config. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "bufgrind.toml")
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

// Default returns a config with no device and default workload sizes,
// for running without a bufgrind.toml.
func Default() *Config {
	var c Config
	applyDefaults(&c)
	return &c
}

func applyDefaults(c *Config) {
	if c.Run.Threads == 0 {
		c.Run.Threads = DefaultThreads
	}
	if c.Run.Gets == 0 {
		c.Run.Gets = DefaultGets
	}
	if c.Run.Blocks == 0 {
		c.Run.Blocks = DefaultBlocks
	}
	if c.Results.DB == "" {
		c.Results.DB = DefaultDB
	}
}

// DBPath returns the results database path, resolved against the
// manifest directory when relative.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.Results.DB) || c.Dir == "" {
		return c.Results.DB
	}
	return filepath.Join(c.Dir, c.Results.DB)
}
