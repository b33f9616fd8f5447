// Package pkg loads dgeval's project-level configuration file.
package pkg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const ConfigFileName = "dgeval.toml"

// Config holds the project defaults a dgeval.toml can override: which of
// the four optimisation bits run when -pN isn't given on the command
// line. The [runtime] and [output] tables are parsed into Runtime and
// Output, but nothing outside this package reads those two fields.
type Config struct {
	Optimise OptimiseConfig `toml:"optimise"`
	Runtime  RuntimeConfig  `toml:"runtime"`
	Output   OutputConfig   `toml:"output"`
}

type OptimiseConfig struct {
	DeadStatement    bool `toml:"dead_statement"`
	DeadCommaPart    bool `toml:"dead_comma_part"`
	PeepholeOffload  bool `toml:"peephole_offload"`
	PeepholeConstsink bool `toml:"peephole_constsink"`
}

type RuntimeConfig struct {
	// Seed is parsed from [runtime] seed and not used: the random()
	// builtin always draws from math/rand/v2's unseeded source.
	Seed int64 `toml:"seed"`
}

type OutputConfig struct {
	// Dir is parsed from [output] dir and not used: <module>.json and
	// <module>-IC.txt are always written alongside the input module.
	Dir string `toml:"dir"`
}

// Default matches the "no flag = all four optimisation bits on" CLI default.
func Default() *Config {
	return &Config{
		Optimise: OptimiseConfig{
			DeadStatement:     true,
			DeadCommaPart:     true,
			PeepholeOffload:   true,
			PeepholeConstsink: true,
		},
	}
}

// Load reads path and overlays it onto Default(); a missing file is not
// an error since dgeval has no required project file.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Find walks up from startPath looking for dgeval.toml, the nearest one
// winning when a module lives below the project root.
func Find(startPath string) string {
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}
	dir := startPath
	if !info.IsDir() {
		dir = filepath.Dir(startPath)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
