// Package config loads ms's optional per-project ms.yaml file (spec §9's
// ambient configuration concern), grounded on the teacher's
// internal/ext/config.go use of gopkg.in/yaml.v3 for funxy.yaml.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxFrames is the spec §5 call-depth limit absent any override.
const DefaultMaxFrames = 64

// Config is the top-level ms.yaml schema. Every field has a baseline
// default and the file itself is optional — absence is not an error.
type Config struct {
	// ExtensionPaths are additional directories searched for native
	// extension shared objects, beyond the executable's own directory
	// (spec §4.5).
	ExtensionPaths []string `yaml:"extension_paths,omitempty"`

	// Trace enables opcode-dispatch trace logging, the same effect as the
	// CLI's -trace flag or the MS_DEBUG environment variable.
	Trace bool `yaml:"trace,omitempty"`

	// MaxFrames overrides the default 64-frame call-depth limit (spec §5).
	MaxFrames int `yaml:"max_frames,omitempty"`
}

// Default returns the baseline configuration used when no ms.yaml exists.
func Default() *Config {
	return &Config{MaxFrames: DefaultMaxFrames}
}

// Load reads ms.yaml from path. A missing file is not an error: Load
// returns Default() unchanged. A present-but-malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}
	return cfg, nil
}
