// Package config loads compiler settings from forthc.toml.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "forthc.toml"

// DefaultBackend is used when neither the file nor a flag names one.
const DefaultBackend = "c-ir"

// Config is the contents of forthc.toml.
type Config struct {
	Backend   string    `toml:"backend"`
	Optimizer Optimizer `toml:"optimizer"`
	Emit      Emit      `toml:"emit"`
}

// Optimizer controls the IR optimizer pipeline.
type Optimizer struct {
	Enabled       bool `toml:"enabled"`
	MaxIterations int  `toml:"max_iterations"`
	Inline        bool `toml:"inline"`
}

// Emit controls what the compiler writes besides the program text.
type Emit struct {
	Indent string `toml:"indent"`
	Debug  bool   `toml:"debug"`
}

// Default returns the settings used without a configuration file.
func Default() *Config {
	return &Config{
		Backend: DefaultBackend,
		Optimizer: Optimizer{
			Enabled:       true,
			MaxIterations: 10,
		},
		Emit: Emit{Indent: "    "},
	}
}

// Load reads path on top of the defaults. A missing file yields the
// defaults; keys the file leaves out keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses TOML into cfg, overwriting only the keys present.
func Decode(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.Validate()
}

// Validate rejects settings no component can honor.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend must not be empty")
	}
	if c.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("optimizer.max_iterations must be positive, got %d", c.Optimizer.MaxIterations)
	}
	return nil
}

// Encode renders cfg as TOML, for `forthc -print-config`.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
