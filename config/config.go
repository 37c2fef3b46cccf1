// Package config reads btouch.toml, the optional per-project settings file
// that sits next to a contract.
package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/mono/maccore/generator"
	"github.com/mono/maccore/output"
)

// FileName is the settings file looked up next to the contract.
const FileName = "btouch.toml"

// Config is the decoded settings file.
type Config struct {
	Generator Generator `toml:"generator"`
	Output    Output    `toml:"output"`
}

// Generator holds the [generator] table.
type Generator struct {
	RuntimeNamespace string   `toml:"runtime-namespace"`
	CoreNamespace    string   `toml:"core-namespace"`
	External         bool     `toml:"external"`
	Desktop          bool     `toml:"desktop"`
	Usings           []string `toml:"usings"`
}

// Output holds the [output] table.
type Output struct {
	Dir      string `toml:"dir"`
	Jobs     int    `toml:"jobs"`
	Manifest string `toml:"manifest"`
}

// Find returns the settings file next to the contract at contractPath, or
// "" when there is none.
func Find(contractPath string) string {
	p := filepath.Join(filepath.Dir(contractPath), FileName)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// Load reads the settings file at path. Relative output directories are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	if cfg.Output.Dir != "" && !filepath.IsAbs(cfg.Output.Dir) {
		cfg.Output.Dir = filepath.Join(filepath.Dir(path), cfg.Output.Dir)
	}
	return cfg, nil
}

// Parse decodes a settings document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.Errorf("unknown config keys:\n%s", strict.String())
		}
		return nil, errors.Errorf("decoding config: %w", err)
	}
	if cfg.Output.Jobs < 0 {
		return nil, errors.Errorf("output.jobs must not be negative, got %d", cfg.Output.Jobs)
	}
	return &cfg, nil
}

// GeneratorOptions maps the [generator] table to generator options.
func (c *Config) GeneratorOptions() generator.Options {
	return generator.Options{
		RuntimeNamespace: c.Generator.RuntimeNamespace,
		CoreNamespace:    c.Generator.CoreNamespace,
		External:         c.Generator.External,
		Desktop:          c.Generator.Desktop,
		Usings:           c.Generator.Usings,
	}
}

// OutputOptions maps the [output] table to writer options.
func (c *Config) OutputOptions() output.Options {
	return output.Options{
		Dir:      c.Output.Dir,
		Jobs:     c.Output.Jobs,
		Manifest: c.Output.Manifest,
	}
}
