package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tictocbench/tictoc/bench"
)

// Config is the top-level configuration file structure.
type Config struct {
	// Enabled gates all recording. Defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`

	// OutputDir is the directory session subdirectories are created
	// under. Empty means the default session directory.
	OutputDir string `yaml:"outputDir,omitempty"`

	Memory MemoryConfig `yaml:"memory,omitempty"`
	Save   SaveConfig   `yaml:"save,omitempty"`
}

// MemoryConfig tunes memory tracking.
type MemoryConfig struct {
	// Enabled turns on memory snapshots at iteration boundaries.
	Enabled bool `yaml:"enabled,omitempty"`

	// PerStep additionally snapshots inside named steps.
	PerStep bool `yaml:"perStep,omitempty"`

	// TopN is how many of the largest live allocation sites each
	// snapshot records. Zero disables the heap walk.
	TopN int `yaml:"topN,omitempty"`

	// PeakPollInterval enables the background peak poller when set,
	// e.g. "100ms".
	PeakPollInterval string `yaml:"peakPollInterval,omitempty"`

	// GCInterval is the minimum spacing between forced collections
	// before heap inspection, e.g. "100ms".
	GCInterval string `yaml:"gcInterval,omitempty"`
}

// SaveConfig tunes the autosave policy.
type SaveConfig struct {
	// OnStep saves after every recorded step.
	OnStep bool `yaml:"onStep,omitempty"`

	// EveryGStop saves every Nth closed iteration. Zero disables.
	EveryGStop int `yaml:"everyGStop,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks field values and duration formats.
func (c *Config) Validate() error {
	if c.Memory.TopN < 0 {
		return fmt.Errorf("memory.topN cannot be negative")
	}
	if c.Save.EveryGStop < 0 {
		return fmt.Errorf("save.everyGStop cannot be negative")
	}
	if _, err := parseInterval(c.Memory.PeakPollInterval); err != nil {
		return fmt.Errorf("invalid memory.peakPollInterval %q: %w", c.Memory.PeakPollInterval, err)
	}
	if _, err := parseInterval(c.Memory.GCInterval); err != nil {
		return fmt.Errorf("invalid memory.gcInterval %q: %w", c.Memory.GCInterval, err)
	}
	return nil
}

// Registry builds a registry applying this configuration to every
// accumulator it creates.
func (c *Config) Registry(log *zap.Logger) (*bench.Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var accOpts []bench.Option
	if c.Memory.Enabled {
		accOpts = append(accOpts, bench.WithMemoryTracking(c.Memory.PerStep))
	}
	if c.Memory.TopN > 0 {
		accOpts = append(accOpts, bench.WithTopN(c.Memory.TopN))
	}
	if d, _ := parseInterval(c.Memory.PeakPollInterval); d > 0 {
		accOpts = append(accOpts, bench.WithPeakTracking(d))
	}
	if d, _ := parseInterval(c.Memory.GCInterval); d > 0 {
		accOpts = append(accOpts, bench.WithGCInterval(d))
	}
	if c.Save.OnStep {
		accOpts = append(accOpts, bench.WithSaveOnStep(true))
	}
	if c.Save.EveryGStop > 0 {
		accOpts = append(accOpts, bench.WithSaveOnGStop(c.Save.EveryGStop))
	}

	regOpts := []bench.RegistryOption{bench.WithAccumulatorOptions(accOpts...)}
	if log != nil {
		regOpts = append(regOpts, bench.WithRegistryLogger(log))
	}
	reg := bench.NewRegistry(regOpts...)
	if c.OutputDir != "" {
		reg.SetDefaultPath(c.OutputDir)
	}
	if c.Enabled != nil && !*c.Enabled {
		reg.Disable()
	}
	return reg, nil
}

// parseInterval parses duration strings like "100ms", "2s" or "1 second".
// Empty input parses to zero.
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("duration cannot be negative")
		}
		return d, nil
	}

	// Plurals first, so "seconds" does not degrade to "ss".
	s = strings.ReplaceAll(strings.ToLower(s), " ", "")
	replacements := []struct{ word, abbrev string }{
		{"milliseconds", "ms"},
		{"millisecond", "ms"},
		{"seconds", "s"},
		{"second", "s"},
		{"minutes", "m"},
		{"minute", "m"},
	}
	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.word, r.abbrev)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative")
	}
	return d, nil
}
