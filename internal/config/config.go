// Package config loads the tunables of the virtual-memory core: frame
// count, stack limits, and allocation retry policy. Values come from
// defaults, optionally overridden by a YAML file and VMCORE_* environment
// variables, the way tuannm99-novasql's internal/config.go loads its
// storage engine's settings.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"vmcore/internal/pagesize"
)

// Config holds every tunable of the core. Page and sector sizes are not
// here: they are fixed at build time in package pagesize.
type Config struct {
	Frames struct {
		Count int `mapstructure:"count"`
	} `mapstructure:"frames"`

	Swap struct {
		DevicePath string `mapstructure:"device_path"`
		Slots      int    `mapstructure:"slots"`
	} `mapstructure:"swap"`

	Stack struct {
		MaxBytes      int `mapstructure:"max_bytes"`
		GrowTolerance int `mapstructure:"grow_tolerance"`
	} `mapstructure:"stack"`

	Alloc struct {
		Retries       int `mapstructure:"retries"`
		BackoffMillis int `mapstructure:"backoff_millis"`
	} `mapstructure:"alloc"`
}

// Default returns the baseline configuration used when no file is
// supplied: 256 frames, a 1MiB stack ceiling, a 32-byte push tolerance
// (the widest push instruction on the reference architecture per
// spec.md §4.5), and the three-attempt/one-second backoff spec.md §4.2
// mandates for frame allocation.
func Default() *Config {
	cfg := &Config{}
	cfg.Frames.Count = 256
	cfg.Swap.DevicePath = ""
	cfg.Swap.Slots = 1024
	cfg.Stack.MaxBytes = 1 << 20
	cfg.Stack.GrowTolerance = 32
	cfg.Alloc.Retries = 3
	cfg.Alloc.BackoffMillis = 1000
	return cfg
}

// Load reads path (if non-empty) over the defaults, applies VMCORE_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("VMCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"frames.count", "swap.device_path", "swap.slots",
		"stack.max_bytes", "stack.grow_tolerance",
		"alloc.retries", "alloc.backoff_millis",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the core assumes hold,
// chiefly that sector size divides page size evenly (spec.md §6).
func (c *Config) Validate() error {
	if pagesize.Size%pagesize.SectorSize != 0 {
		return fmt.Errorf("config: page size %d is not a multiple of sector size %d", pagesize.Size, pagesize.SectorSize)
	}
	if c.Frames.Count <= 0 {
		return fmt.Errorf("config: frames.count must be positive, got %d", c.Frames.Count)
	}
	if c.Swap.Slots <= 0 {
		return fmt.Errorf("config: swap.slots must be positive, got %d", c.Swap.Slots)
	}
	if c.Stack.MaxBytes <= 0 {
		return fmt.Errorf("config: stack.max_bytes must be positive, got %d", c.Stack.MaxBytes)
	}
	if c.Alloc.Retries <= 0 {
		return fmt.Errorf("config: alloc.retries must be positive, got %d", c.Alloc.Retries)
	}
	return nil
}
