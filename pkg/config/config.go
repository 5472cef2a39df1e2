// Package config provides configuration loading and management for rtstaple.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"rtstaple/internal/models"
	"rtstaple/pkg/alignment"
	"rtstaple/pkg/staple"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// STAPLE estimation parameters
	Staple struct {
		// MaxIterations bounds the EM loop
		MaxIterations int `yaml:"maxIterations"`

		// Epsilon is the convergence threshold on sensitivity/specificity changes
		Epsilon float64 `yaml:"epsilon"`

		// Prevalence fixes the prior; 0 estimates it from the raters
		Prevalence float64 `yaml:"prevalence"`

		// ReestimatePrevalence updates the prior from the posterior every iteration
		ReestimatePrevalence bool `yaml:"reestimatePrevalence"`

		// Workers is the number of goroutines used by the E-step
		Workers int `yaml:"workers"`
	} `yaml:"staple"`

	// Alignment parameters
	Alignment struct {
		// PositionTolerance merges slice positions closer than this, in mm
		PositionTolerance float64 `yaml:"positionTolerance"`

		// OffsetTolerance is the allowed distance from a whole-pixel offset
		OffsetTolerance float64 `yaml:"offsetTolerance"`

		// RemoveEmpty drops columns and rows that no rater marked
		RemoveEmpty bool `yaml:"removeEmpty"`
	} `yaml:"alignment"`

	// Output parameters
	Output struct {
		// Verbose enables per-iteration logging
		Verbose bool `yaml:"verbose"`

		// SaveSlices writes the consensus slices as PNG images
		SaveSlices bool `yaml:"saveSlices"`

		// SlicesDir is the directory, relative to the output directory, for slice images
		SlicesDir string `yaml:"slicesDir"`

		// PlotConvergence writes a plot of sensitivity/specificity per iteration
		PlotConvergence bool `yaml:"plotConvergence"`

		// SummaryFile is the YAML summary written to the output directory
		SummaryFile string `yaml:"summaryFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Staple.MaxIterations = staple.DefaultMaxIterations
	cfg.Staple.Epsilon = staple.DefaultEpsilon
	cfg.Staple.Prevalence = 0
	cfg.Staple.ReestimatePrevalence = false
	cfg.Staple.Workers = runtime.NumCPU()

	cfg.Alignment.PositionTolerance = models.PositionTolerance
	cfg.Alignment.OffsetTolerance = 0.01
	cfg.Alignment.RemoveEmpty = true

	cfg.Output.Verbose = false
	cfg.Output.SaveSlices = true
	cfg.Output.SlicesDir = "consensus_slices"
	cfg.Output.PlotConvergence = true
	cfg.Output.SummaryFile = "summary.yaml"

	return cfg
}

// StapleOptions converts the staple section into estimator options
func (c *Config) StapleOptions() staple.Options {
	return staple.Options{
		MaxIterations:        c.Staple.MaxIterations,
		Epsilon:              c.Staple.Epsilon,
		Prevalence:           c.Staple.Prevalence,
		ReestimatePrevalence: c.Staple.ReestimatePrevalence,
		Workers:              c.Staple.Workers,
	}
}

// AlignmentOptions converts the alignment section into aligner options
func (c *Config) AlignmentOptions() alignment.Options {
	return alignment.Options{
		PositionTolerance: c.Alignment.PositionTolerance,
		OffsetTolerance:   c.Alignment.OffsetTolerance,
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
