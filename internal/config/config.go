// Package config provides unified configuration loading for projsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/predman/projsim/internal/constants"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory by Load.
const FileName = "projsim.yaml"

// ProjsimConfig contains all projsim configuration settings.
type ProjsimConfig struct {
	// Dataset controls where and how many instances are generated.
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Generator holds the hyperparameter ranges sampled per instance.
	Generator GeneratorConfig `json:"generator" yaml:"generator"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// DatasetConfig configures the train/test dataset layout.
type DatasetConfig struct {
	TrainDir  string `json:"train_dir" yaml:"train_dir"`
	TestDir   string `json:"test_dir" yaml:"test_dir"`
	TrainSize int    `json:"train_size" yaml:"train_size"`
	TestSize  int    `json:"test_size" yaml:"test_size"`

	// Seed is the root seed; every instance derives its own stream from it.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Workers bounds the number of instances simulated concurrently.
	Workers int `json:"workers" yaml:"workers"`

	// Arrow additionally writes an Arrow IPC copy of every feature table.
	Arrow bool `json:"arrow" yaml:"arrow"`

	// CatalogPath is the SQLite run catalog. Empty disables the catalog.
	// Supports ${VAR} syntax.
	CatalogPath string `json:"catalog_path,omitempty" yaml:"catalog_path,omitempty"`
}

// LoggingConfig configures projsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to <dataset dir>/events.jsonl.
	// "trace" additionally logs the sampled hyperparameters of every instance.
	Level string `json:"level" yaml:"level"`
}

// IntRange is an inclusive integer range. Values are drawn uniformly from
// [Min, Max] as reals and rounded half to even.
type IntRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// FloatRange is a uniform real range. Decimals > 0 rounds the draw.
type FloatRange struct {
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	Decimals int     `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

// GeneratorConfig describes the distribution of per-instance hyperparameters.
type GeneratorConfig struct {
	TeamSize              IntRange   `json:"team_size" yaml:"team_size"`
	InitialTasks          IntRange   `json:"initial_tasks" yaml:"initial_tasks"`
	ExternalRiskChange    FloatRange `json:"external_risk_change" yaml:"external_risk_change"`
	TeamChangeProbability FloatRange `json:"team_change_probability" yaml:"team_change_probability"`
	TaskAddProbability    FloatRange `json:"task_add_probability" yaml:"task_add_probability"`
	ExternalRisk          FloatRange `json:"external_risk" yaml:"external_risk"`

	TruncationProbability float64 `json:"truncation_probability" yaml:"truncation_probability"`
	SPMin                 int     `json:"sp_min" yaml:"sp_min"`
	SPMax                 int     `json:"sp_max" yaml:"sp_max"`
	DependencyProbability float64 `json:"dependency_probability" yaml:"dependency_probability"`
	MaxDependencies       int     `json:"max_dependencies" yaml:"max_dependencies"`
	MaxTeamChange         int     `json:"max_team_change" yaml:"max_team_change"`

	// MaxDays bounds every instance; 0 uses the simulator default.
	MaxDays int `json:"max_days,omitempty" yaml:"max_days,omitempty"`
}

// Default returns a ProjsimConfig with the stock generator distribution.
func Default() *ProjsimConfig {
	return &ProjsimConfig{
		Dataset: DatasetConfig{
			TrainDir:  filepath.Join("dataset", constants.SplitTrain.String()),
			TestDir:   filepath.Join("dataset", constants.SplitTest.String()),
			TrainSize: 1000,
			TestSize:  200,
			Seed:      1,
			Workers:   4,
		},
		Generator: DefaultGenerator(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultGenerator returns the stock hyperparameter distribution.
func DefaultGenerator() GeneratorConfig {
	return GeneratorConfig{
		TeamSize:              IntRange{Min: 5, Max: 15},
		InitialTasks:          IntRange{Min: 15, Max: 150},
		ExternalRiskChange:    FloatRange{Min: 0.05, Max: 0.1, Decimals: 2},
		TeamChangeProbability: FloatRange{Min: 0.00001, Max: 0.001},
		TaskAddProbability:    FloatRange{Min: 0.0001, Max: 0.001},
		ExternalRisk:          FloatRange{Min: 0.01, Max: 0.1, Decimals: 4},
		TruncationProbability: 0.95,
		SPMin:                 1,
		SPMax:                 10,
		DependencyProbability: 0.3,
		MaxDependencies:       5,
		MaxTeamChange:         4,
	}
}

// Dir returns the configured directory for split.
func (d DatasetConfig) Dir(split constants.Split) string {
	if split == constants.SplitTest {
		return d.TestDir
	}
	return d.TrainDir
}

// Size returns the configured instance count for split.
func (d DatasetConfig) Size(split constants.Split) int {
	if split == constants.SplitTest {
		return d.TestSize
	}
	return d.TrainSize
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ./projsim.yaml -> environment variables
func Load() (*ProjsimConfig, error) {
	return LoadDir(".")
}

// LoadDir is Load with the config file looked up in dir instead of the
// working directory.
func LoadDir(dir string) (*ProjsimConfig, error) {
	config := Default()

	path := filepath.Join(dir, FileName)
	if _, statErr := os.Stat(path); statErr == nil {
		fileConfig, loadErr := LoadFromFile(path)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadWithFile loads an explicit config file and applies environment
// overrides on top of it.
func LoadWithFile(path string) (*ProjsimConfig, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Keys missing from the file keep their default values.
func LoadFromFile(path string) (*ProjsimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Dataset.TrainDir = expandEnvVars(config.Dataset.TrainDir)
	config.Dataset.TestDir = expandEnvVars(config.Dataset.TestDir)
	config.Dataset.CatalogPath = expandEnvVars(config.Dataset.CatalogPath)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *ProjsimConfig) Validate() error {
	if c.Dataset.TrainSize < 0 || c.Dataset.TestSize < 0 {
		return fmt.Errorf("dataset sizes must be non-negative, got train=%d test=%d", c.Dataset.TrainSize, c.Dataset.TestSize)
	}
	if c.Dataset.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Dataset.Workers)
	}
	if c.Dataset.TrainDir == "" || c.Dataset.TestDir == "" {
		return fmt.Errorf("train_dir and test_dir must be set")
	}

	if err := c.Generator.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Validate checks every range and fixed value of the generator.
func (g GeneratorConfig) Validate() error {
	ints := []struct {
		name string
		r    IntRange
	}{
		{"team_size", g.TeamSize},
		{"initial_tasks", g.InitialTasks},
	}
	for _, ir := range ints {
		if ir.r.Min < 0 || ir.r.Min > ir.r.Max {
			return fmt.Errorf("%s range [%d, %d] must satisfy 0 <= min <= max", ir.name, ir.r.Min, ir.r.Max)
		}
	}
	if g.TeamSize.Min < 1 && g.InitialTasks.Max > 0 {
		return fmt.Errorf("team_size min must be at least 1 when instances have tasks, got %d", g.TeamSize.Min)
	}

	floats := []struct {
		name        string
		r           FloatRange
		probability bool
	}{
		{"external_risk_change", g.ExternalRiskChange, false},
		{"team_change_probability", g.TeamChangeProbability, true},
		{"task_add_probability", g.TaskAddProbability, true},
		{"external_risk", g.ExternalRisk, true},
	}
	for _, fr := range floats {
		if fr.r.Min < 0 || fr.r.Min > fr.r.Max {
			return fmt.Errorf("%s range [%g, %g] must satisfy 0 <= min <= max", fr.name, fr.r.Min, fr.r.Max)
		}
		if fr.probability && fr.r.Max > 1 {
			return fmt.Errorf("%s range max must be at most 1, got %g", fr.name, fr.r.Max)
		}
		if fr.r.Decimals < 0 {
			return fmt.Errorf("%s decimals must be non-negative, got %d", fr.name, fr.r.Decimals)
		}
	}

	if g.TruncationProbability < 0 || g.TruncationProbability > 1 {
		return fmt.Errorf("truncation_probability must be between 0 and 1, got %f", g.TruncationProbability)
	}
	if g.DependencyProbability < 0 || g.DependencyProbability > 1 {
		return fmt.Errorf("dependency_probability must be between 0 and 1, got %f", g.DependencyProbability)
	}
	if g.SPMin < 1 || g.SPMin > g.SPMax {
		return fmt.Errorf("story point range [%d, %d] must satisfy 1 <= min <= max", g.SPMin, g.SPMax)
	}
	if g.DependencyProbability > 0 && g.MaxDependencies < 1 {
		return fmt.Errorf("max_dependencies must be at least 1 when dependencies are enabled, got %d", g.MaxDependencies)
	}
	if g.TeamChangeProbability.Max > 0 && g.MaxTeamChange < 1 {
		return fmt.Errorf("max_team_change must be at least 1 when team changes are enabled, got %d", g.MaxTeamChange)
	}
	if g.MaxDays < 0 {
		return fmt.Errorf("max_days must be non-negative, got %d", g.MaxDays)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *ProjsimConfig) {
	if v := os.Getenv("PROJSIM_TRAIN_DIR"); v != "" {
		config.Dataset.TrainDir = v
	}

	if v := os.Getenv("PROJSIM_TEST_DIR"); v != "" {
		config.Dataset.TestDir = v
	}

	if v := os.Getenv("PROJSIM_TRAIN_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Dataset.TrainSize = n
		}
	}

	if v := os.Getenv("PROJSIM_TEST_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Dataset.TestSize = n
		}
	}

	if v := os.Getenv("PROJSIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Dataset.Seed = n
		}
	}

	if v := os.Getenv("PROJSIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Dataset.Workers = n
		}
	}

	if v := os.Getenv("PROJSIM_CATALOG"); v != "" {
		config.Dataset.CatalogPath = v
	}

	if v := os.Getenv("PROJSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
