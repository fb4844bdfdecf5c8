package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// LoadConfig controls how graph files are read.
type LoadConfig struct {
	Transpose      bool `mapstructure:"transpose"`
	DiscardWeights bool `mapstructure:"discard_weights"`
	IndexBase      int  `mapstructure:"index_base"`
	Sort           bool `mapstructure:"sort"`
}

// DeviceConfig holds the accelerator launch geometry and memory limit.
type DeviceConfig struct {
	Groups    int   `mapstructure:"groups"`
	GroupSize int   `mapstructure:"group_size"`
	MemoryMB  int64 `mapstructure:"memory_mb"` // 0 means unlimited
}

// ReferenceConfig bounds the host reference solver.
type ReferenceConfig struct {
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

// Config holds all runtime configuration for a benchmark session.
// Values are populated from .graphbench.yaml, GRAPHBENCH_* env vars, and CLI flags.
type Config struct {
	Graph         string          `mapstructure:"graph"`
	Load          LoadConfig      `mapstructure:"load"`
	Alpha         float64         `mapstructure:"alpha"`
	Threshold     float64         `mapstructure:"threshold"`
	MaxIterations int             `mapstructure:"max_iterations"`
	TopK          int             `mapstructure:"top_k"`
	MinScore      float64         `mapstructure:"min_score"`
	Trials        int             `mapstructure:"trials"`
	Seed          uint64          `mapstructure:"seed"`
	Debug         bool            `mapstructure:"debug"`
	HostWorkers   int             `mapstructure:"host_workers"`
	Device        DeviceConfig    `mapstructure:"device"`
	Reference     ReferenceConfig `mapstructure:"reference"`
	Telemetry     string          `mapstructure:"telemetry"` // JSONL event log path
	DB            string          `mapstructure:"db"`        // SQLite results store path
	Report        string          `mapstructure:"report"`    // TOML run report path
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags, and validates the
// result.
func Load() (Config, error) {
	viper.SetDefault("graph", "")
	viper.SetDefault("load.transpose", true)
	viper.SetDefault("load.discard_weights", true)
	viper.SetDefault("load.index_base", 1)
	viper.SetDefault("load.sort", false)
	viper.SetDefault("alpha", 0.85)
	viper.SetDefault("threshold", 1e-6)
	viper.SetDefault("max_iterations", 50)
	viper.SetDefault("top_k", 10)
	viper.SetDefault("min_score", 0.9)
	viper.SetDefault("trials", 5)
	viper.SetDefault("seed", 1)
	viper.SetDefault("debug", false)
	viper.SetDefault("host_workers", 1)
	viper.SetDefault("device.groups", 32)
	viper.SetDefault("device.group_size", 256)
	viper.SetDefault("device.memory_mb", 0)
	viper.SetDefault("reference.tolerance", 1e-6)
	viper.SetDefault("reference.max_iterations", 100)
	viper.SetDefault("telemetry", "")
	viper.SetDefault("db", "")
	viper.SetDefault("report", "")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every out-of-range value at once.
func (c Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if !(c.Alpha > 0 && c.Alpha < 1) {
		add("alpha %v must be in (0, 1)", c.Alpha)
	}
	if !(c.Threshold > 0) {
		add("threshold %v must be positive", c.Threshold)
	}
	if c.MaxIterations < 1 {
		add("max_iterations %d must be at least 1", c.MaxIterations)
	}
	if c.TopK < 1 {
		add("top_k %d must be at least 1", c.TopK)
	}
	if c.Trials < 1 {
		add("trials %d must be at least 1", c.Trials)
	}
	if c.Load.IndexBase != 0 && c.Load.IndexBase != 1 {
		add("load.index_base %d must be 0 or 1", c.Load.IndexBase)
	}
	if c.Device.Groups < 1 {
		add("device.groups %d must be at least 1", c.Device.Groups)
	}
	if gs := c.Device.GroupSize; gs < 1 || gs > 1024 || gs&(gs-1) != 0 {
		add("device.group_size %d must be a power of two no larger than 1024", gs)
	}
	if c.Device.MemoryMB < 0 {
		add("device.memory_mb %d must not be negative", c.Device.MemoryMB)
	}
	if c.HostWorkers < 1 {
		add("host_workers %d must be at least 1", c.HostWorkers)
	}
	if !(c.Reference.Tolerance > 0) {
		add("reference.tolerance %v must be positive", c.Reference.Tolerance)
	}
	if c.Reference.MaxIterations < 1 {
		add("reference.max_iterations %d must be at least 1", c.Reference.MaxIterations)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
