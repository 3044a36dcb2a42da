package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ViaSnake/mcaselector/internal/storage/region"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// PipelineConfig holds worker pool and write behavior configuration
type PipelineConfig struct {
	ReadThreads    int    `yaml:"read_threads"`
	ProcessThreads int    `yaml:"process_threads"`
	WriteThreads   int    `yaml:"write_threads"`
	MaxLoadedFiles int    `yaml:"max_loaded_files"`
	ChunkWorkers   int    `yaml:"chunk_workers"`
	WriteRate      string `yaml:"write_rate"`
	Recompress     string `yaml:"recompress"`
	DryRun         bool   `yaml:"dry_run"`
}

// VersionRange maps an inclusive DataVersion range to a layout
type VersionRange struct {
	Min    int32  `yaml:"min"`
	Max    int32  `yaml:"max"`
	Layout string `yaml:"layout"`
}

// StorageConfig holds disk guard configuration
type StorageConfig struct {
	MaxDiskUsage float64 `yaml:"max_disk_usage"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Versions []VersionRange `yaml:"versions"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults fills unspecified values. Thread counts follow the machine.
func setDefaults(cfg *Config) {
	cpus := runtime.NumCPU()

	if cfg.Pipeline.ReadThreads == 0 {
		cfg.Pipeline.ReadThreads = 1
	}
	if cfg.Pipeline.ProcessThreads == 0 {
		cfg.Pipeline.ProcessThreads = cpus
	}
	if cfg.Pipeline.WriteThreads == 0 {
		cfg.Pipeline.WriteThreads = 1
	}
	if cfg.Pipeline.MaxLoadedFiles == 0 {
		cfg.Pipeline.MaxLoadedFiles = max(4, int(math.Ceil(float64(cpus)*1.5)))
	}
	if cfg.Pipeline.ChunkWorkers == 0 {
		cfg.Pipeline.ChunkWorkers = 1
	}

	if len(cfg.Versions) == 0 {
		for _, r := range version.DefaultRanges() {
			cfg.Versions = append(cfg.Versions, VersionRange{Min: r.Min, Max: r.Max, Layout: r.Layout})
		}
	}

	if cfg.Storage.MaxDiskUsage == 0 {
		cfg.Storage.MaxDiskUsage = 0.95
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.ReadThreads < 1 || p.ProcessThreads < 1 || p.WriteThreads < 1 {
		return fmt.Errorf("pipeline thread counts must be positive")
	}
	if p.MaxLoadedFiles < 1 {
		return fmt.Errorf("pipeline.max_loaded_files must be positive")
	}
	if p.ChunkWorkers < 1 {
		return fmt.Errorf("pipeline.chunk_workers must be positive")
	}
	if _, err := c.WriteRateBytes(); err != nil {
		return fmt.Errorf("pipeline.write_rate: %w", err)
	}
	if _, err := region.ParseCompression(p.Recompress); err != nil {
		return fmt.Errorf("pipeline.recompress: %w", err)
	}
	if _, err := version.NewRegistry(c.VersionRanges()); err != nil {
		return fmt.Errorf("versions: %w", err)
	}
	if c.Storage.MaxDiskUsage <= 0 || c.Storage.MaxDiskUsage > 1 {
		return fmt.Errorf("storage.max_disk_usage must be in (0, 1]")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := strings.ToLower(c.Logging.Format); f != "json" && f != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}
	return nil
}

// WriteRateBytes parses the write throttle, e.g. "32MiB". Zero means unlimited.
func (c *Config) WriteRateBytes() (uint64, error) {
	s := strings.TrimSpace(c.Pipeline.WriteRate)
	if s == "" || s == "0" {
		return 0, nil
	}
	return humanize.ParseBytes(s)
}

// VersionRanges converts the configured ranges for the registry
func (c *Config) VersionRanges() []version.Range {
	out := make([]version.Range, len(c.Versions))
	for i, r := range c.Versions {
		out[i] = version.Range{Min: r.Min, Max: r.Max, Layout: r.Layout}
	}
	return out
}
