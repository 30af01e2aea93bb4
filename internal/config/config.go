package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine struct {
		EnabledLayers   []int   `yaml:"enabled_layers"`
		TimeoutMsLayer  int     `yaml:"timeout_ms_per_layer"`
		MaxGrowthRatio  float64 `yaml:"max_growth_ratio"`
		ApplyLearned    bool    `yaml:"apply_learned"`
		BestEffort      bool    `yaml:"best_effort"`
		LearnThreshold  int     `yaml:"learn_support_threshold"`
		ApplyConfidence float64 `yaml:"apply_confidence"`
	} `yaml:"engine"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Batch struct {
		Workers int `yaml:"workers"`
	} `yaml:"batch"`
}

// LoadConfig reads the YAML config, layering .env and environment variables
// on top. A missing file yields defaults rather than an error so the CLI
// works out of the box.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	var cfg Config
	cfg.Store.Path = "fixwise.db"
	cfg.Batch.Workers = 4

	// 2. Load YAML config
	if file, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if dbPath := os.Getenv("FIXWISE_DB"); dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if workers := os.Getenv("FIXWISE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.Batch.Workers = n
		}
	}

	return &cfg, nil
}

// LayerTimeout returns the configured per-layer budget, or zero to let the
// engine apply its default.
func (c *Config) LayerTimeout() time.Duration {
	if c.Engine.TimeoutMsLayer <= 0 {
		return 0
	}
	return time.Duration(c.Engine.TimeoutMsLayer) * time.Millisecond
}
