// Package config loads the pipeline configuration from an optional YAML file
// and environment variables. Secrets are only read from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stock_pipeline/internal/platform/db"
	"stock_pipeline/internal/platform/externalapi/alphavantage"
	"stock_pipeline/internal/platform/redis"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/pipeline.yaml"

// DefaultSymbols are processed when neither the file nor the environment names any.
var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT"}

// DAG holds task graph defaults.
type DAG struct {
	Retries     int           `yaml:"retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	MaxParallel int           `yaml:"max_parallel"`
}

// Config holds all application configuration.
type Config struct {
	Symbols     []string      `yaml:"symbols"`
	Pacing      time.Duration `yaml:"pacing"`
	RequireLive bool          `yaml:"require_live"`
	Schedule    string        `yaml:"schedule"`
	HTTPAddr    string        `yaml:"http_addr"`
	LogLevel    string        `yaml:"log_level"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	DAG         DAG           `yaml:"dag"`

	AlphaVantage  alphavantage.Config `yaml:"-"`
	Database      db.Config           `yaml:"-"`
	Redis         redis.Config        `yaml:"-"`
	RunMigrations bool                `yaml:"-"`
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// 負の値は「未設定」として扱い、後段でデフォルトを入れる
	cfg.DAG.Retries = -1

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	cfg.AlphaVantage = alphavantage.LoadConfig()
	cfg.Database = db.LoadConfigFromEnv()
	cfg.Redis = redis.LoadConfig()
	cfg.RunMigrations = os.Getenv("RUN_MIGRATIONS") == "true"
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PIPELINE_SYMBOLS"); v != "" {
		cfg.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("PIPELINE_PACING"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PIPELINE_PACING: %w", err)
		}
		cfg.Pacing = d
	}
	if v := os.Getenv("PIPELINE_REQUIRE_LIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PIPELINE_REQUIRE_LIVE: %w", err)
		}
		cfg.RequireLive = b
	}
	if v := os.Getenv("PIPELINE_SCHEDULE"); v != "" {
		cfg.Schedule = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if cfg.Pacing == 0 {
		cfg.Pacing = 12 * time.Second
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 6h"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.DAG.Retries < 0 {
		cfg.DAG.Retries = 2
	}
	if cfg.DAG.RetryDelay == 0 {
		cfg.DAG.RetryDelay = 5 * time.Minute
	}
	if cfg.DAG.MaxParallel == 0 {
		cfg.DAG.MaxParallel = 1
	}
}

// splitSymbols は "aapl, msft" を ["AAPL", "MSFT"] に変換します。
func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings needed before any symbol is processed.
func (c *Config) Validate() error {
	var errs []error
	if err := c.AlphaVantage.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("symbols must not be empty"))
	}
	if c.Pacing < 0 {
		errs = append(errs, errors.New("pacing must not be negative"))
	}
	if c.DAG.MaxParallel < 0 {
		errs = append(errs, errors.New("dag.max_parallel must not be negative"))
	}
	return errors.Join(errs...)
}
