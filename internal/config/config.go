// Package config loads autoqa settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/autoqa/internal/crawler"
	"github.com/v0xg/autoqa/internal/executor"
)

// DefaultPath is read when no config file is given; it may be absent
const DefaultPath = "autoqa.yaml"

const (
	DriverChrome = "chrome"
	DriverStatic = "static"
)

// Config holds the application configuration
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Driver    string          `yaml:"driver"`
	Browser   BrowserConfig   `yaml:"browser"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	API       APIConfig       `yaml:"api"`
	Execution ExecutionConfig `yaml:"execution"`
	Output    OutputConfig    `yaml:"output"`
	Database  DatabaseConfig  `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
}

// BrowserConfig holds Chromium launch settings
type BrowserConfig struct {
	Headless   bool   `yaml:"headless"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	ProfileDir string `yaml:"profile_dir"`
	Bin        string `yaml:"bin"`
}

// CrawlConfig holds website crawl settings
type CrawlConfig struct {
	Depth             string        `yaml:"depth"`
	Screenshots       bool          `yaml:"screenshots"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SettleTimeout     time.Duration `yaml:"settle_timeout"`
}

// APIConfig holds API discovery settings
type APIConfig struct {
	ObserveWindow time.Duration `yaml:"observe_window"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	SpecPaths     []string      `yaml:"spec_paths"`
}

// ExecutionConfig holds test execution settings
type ExecutionConfig struct {
	ParallelWorkers   int           `yaml:"parallel_workers"`
	Healing           bool          `yaml:"healing"`
	Screenshots       bool          `yaml:"screenshots"`
	RecordVideo       bool          `yaml:"record_video"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	HealTimeout       time.Duration `yaml:"heal_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

// OutputConfig holds artifact settings
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// DatabaseConfig holds the healing event store connection
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AIConfig holds test generation settings
type AIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	MaxTests int    `yaml:"max_tests"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Driver:   DriverChrome,
		Browser: BrowserConfig{
			Headless: true,
			Width:    1280,
			Height:   720,
		},
		Crawl: CrawlConfig{
			Depth:             string(crawler.Shallow),
			NavigationTimeout: 30 * time.Second,
			SettleTimeout:     10 * time.Second,
		},
		API: APIConfig{
			ObserveWindow: 3 * time.Second,
			ProbeTimeout:  10 * time.Second,
		},
		Execution: ExecutionConfig{
			ParallelWorkers:   2,
			Healing:           true,
			ActionTimeout:     5 * time.Second,
			HealTimeout:       2 * time.Second,
			NavigationTimeout: 30 * time.Second,
			IdleTimeout:       10 * time.Second,
		},
		Output: OutputConfig{Dir: "autoqa-artifacts"},
		AI: AIConfig{
			Provider: "claude",
			MaxTests: 10,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing DefaultPath is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AUTOQA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("AUTOQA_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("AUTOQA_AI_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
}

// Validate rejects settings no run could use
func (c *Config) Validate() error {
	if _, err := crawler.PageBudget(crawler.Depth(c.Crawl.Depth)); err != nil {
		return err
	}
	if c.Execution.ParallelWorkers < 1 {
		return fmt.Errorf("%w: parallel_workers is %d", executor.ErrNoWorkers, c.Execution.ParallelWorkers)
	}
	switch c.Driver {
	case DriverChrome, DriverStatic:
	default:
		return fmt.Errorf("unknown driver %q (supported: chrome, static)", c.Driver)
	}
	switch c.AI.Provider {
	case "", "claude", "anthropic", "openai", "gpt":
	default:
		return fmt.Errorf("unknown ai provider %q (supported: claude, openai)", c.AI.Provider)
	}
	return nil
}

// ExecutorConfig maps the execution settings onto an executor run
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		ParallelWorkers:   c.Execution.ParallelWorkers,
		Healing:           c.Execution.Healing,
		Screenshots:       c.Execution.Screenshots,
		RecordVideo:       c.Execution.RecordVideo,
		OutputDir:         c.Output.Dir,
		ActionTimeout:     c.Execution.ActionTimeout,
		HealTimeout:       c.Execution.HealTimeout,
		NavigationTimeout: c.Execution.NavigationTimeout,
		IdleTimeout:       c.Execution.IdleTimeout,
	}
}
