// Package config provides YAML-based configuration loading for ollama-flow.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Backend providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
)

// Overflow policies for tasks that find no idle drone.
const (
	OverflowDrop  = "drop"
	OverflowQueue = "queue"
)

// Config is the top-level configuration, loaded from flow.yaml.
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Pools     PoolsConfig      `yaml:"pools"`
	Backend   BackendConfig    `yaml:"backend"`
	Workflow  WorkflowConfig   `yaml:"workflow"`
	Server    ServerConfig     `yaml:"server"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// DatabaseConfig selects and locates the persistent store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	User   string `yaml:"user"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
}

// PoolsConfig sets the fixed size of each role pool.
type PoolsConfig struct {
	Researchers  int `yaml:"researchers"`
	FactCheckers int `yaml:"fact_checkers"`
	DataAnalysts int `yaml:"data_analysts"`
	Workers      int `yaml:"workers"`
}

// BackendConfig describes the language-model backend.
type BackendConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// WorkflowConfig tunes phase dispatch and drone polling.
type WorkflowConfig struct {
	TaskTimeout  time.Duration `yaml:"task_timeout"`
	Overflow     string        `yaml:"overflow"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig runs a query on a 5-field cron expression.
type ScheduleConfig struct {
	Name  string `yaml:"name"`
	Cron  string `yaml:"cron"`
	Query string `yaml:"query"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "ollama-flow.db"
	}
	if c.Database.Driver == DriverMySQL {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "ollama_flow"
		}
	}

	if c.Pools.Researchers == 0 {
		c.Pools.Researchers = 3
	}
	if c.Pools.FactCheckers == 0 {
		c.Pools.FactCheckers = 2
	}
	if c.Pools.DataAnalysts == 0 {
		c.Pools.DataAnalysts = 2
	}

	if c.Backend.Provider == "" {
		c.Backend.Provider = ProviderNone
	}
	if c.Backend.Provider == ProviderOpenAI {
		if c.Backend.APIKey == "" {
			c.Backend.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if c.Backend.BaseURL == "" {
			c.Backend.BaseURL = os.Getenv("OPENAI_API_BASE_URL")
		}
		if c.Backend.Model == "" {
			c.Backend.Model = "llama3"
		}
	}

	if c.Workflow.TaskTimeout == 0 {
		c.Workflow.TaskTimeout = 2 * time.Minute
	}
	if c.Workflow.Overflow == "" {
		c.Workflow.Overflow = OverflowDrop
	}
	if c.Workflow.PollInterval == 0 {
		c.Workflow.PollInterval = 500 * time.Millisecond
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Pools.Researchers < 0 || c.Pools.FactCheckers < 0 || c.Pools.DataAnalysts < 0 || c.Pools.Workers < 0 {
		errs = append(errs, "pool sizes must not be negative")
	}
	switch c.Backend.Provider {
	case ProviderNone, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Sprintf("backend.provider %q must be none or openai", c.Backend.Provider))
	}
	if c.Backend.RequestsPerSecond < 0 {
		errs = append(errs, "backend.requests_per_second must not be negative")
	}
	switch c.Workflow.Overflow {
	case OverflowDrop, OverflowQueue:
	default:
		errs = append(errs, fmt.Sprintf("workflow.overflow %q must be drop or queue", c.Workflow.Overflow))
	}
	if c.Workflow.TaskTimeout < 0 {
		errs = append(errs, "workflow.task_timeout must not be negative")
	}
	if c.Workflow.PollInterval < 0 {
		errs = append(errs, "workflow.poll_interval must not be negative")
	}
	for i, s := range c.Schedules {
		if s.Cron == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d].cron is required", i))
		}
		if strings.TrimSpace(s.Query) == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d].query is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
