package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
database:
  driver: mysql
  user: flow
  host: 10.0.0.5
  port: 3307
  name: drones

pools:
  researchers: 4
  fact_checkers: 3
  data_analysts: 1
  workers: 2

backend:
  provider: openai
  model: llama3.1
  base_url: http://localhost:11434/v1/
  api_key: sk-test
  requests_per_second: 2.5
  burst: 4

workflow:
  task_timeout: 45s
  overflow: queue
  poll_interval: 250ms

server:
  port: 9090

schedules:
  - name: nightly
    cron: "0 2 * * *"
    query: "state of open-source LLMs"
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != DriverMySQL {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverMySQL)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 || cfg.Database.Name != "drones" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Pools.Researchers != 4 || cfg.Pools.FactCheckers != 3 || cfg.Pools.DataAnalysts != 1 || cfg.Pools.Workers != 2 {
		t.Errorf("Pools = %+v", cfg.Pools)
	}
	if cfg.Backend.Model != "llama3.1" {
		t.Errorf("Backend.Model = %q, want %q", cfg.Backend.Model, "llama3.1")
	}
	if cfg.Backend.RequestsPerSecond != 2.5 || cfg.Backend.Burst != 4 {
		t.Errorf("Backend rate = %v/%d", cfg.Backend.RequestsPerSecond, cfg.Backend.Burst)
	}
	if cfg.Workflow.TaskTimeout != 45*time.Second {
		t.Errorf("Workflow.TaskTimeout = %s, want 45s", cfg.Workflow.TaskTimeout)
	}
	if cfg.Workflow.Overflow != OverflowQueue {
		t.Errorf("Workflow.Overflow = %q, want %q", cfg.Workflow.Overflow, OverflowQueue)
	}
	if cfg.Workflow.PollInterval != 250*time.Millisecond {
		t.Errorf("Workflow.PollInterval = %s, want 250ms", cfg.Workflow.PollInterval)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Cron != "0 2 * * *" {
		t.Errorf("Schedules = %+v", cfg.Schedules)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Database.Path != "ollama-flow.db" {
		t.Errorf("Database.Path = %q, want ollama-flow.db", cfg.Database.Path)
	}
	if cfg.Pools.Researchers != 3 || cfg.Pools.FactCheckers != 2 || cfg.Pools.DataAnalysts != 2 {
		t.Errorf("Pools = %+v, want 3/2/2", cfg.Pools)
	}
	if cfg.Pools.Workers != 0 {
		t.Errorf("Pools.Workers = %d, want 0", cfg.Pools.Workers)
	}
	if cfg.Backend.Provider != ProviderNone {
		t.Errorf("Backend.Provider = %q, want %q", cfg.Backend.Provider, ProviderNone)
	}
	if cfg.Workflow.TaskTimeout != 2*time.Minute {
		t.Errorf("Workflow.TaskTimeout = %s, want 2m", cfg.Workflow.TaskTimeout)
	}
	if cfg.Workflow.Overflow != OverflowDrop {
		t.Errorf("Workflow.Overflow = %q, want %q", cfg.Workflow.Overflow, OverflowDrop)
	}
	if cfg.Workflow.PollInterval != 500*time.Millisecond {
		t.Errorf("Workflow.PollInterval = %s, want 500ms", cfg.Workflow.PollInterval)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 || cfg.Database.Name != "ollama_flow" {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestParse_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_API_BASE_URL", "http://ollama:11434/v1/")

	cfg, err := Parse([]byte("backend:\n  provider: openai\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.APIKey != "sk-env" {
		t.Errorf("Backend.APIKey = %q, want sk-env", cfg.Backend.APIKey)
	}
	if cfg.Backend.BaseURL != "http://ollama:11434/v1/" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Model != "llama3" {
		t.Errorf("Backend.Model = %q, want llama3", cfg.Backend.Model)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "database:\n  driver: oracle\n", "database.driver"},
		{"negative pool", "pools:\n  researchers: -1\n", "pool sizes"},
		{"bad provider", "backend:\n  provider: bard\n", "backend.provider"},
		{"bad overflow", "workflow:\n  overflow: retry\n", "workflow.overflow"},
		{"negative timeout", "workflow:\n  task_timeout: -1s\n", "task_timeout"},
		{"schedule without cron", "schedules:\n  - query: x\n", "schedules[0].cron"},
		{"schedule without query", "schedules:\n  - cron: \"* * * * *\"\n", "schedules[0].query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("pools: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pools.Researchers != 4 {
		t.Errorf("Pools.Researchers = %d, want 4", cfg.Pools.Researchers)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Pools.Researchers != 3 || cfg.Workflow.Overflow != OverflowDrop {
		t.Errorf("Default() = %+v", cfg)
	}
}
