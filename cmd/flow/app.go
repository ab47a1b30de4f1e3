package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/KramerO/ollama-flow-sub002/internal/config"
	"github.com/KramerO/ollama-flow-sub002/internal/db"
	"github.com/KramerO/ollama-flow-sub002/internal/llm"
	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultConfigPath = "flow.yaml"

// loadDotEnv reads .env from the working directory if present. Values
// already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// loadConfig reads the config file. A missing file at the default path falls
// back to built-in defaults; an explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// app bundles what most commands need: config, logger and a migrated database.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func openApp(g *globalOpts) (*app, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(g.debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		db.Close(gormDB)
		return nil, err
	}
	return &app{cfg: cfg, log: log, db: gormDB}, nil
}

func (a *app) close() {
	a.log.Sync()
	db.Close(a.db)
}

// coordinator builds a workflow coordinator with the configured backend.
func (a *app) coordinator() (*workflow.Coordinator, error) {
	backend, err := llm.FromConfig(a.cfg.Backend)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		a.log.Warn("no backend configured, drones answer with neutral defaults")
	}
	return workflow.FromConfig(a.cfg, a.db, backend, a.log)
}
