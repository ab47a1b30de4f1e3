package workflow

import (
	"fmt"

	"github.com/KramerO/ollama-flow-sub002/internal/config"
	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/llm"
	"github.com/KramerO/ollama-flow-sub002/internal/mailbox"
	"github.com/KramerO/ollama-flow-sub002/internal/pool"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FromConfig wires pools, mailbox, agent registry and record store on one
// database connection. backend may be nil.
func FromConfig(cfg *config.Config, gormDB *gorm.DB, backend llm.Backend, log *zap.Logger) (*Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow: config is required")
	}
	if gormDB == nil {
		return nil, fmt.Errorf("workflow: db is required")
	}
	popts := pool.Opts{Recorder: drone.NewRegistry(gormDB), Logger: log}

	build := func(role drone.Role, size int) (*pool.Pool, error) {
		return pool.Build(role, size, func(id, name string) (*drone.Drone, error) {
			return drone.New(id, name, role, backend)
		}, popts)
	}

	var pools Pools
	var err error
	if pools.Researchers, err = build(drone.RoleResearcher, cfg.Pools.Researchers); err != nil {
		return nil, err
	}
	if pools.FactCheckers, err = build(drone.RoleFactChecker, cfg.Pools.FactCheckers); err != nil {
		return nil, err
	}
	if pools.DataAnalysts, err = build(drone.RoleDataAnalyst, cfg.Pools.DataAnalysts); err != nil {
		return nil, err
	}
	if cfg.Pools.Workers > 0 {
		if pools.Workers, err = build(drone.RoleWorker, cfg.Pools.Workers); err != nil {
			return nil, err
		}
	}

	return New(pools, Options{
		TaskTimeout:  cfg.Workflow.TaskTimeout,
		Overflow:     Overflow(cfg.Workflow.Overflow),
		PollInterval: cfg.Workflow.PollInterval,
		Mailbox:      mailbox.New(gormDB),
		Store:        NewStore(gormDB),
		Logger:       log,
	})
}
