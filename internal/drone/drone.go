// Package drone implements the role-bound agents that execute research,
// validation and analysis tasks through the language-model backend.
package drone

import (
	"context"
	"errors"
	"fmt"

	"github.com/KramerO/ollama-flow-sub002/internal/llm"
)

// Role identifies the kind of task a drone executes.
type Role string

// Drone roles.
const (
	RoleResearcher  Role = "researcher"
	RoleFactChecker Role = "fact_checker"
	RoleDataAnalyst Role = "data_analyst"
	RoleWorker      Role = "worker"
)

// Roles lists every role in pipeline order.
var Roles = []Role{RoleResearcher, RoleFactChecker, RoleDataAnalyst, RoleWorker}

// Title returns a human-readable role name.
func (r Role) Title() string {
	switch r {
	case RoleResearcher:
		return "Researcher"
	case RoleFactChecker:
		return "FactChecker"
	case RoleDataAnalyst:
		return "DataAnalyst"
	case RoleWorker:
		return "Worker"
	default:
		return string(r)
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ErrHandlerPanic marks a handler that panicked instead of returning.
var ErrHandlerPanic = errors.New("handler panic")

// Handler is the role-specific task logic.
type Handler interface {
	Handle(ctx context.Context, droneID string, task Task) (Result, error)
}

// Drone is one agent bound to a role. Its identity is immutable; pool
// bookkeeping (current task, completed count) lives in the pool.
type Drone struct {
	ID      string
	Name    string
	Role    Role
	handler Handler
}

// New creates a drone whose handler matches role. backend may be nil.
func New(id, name string, role Role, backend llm.Backend) (*Drone, error) {
	if id == "" {
		return nil, fmt.Errorf("drone: id is required")
	}
	h, err := handlerFor(role, backend)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = id
	}
	return &Drone{ID: id, Name: name, Role: role, handler: h}, nil
}

// NewWithHandler creates a drone with a custom handler.
func NewWithHandler(id, name string, role Role, h Handler) *Drone {
	if name == "" {
		name = id
	}
	return &Drone{ID: id, Name: name, Role: role, handler: h}
}

// ID builds the conventional drone ID for the nth member of a role pool.
func ID(role Role, n int) string {
	return fmt.Sprintf("%s-%d", role, n)
}

// Handle runs the drone's handler. A panicking handler is reported as an error.
func (d *Drone) Handle(ctx context.Context, task Task) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drone %s: %w: %v", d.ID, ErrHandlerPanic, r)
		}
	}()
	return d.handler.Handle(ctx, d.ID, task)
}

func handlerFor(role Role, backend llm.Backend) (Handler, error) {
	switch role {
	case RoleResearcher:
		return &Researcher{Backend: backend}, nil
	case RoleFactChecker:
		return &FactChecker{Backend: backend}, nil
	case RoleDataAnalyst:
		return &DataAnalyst{Backend: backend}, nil
	case RoleWorker:
		return &Worker{Backend: backend}, nil
	default:
		return nil, fmt.Errorf("drone: unknown role %q", role)
	}
}
