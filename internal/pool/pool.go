// Package pool manages fixed-size sets of same-role drones with
// one-task-per-drone allocation.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/metrics"
	"github.com/KramerO/ollama-flow-sub002/internal/models"
	"go.uber.org/zap"
)

// ErrNoCapacity reports that every drone in the pool is busy.
var ErrNoCapacity = errors.New("pool: no available drone")

// Recorder persists drone snapshots.
type Recorder interface {
	Save(ctx context.Context, snap models.Agent) error
}

// AgentStatus is the observable state of one pooled drone.
type AgentStatus struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Active         bool   `json:"active"`
	CurrentTask    string `json:"current_task,omitempty"`
	CompletedTasks int    `json:"completed_tasks"`
}

type slot struct {
	drone     *drone.Drone
	task      string
	completed int
}

// Pool is an ordered, fixed-size collection of drones of one role. All slot
// mutation happens under mu, so no two acquirers can hold the same drone.
type Pool struct {
	role     drone.Role
	recorder Recorder
	log      *zap.Logger

	mu       sync.Mutex
	slots    []*slot
	byID     map[string]*slot
	released chan struct{}
}

// Opts holds optional pool collaborators.
type Opts struct {
	Recorder Recorder
	Logger   *zap.Logger
}

// New builds a pool from drones, which must all have the given role and
// distinct IDs. The pool never grows or shrinks afterwards.
func New(role drone.Role, drones []*drone.Drone, opts Opts) (*Pool, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("pool: unknown role %q", role)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		role:     role,
		recorder: opts.Recorder,
		log:      log.With(zap.String("role", string(role))),
		byID:     make(map[string]*slot, len(drones)),
		released: make(chan struct{}),
	}
	for _, d := range drones {
		if d == nil {
			return nil, fmt.Errorf("pool: nil drone")
		}
		if d.Role != role {
			return nil, fmt.Errorf("pool: drone %s has role %s, want %s", d.ID, d.Role, role)
		}
		if _, dup := p.byID[d.ID]; dup {
			return nil, fmt.Errorf("pool: duplicate drone id %s", d.ID)
		}
		s := &slot{drone: d}
		p.slots = append(p.slots, s)
		p.byID[d.ID] = s
	}
	return p, nil
}

// Build creates size drones of role, named in pool order, using newDrone.
func Build(role drone.Role, size int, newDrone func(id, name string) (*drone.Drone, error), opts Opts) (*Pool, error) {
	drones := make([]*drone.Drone, 0, size)
	for i := 1; i <= size; i++ {
		d, err := newDrone(drone.ID(role, i), fmt.Sprintf("%s %d", role.Title(), i))
		if err != nil {
			return nil, err
		}
		drones = append(drones, d)
	}
	return New(role, drones, opts)
}

// Role returns the pool's role.
func (p *Pool) Role() drone.Role { return p.role }

// Size returns the fixed number of drones.
func (p *Pool) Size() int { return len(p.slots) }

// Drones returns the pooled drones in pool order.
func (p *Pool) Drones() []*drone.Drone {
	out := make([]*drone.Drone, len(p.slots))
	for i, s := range p.slots {
		out[i] = s.drone
	}
	return out
}

// Register persists an initial snapshot of every drone.
func (p *Pool) Register(ctx context.Context) error {
	if p.recorder == nil {
		return nil
	}
	for _, snap := range p.snapshots() {
		if err := p.recorder.Save(ctx, snap); err != nil {
			return fmt.Errorf("pool: register %s: %w", snap.ID, err)
		}
	}
	return nil
}

// Acquire assigns task to the first idle drone in pool order. It returns nil
// when the pool is saturated; that is "no capacity", not an error.
func (p *Pool) Acquire(task string) *drone.Drone {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquireLocked(task)
}

func (p *Pool) acquireLocked(task string) *drone.Drone {
	if task == "" {
		task = "task"
	}
	for _, s := range p.slots {
		if s.task == "" {
			s.task = task
			metrics.DronesBusy.WithLabelValues(string(p.role)).Inc()
			return s.drone
		}
	}
	return nil
}

// AcquireDrone books the named drone for task if it is idle. Mailbox loops
// use it so a drone never serves a mailbox task and a workflow task at once.
func (p *Pool) AcquireDrone(id, task string) bool {
	if task == "" {
		task = "task"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byID[id]
	if !ok || s.task != "" {
		return false
	}
	s.task = task
	metrics.DronesBusy.WithLabelValues(string(p.role)).Inc()
	return true
}

// AcquireWait blocks until a drone is free or ctx is done.
func (p *Pool) AcquireWait(ctx context.Context, task string) (*drone.Drone, error) {
	if len(p.slots) == 0 {
		return nil, ErrNoCapacity
	}
	for {
		p.mu.Lock()
		if d := p.acquireLocked(task); d != nil {
			p.mu.Unlock()
			return d, nil
		}
		wait := p.released
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNoCapacity, ctx.Err())
		case <-wait:
		}
	}
}

// Release clears the drone's task, bumps its completed count, wakes waiting
// acquirers, and persists the snapshot. The slot is freed even when the
// snapshot cannot be saved.
func (p *Pool) Release(ctx context.Context, d *drone.Drone) error {
	if d == nil {
		return fmt.Errorf("pool: release nil drone")
	}
	p.mu.Lock()
	s, ok := p.byID[d.ID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("pool: drone %s not in %s pool", d.ID, p.role)
	}
	if s.task == "" {
		p.mu.Unlock()
		return fmt.Errorf("pool: drone %s is not busy", d.ID)
	}
	s.task = ""
	s.completed++
	snap := snapshot(s)
	close(p.released)
	p.released = make(chan struct{})
	p.mu.Unlock()

	metrics.DronesBusy.WithLabelValues(string(p.role)).Dec()

	if p.recorder == nil {
		return nil
	}
	if err := p.recorder.Save(ctx, snap); err != nil {
		p.log.Warn("persist drone snapshot failed", zap.String("drone_id", d.ID), zap.Error(err))
		return fmt.Errorf("pool: release %s: %w", d.ID, err)
	}
	return nil
}

// Status reports every drone in pool order.
func (p *Pool) Status() []AgentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]AgentStatus, len(p.slots))
	for i, s := range p.slots {
		out[i] = AgentStatus{
			ID:             s.drone.ID,
			Name:           s.drone.Name,
			Active:         true,
			CurrentTask:    s.task,
			CompletedTasks: s.completed,
		}
	}
	return out
}

// Busy returns the number of drones holding a task.
func (p *Pool) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		if s.task != "" {
			n++
		}
	}
	return n
}

func (p *Pool) snapshots() []models.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Agent, len(p.slots))
	for i, s := range p.slots {
		out[i] = snapshot(s)
	}
	return out
}

func snapshot(s *slot) models.Agent {
	return models.Agent{
		ID:             s.drone.ID,
		Name:           s.drone.Name,
		Role:           string(s.drone.Role),
		CurrentTask:    s.task,
		CompletedTasks: s.completed,
		Active:         true,
	}
}
