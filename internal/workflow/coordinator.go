// Package workflow runs the research → fact-check → analysis pipeline across
// three drone pools and scores the result.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/mailbox"
	"github.com/KramerO/ollama-flow-sub002/internal/metrics"
	"github.com/KramerO/ollama-flow-sub002/internal/pool"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Angles are the research perspectives fanned out for every query.
var Angles = []string{"factual", "historical", "trend"}

// Overflow decides what happens to a task that finds no idle drone.
type Overflow string

// Overflow policies.
const (
	// OverflowDrop skips the task.
	OverflowDrop Overflow = "drop"
	// OverflowQueue waits for a drone to be released.
	OverflowQueue Overflow = "queue"
)

// errTaskTimeout is recorded on fallback results of timed-out tasks.
var errTaskTimeout = errors.New("timeout")

// Pools groups the role pools a coordinator dispatches to. Workers is
// optional and only serves mailbox traffic.
type Pools struct {
	Researchers  *pool.Pool
	FactCheckers *pool.Pool
	DataAnalysts *pool.Pool
	Workers      *pool.Pool
}

// Options configures a Coordinator.
type Options struct {
	// TaskTimeout bounds each dispatched task; zero waits forever.
	TaskTimeout  time.Duration
	Overflow     Overflow
	PollInterval time.Duration
	Mailbox      mailbox.Store
	Store        Store
	Logger       *zap.Logger
}

// Coordinator owns the role pools and runs workflows against them. It is safe
// for concurrent ProcessWorkflow calls; concurrent workflows compete for the
// same drones.
type Coordinator struct {
	pools Pools
	opts  Options
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

// New validates the pools and returns a Coordinator.
func New(pools Pools, opts Options) (*Coordinator, error) {
	if pools.Researchers == nil || pools.FactCheckers == nil || pools.DataAnalysts == nil {
		return nil, fmt.Errorf("workflow: researcher, fact checker and data analyst pools are required")
	}
	checks := []struct {
		p    *pool.Pool
		role drone.Role
	}{
		{pools.Researchers, drone.RoleResearcher},
		{pools.FactCheckers, drone.RoleFactChecker},
		{pools.DataAnalysts, drone.RoleDataAnalyst},
		{pools.Workers, drone.RoleWorker},
	}
	for _, c := range checks {
		if c.p != nil && c.p.Role() != c.role {
			return nil, fmt.Errorf("workflow: %s pool given for %s", c.p.Role(), c.role)
		}
	}
	switch opts.Overflow {
	case "":
		opts.Overflow = OverflowDrop
	case OverflowDrop, OverflowQueue:
	default:
		return nil, fmt.Errorf("workflow: unknown overflow policy %q", opts.Overflow)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		pools: pools,
		opts:  opts,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// Register persists the initial snapshot of every pooled drone.
func (c *Coordinator) Register(ctx context.Context) error {
	for _, p := range c.allPools() {
		if err := p.Register(ctx); err != nil {
			return fmt.Errorf("workflow: %w", err)
		}
	}
	return nil
}

// PoolStatus reports every drone grouped by role.
func (c *Coordinator) PoolStatus() map[drone.Role][]pool.AgentStatus {
	out := make(map[drone.Role][]pool.AgentStatus)
	for _, p := range c.allPools() {
		out[p.Role()] = p.Status()
	}
	return out
}

// RunDrones starts one mailbox polling loop per pooled drone and blocks until
// ctx is cancelled. Each loop books its drone in the owning pool before
// handling a task, so mailbox and workflow tasks share the one-task limit.
func (c *Coordinator) RunDrones(ctx context.Context) error {
	if c.opts.Mailbox == nil {
		return fmt.Errorf("workflow: mailbox is required to run drones")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range c.allPools() {
		for _, d := range p.Drones() {
			g.Go(func() error {
				return d.Run(gctx, c.opts.Mailbox, drone.LoopOpts{
					Interval: c.opts.PollInterval,
					Logger:   c.log,
					Booker:   p,
				})
			})
		}
	}
	return g.Wait()
}

// ProcessWorkflow runs the full pipeline for query. It always returns a
// record: callers branch on Status rather than on an error. The record is
// persisted once, at its terminal state.
func (c *Coordinator) ProcessWorkflow(ctx context.Context, query string) *Record {
	query = strings.TrimSpace(query)
	rec := newRecord(c.newID(), query, c.now())
	log := c.log.With(zap.String("workflow_id", rec.ID))
	metrics.WorkflowsStarted.Inc()
	start := time.Now()

	if err := c.run(ctx, rec, log); err != nil {
		log.Error("workflow failed", zap.String("state", string(rec.State)), zap.Error(err))
		if rec.State != StateInitialized {
			err = fmt.Errorf("%s phase: %w", rec.State, err)
		}
		rec.fail(err, c.now())
	} else {
		rec.complete(c.now())
		log.Info("workflow completed", zap.Float64("confidence", rec.FinalConfidence))
	}

	if c.opts.Store != nil {
		if err := c.opts.Store.Save(context.WithoutCancel(ctx), rec); err != nil {
			log.Error("persist workflow failed", zap.Error(err))
			if rec.Status == StatusCompleted {
				rec.fail(err, c.now())
			}
		}
	}

	metrics.WorkflowsCompleted.WithLabelValues(string(rec.Status)).Inc()
	metrics.WorkflowDuration.Observe(time.Since(start).Seconds())
	if rec.Status == StatusCompleted {
		metrics.WorkflowConfidence.Observe(rec.FinalConfidence)
	}
	return rec
}

func (c *Coordinator) run(ctx context.Context, rec *Record, log *zap.Logger) error {
	if rec.Query == "" {
		return fmt.Errorf("workflow: query is required")
	}

	// Research: one task per angle.
	if err := c.enter(ctx, rec, StateResearch, log); err != nil {
		return err
	}
	tasks := make([]drone.Task, len(Angles))
	for i, angle := range Angles {
		tasks[i] = drone.Task{Query: rec.Query, Angle: angle}
	}
	outs, err := c.runPhase(ctx, rec.ID, StateResearch, c.pools.Researchers, tasks, log)
	for _, o := range outs {
		if o.result.Research != nil {
			rec.Research = append(rec.Research, *o.result.Research)
		}
	}
	if err != nil {
		return err
	}

	// Fact check: one task per research result.
	if err := c.enter(ctx, rec, StateFactCheck, log); err != nil {
		return err
	}
	tasks = make([]drone.Task, len(rec.Research))
	for i := range rec.Research {
		tasks[i] = drone.Task{Query: rec.Query, Research: &rec.Research[i]}
	}
	outs, err = c.runPhase(ctx, rec.ID, StateFactCheck, c.pools.FactCheckers, tasks, log)
	var pairs []drone.Task
	for _, o := range outs {
		if o.result.FactCheck == nil {
			continue
		}
		rec.FactCheck = append(rec.FactCheck, *o.result.FactCheck)
		pairs = append(pairs, drone.Task{
			Query:      rec.Query,
			Research:   o.task.Research,
			Validation: o.result.FactCheck,
		})
	}
	if err != nil {
		return err
	}

	// Analysis: one task per (research, validation) pair.
	if err := c.enter(ctx, rec, StateAnalysis, log); err != nil {
		return err
	}
	outs, err = c.runPhase(ctx, rec.ID, StateAnalysis, c.pools.DataAnalysts, pairs, log)
	for _, o := range outs {
		if o.result.Analysis != nil {
			rec.Analysis = append(rec.Analysis, *o.result.Analysis)
		}
	}
	if err != nil {
		return err
	}

	if err := c.enter(ctx, rec, StateScoring, log); err != nil {
		return err
	}
	rec.FinalConfidence = Score(rec.Research, rec.FactCheck, rec.Analysis)
	return nil
}

func (c *Coordinator) enter(ctx context.Context, rec *Record, state State, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("workflow: cancelled before %s: %w", state, err)
	}
	log.Debug("workflow state", zap.String("from", string(rec.State)), zap.String("to", string(state)))
	rec.State = state
	return nil
}

type phaseOutput struct {
	task   drone.Task
	result drone.Result
	ok     bool
}

// runPhase fans tasks out to p and waits for every dispatched task before
// returning (a barrier, not a race). Outputs keep input order; dropped tasks
// are absent. Each drone is released when its own task resolves.
func (c *Coordinator) runPhase(ctx context.Context, workflowID string, state State, p *pool.Pool, tasks []drone.Task, log *zap.Logger) ([]phaseOutput, error) {
	start := time.Now()
	defer func() {
		metrics.PhaseDuration.WithLabelValues(string(state)).Observe(time.Since(start).Seconds())
	}()
	log = log.With(zap.String("phase", string(state)))

	role := string(p.Role())
	outs := make([]phaseOutput, len(tasks))
	var g errgroup.Group

	if c.opts.Overflow == OverflowQueue {
		for i, task := range tasks {
			label := fmt.Sprintf("%s/%s/%d", workflowID, state, i)
			g.Go(func() error {
				d, err := p.AcquireWait(ctx, label)
				if err != nil {
					metrics.TasksDropped.WithLabelValues(role).Inc()
					log.Warn("task dropped while waiting for a drone", zap.Int("task", i), zap.Error(err))
					return nil
				}
				return c.execute(ctx, p, d, task, &outs[i], log)
			})
		}
	} else {
		// Book every task before starting any, so a fast task cannot free its
		// drone for a later task of the same phase.
		booked := make([]*drone.Drone, len(tasks))
		for i := range tasks {
			booked[i] = p.Acquire(fmt.Sprintf("%s/%s/%d", workflowID, state, i))
			if booked[i] == nil {
				metrics.TasksDropped.WithLabelValues(role).Inc()
				log.Info("no drone available, task dropped", zap.Int("task", i))
			}
		}
		for i, d := range booked {
			if d == nil {
				continue
			}
			g.Go(func() error {
				return c.execute(ctx, p, d, tasks[i], &outs[i], log)
			})
		}
	}

	err := g.Wait()

	done := make([]phaseOutput, 0, len(outs))
	for _, o := range outs {
		if o.ok {
			done = append(done, o)
		}
	}
	log.Debug("phase barrier reached", zap.Int("dispatched", len(tasks)), zap.Int("completed", len(done)))
	return done, err
}

// execute runs one task on d and releases d afterwards, whatever happened. A
// handler that outlives its timeout keeps d booked until it returns; the
// phase moves on with the fallback result and the release happens later.
func (c *Coordinator) execute(ctx context.Context, p *pool.Pool, d *drone.Drone, task drone.Task, out *phaseOutput, log *zap.Logger) (err error) {
	metrics.TasksDispatched.WithLabelValues(string(d.Role)).Inc()

	res, running, err := c.runTask(ctx, d, task)
	if running != nil {
		go c.releaseWhenDone(ctx, p, d, running, log)
	} else {
		defer func() {
			if relErr := p.Release(context.WithoutCancel(ctx), d); relErr != nil && err == nil {
				err = fmt.Errorf("workflow: %w", relErr)
			}
		}()
	}

	if err != nil {
		if errors.Is(err, drone.ErrHandlerPanic) {
			return fmt.Errorf("workflow: %w", err)
		}
		log.Warn("task failed, using fallback result", zap.String("drone_id", d.ID), zap.Error(err))
		res = drone.Fallback(d.Role, d.ID, task, err)
	}
	*out = phaseOutput{task: task, result: res, ok: true}
	return nil
}

func (c *Coordinator) releaseWhenDone(ctx context.Context, p *pool.Pool, d *drone.Drone, running <-chan struct{}, log *zap.Logger) {
	<-running
	if err := p.Release(context.WithoutCancel(ctx), d); err != nil {
		log.Warn("late release failed", zap.String("drone_id", d.ID), zap.Error(err))
	}
}

// runTask applies the task timeout. When the handler is abandoned, either on
// timeout or because ctx ended, the returned channel closes once it returns.
// Only an expired timeout is reported as "timeout"; a cancelled workflow
// yields the context error instead.
func (c *Coordinator) runTask(ctx context.Context, d *drone.Drone, task drone.Task) (drone.Result, <-chan struct{}, error) {
	if c.opts.TaskTimeout <= 0 {
		res, err := d.Handle(ctx, task)
		return res, nil, err
	}
	tctx, cancel := context.WithTimeout(ctx, c.opts.TaskTimeout)

	type outcome struct {
		res drone.Result
		err error
	}
	done := make(chan outcome, 1)
	running := make(chan struct{})
	go func() {
		defer close(running)
		defer cancel()
		res, err := d.Handle(tctx, task)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, nil, o.err
	case <-tctx.Done():
		if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			metrics.TaskTimeouts.WithLabelValues(string(d.Role)).Inc()
			return drone.Fallback(d.Role, d.ID, task, errTaskTimeout), running, nil
		}
		return drone.Result{}, running, fmt.Errorf("task cancelled: %w", ctx.Err())
	}
}

func (c *Coordinator) allPools() []*pool.Pool {
	var out []*pool.Pool
	for _, p := range []*pool.Pool{c.pools.Researchers, c.pools.FactCheckers, c.pools.DataAnalysts, c.pools.Workers} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
