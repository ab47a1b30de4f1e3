// Package schedule runs configured queries on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/config"
	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Runner executes one workflow to completion.
type Runner interface {
	ProcessWorkflow(ctx context.Context, query string) *workflow.Record
}

// Scheduler owns a cron instance with one entry per configured schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New validates every schedule and registers it. Nothing fires until Run.
func New(schedules []config.ScheduleConfig, runner Runner, log *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("schedule: runner is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(cronParser)),
		runner:  runner,
		log:     log,
		running: make(map[string]bool),
	}
	seen := make(map[string]bool, len(schedules))
	for _, sc := range schedules {
		if sc.Name == "" {
			return nil, fmt.Errorf("schedule: name is required")
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("schedule: duplicate name %q", sc.Name)
		}
		seen[sc.Name] = true
		if strings.TrimSpace(sc.Query) == "" {
			return nil, fmt.Errorf("schedule %s: query is required", sc.Name)
		}
		if _, err := s.cron.AddJob(sc.Cron, s.job(sc)); err != nil {
			return nil, fmt.Errorf("schedule %s: parse %q: %w", sc.Name, sc.Cron, err)
		}
	}
	return s, nil
}

// Len reports the number of registered schedules.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Run starts the cron loop and blocks until ctx is cancelled. In-flight
// workflows are allowed to finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// job returns the cron callback for one schedule. A firing is skipped while
// the previous run of the same schedule is still in flight.
func (s *Scheduler) job(sc config.ScheduleConfig) cron.FuncJob {
	return func() {
		if !s.begin(sc.Name) {
			s.log.Warn("schedule still running, skipping", zap.String("schedule", sc.Name))
			return
		}
		defer s.end(sc.Name)

		rec := s.runner.ProcessWorkflow(context.Background(), sc.Query)
		s.log.Info("scheduled workflow finished",
			zap.String("schedule", sc.Name),
			zap.String("workflow_id", rec.ID),
			zap.String("status", string(rec.Status)),
			zap.Float64("confidence", rec.FinalConfidence))
	}
}

func (s *Scheduler) begin(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) end(name string) {
	s.mu.Lock()
	delete(s.running, name)
	s.mu.Unlock()
}

// NextRun returns the next fire time of a 5-field cron expression after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	return sched.Next(from), nil
}
