package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/config"
	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu      sync.Mutex
	queries []string
	block   chan struct{}
}

func (r *countingRunner) ProcessWorkflow(ctx context.Context, query string) *workflow.Record {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	return &workflow.Record{ID: "wf", Query: query, Status: workflow.StatusCompleted}
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

func TestNew_Validation(t *testing.T) {
	runner := &countingRunner{}
	tests := []struct {
		name      string
		schedules []config.ScheduleConfig
		wantErr   string
	}{
		{"missing name", []config.ScheduleConfig{{Cron: "* * * * *", Query: "q"}}, "name is required"},
		{"missing query", []config.ScheduleConfig{{Name: "a", Cron: "* * * * *"}}, "query is required"},
		{"bad cron", []config.ScheduleConfig{{Name: "a", Cron: "every day", Query: "q"}}, "parse"},
		{"six fields", []config.ScheduleConfig{{Name: "a", Cron: "0 * * * * *", Query: "q"}}, "parse"},
		{"duplicate", []config.ScheduleConfig{
			{Name: "a", Cron: "* * * * *", Query: "q"},
			{Name: "a", Cron: "0 * * * *", Query: "q"},
		}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.schedules, runner, nil)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := New(nil, nil, nil)
	assert.ErrorContains(t, err, "runner is required")
}

func TestNew_Registers(t *testing.T) {
	s, err := New([]config.ScheduleConfig{
		{Name: "hourly", Cron: "0 * * * *", Query: "market trends"},
		{Name: "daily", Cron: "30 6 * * *", Query: "weather"},
	}, &countingRunner{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestJob_RunsQuery(t *testing.T) {
	runner := &countingRunner{}
	s, err := New(nil, runner, nil)
	require.NoError(t, err)

	s.job(config.ScheduleConfig{Name: "a", Query: "market trends"})()
	assert.Equal(t, []string{"market trends"}, runner.queries)
}

func TestJob_SkipsOverlappingRun(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	s, err := New(nil, runner, nil)
	require.NoError(t, err)
	job := s.job(config.ScheduleConfig{Name: "a", Query: "q"})

	done := make(chan struct{})
	go func() {
		job()
		close(done)
	}()
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

	job()
	assert.Equal(t, 1, runner.count(), "second firing skipped while first in flight")

	close(runner.block)
	<-done
	runner.block = nil
	job()
	assert.Equal(t, 2, runner.count())
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New([]config.ScheduleConfig{{Name: "a", Cron: "0 0 1 1 *", Query: "q"}}, &countingRunner{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2025, 3, 10, 8, 15, 0, 0, time.UTC)
	next, err := NextRun("30 9 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), next)

	next, err = NextRun("* * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(time.Minute), next)

	_, err = NextRun("not valid", from)
	assert.Error(t, err)
}
