package workflow

import (
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
)

// Status is the externally visible workflow outcome.
type Status string

// Workflow statuses.
const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// State is the coordinator's position in the pipeline.
type State string

// Pipeline states, in order.
const (
	StateInitialized State = "initialized"
	StateResearch    State = "research"
	StateFactCheck   State = "fact_check"
	StateAnalysis    State = "analysis"
	StateScoring     State = "scoring"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Record is one workflow run. Only the coordinator that created it mutates
// it; it is terminal once Status is completed or failed.
type Record struct {
	ID              string                  `json:"id"`
	Query           string                  `json:"original_query"`
	Research        []drone.ResearchResult  `json:"research_result"`
	FactCheck       []drone.FactCheckResult `json:"fact_check_result"`
	Analysis        []drone.AnalysisResult  `json:"analysis_result"`
	FinalConfidence float64                 `json:"final_confidence_score"`
	Status          Status                  `json:"status"`
	State           State                   `json:"state"`
	CreatedAt       time.Time               `json:"created_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	Error           string                  `json:"error,omitempty"`
}

func newRecord(id, query string, now time.Time) *Record {
	return &Record{
		ID:        id,
		Query:     query,
		Research:  []drone.ResearchResult{},
		FactCheck: []drone.FactCheckResult{},
		Analysis:  []drone.AnalysisResult{},
		Status:    StatusInProgress,
		State:     StateInitialized,
		CreatedAt: now,
	}
}

func (r *Record) complete(now time.Time) {
	r.Status = StatusCompleted
	r.State = StateCompleted
	r.CompletedAt = &now
}

// fail keeps whatever phase results were already collected.
func (r *Record) fail(err error, now time.Time) {
	r.Status = StatusFailed
	r.State = StateFailed
	r.Error = err.Error()
	r.CompletedAt = &now
}

// Terminal reports whether the record has reached completed or failed.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
