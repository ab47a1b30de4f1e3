package drone

import (
	"context"
	"fmt"
	"strings"

	"github.com/KramerO/ollama-flow-sub002/internal/llm"
	"github.com/KramerO/ollama-flow-sub002/internal/metrics"
	"github.com/KramerO/ollama-flow-sub002/internal/parse"
)

// Neutral values stand in for fields a result leaves unset.
const (
	NeutralConfidence = 0.5
	NeutralScore      = 5.0
)

// PassingScore is the lowest 0-10 score that counts as a passed validation
// when the backend does not state a verdict.
const PassingScore = 5.0

// Researcher investigates the query from one angle.
type Researcher struct {
	Backend llm.Backend
}

// Handle never returns an error for a backend failure; it reports the failure
// as a zero-confidence result instead.
func (r *Researcher) Handle(ctx context.Context, droneID string, task Task) (Result, error) {
	if task.Query == "" {
		return Result{}, fmt.Errorf("researcher: query is required")
	}
	res := &ResearchResult{DroneID: droneID, Angle: task.Angle}
	if r.Backend == nil {
		res.ResearchData = fmt.Sprintf("no backend configured; %s research on %q skipped", task.Angle, task.Query)
		return Result{Research: res}, nil
	}

	text, err := r.Backend.Complete(ctx, researchPrompt(task))
	if err != nil {
		metrics.BackendFailures.WithLabelValues(string(RoleResearcher)).Inc()
		return Fallback(RoleResearcher, droneID, task, err), nil
	}

	res.ResearchData = strings.TrimSpace(text)
	if obj, ok := parse.Extract(text); ok {
		if c, ok := obj.Float("confidence"); ok {
			res.Confidence = floatPtr(parse.Clamp(c, 0, 1))
		}
		if data, ok := obj.String("research_data"); ok && data != "" {
			res.ResearchData = data
		}
	}
	return Result{Research: res}, nil
}

func researchPrompt(task Task) string {
	return fmt.Sprintf(`You are a research drone. Research the topic below from a %s perspective.

Topic: %s

Reply with a JSON object: {"research_data": "<findings>", "confidence": <0.0-1.0>}`, task.Angle, task.Query)
}

// FactChecker validates one research result against the original query.
type FactChecker struct {
	Backend llm.Backend
}

// Handle scores the research on a 0-10 scale. Backend failures become a
// failed validation with score 0.
func (f *FactChecker) Handle(ctx context.Context, droneID string, task Task) (Result, error) {
	if task.Research == nil {
		return Result{}, fmt.Errorf("fact checker: research result is required")
	}
	res := &FactCheckResult{DroneID: droneID, ResearchDroneID: task.Research.DroneID}
	if f.Backend == nil {
		res.ValidationPassed = NeutralScore >= PassingScore
		res.Validation.Notes = "no backend configured; validation skipped"
		return Result{FactCheck: res}, nil
	}

	text, err := f.Backend.Complete(ctx, factCheckPrompt(task))
	if err != nil {
		metrics.BackendFailures.WithLabelValues(string(RoleFactChecker)).Inc()
		return Fallback(RoleFactChecker, droneID, task, err), nil
	}

	res.Validation.Notes = strings.TrimSpace(text)
	effective := NeutralScore
	verdictSet := false
	if obj, ok := parse.Extract(text); ok {
		if s, ok := obj.Float("overall_validation_score"); ok {
			s = parse.Clamp(s, 0, 10)
			res.Validation.OverallScore = &s
			effective = s
		}
		if passed, ok := obj.Bool("validation_passed"); ok {
			res.ValidationPassed = passed
			verdictSet = true
		}
		res.Validation.Issues = obj.Strings("issues")
		if notes, ok := obj.String("notes"); ok {
			res.Validation.Notes = notes
		}
	}
	if !verdictSet {
		res.ValidationPassed = effective >= PassingScore
	}
	return Result{FactCheck: res}, nil
}

func factCheckPrompt(task Task) string {
	return fmt.Sprintf(`You are a fact-checking drone. Validate the research below for the query %q.

Research (%s angle):
%s

Reply with a JSON object: {"validation_passed": true|false, "overall_validation_score": <0-10>, "issues": ["..."], "notes": "..."}`,
		task.Query, task.Research.Angle, task.Research.ResearchData)
}

// DataAnalyst synthesizes a research result and its validation.
type DataAnalyst struct {
	Backend llm.Backend
}

// Handle returns a summary, recommendations and a final confidence. Backend
// failures become a zero-confidence analysis.
func (a *DataAnalyst) Handle(ctx context.Context, droneID string, task Task) (Result, error) {
	if task.Research == nil || task.Validation == nil {
		return Result{}, fmt.Errorf("data analyst: research and validation are required")
	}
	res := &AnalysisResult{DroneID: droneID, Analysis: AnalysisDetail{Recommendations: []string{}}}
	if a.Backend == nil {
		res.Analysis.Summary = fmt.Sprintf("no backend configured; analysis of %q skipped", task.Query)
		return Result{Analysis: res}, nil
	}

	text, err := a.Backend.Complete(ctx, analysisPrompt(task))
	if err != nil {
		metrics.BackendFailures.WithLabelValues(string(RoleDataAnalyst)).Inc()
		return Fallback(RoleDataAnalyst, droneID, task, err), nil
	}

	res.Analysis.Summary = strings.TrimSpace(text)
	if obj, ok := parse.Extract(text); ok {
		if c, ok := obj.Float("final_confidence"); ok {
			res.FinalConfidence = floatPtr(parse.Clamp(c, 0, 1))
		}
		if s, ok := obj.String("summary"); ok && s != "" {
			res.Analysis.Summary = s
		}
		if recs := obj.Strings("recommendations"); recs != nil {
			res.Analysis.Recommendations = recs
		}
	}
	return Result{Analysis: res}, nil
}

func analysisPrompt(task Task) string {
	score := "unscored"
	if s := task.Validation.Validation.OverallScore; s != nil {
		score = fmt.Sprintf("%.1f/10", *s)
	}
	return fmt.Sprintf(`You are a data analyst drone. Analyze the validated research for the query %q.

Research (%s angle):
%s

Validation: passed=%t, score=%s

Reply with a JSON object: {"summary": "...", "recommendations": ["..."], "final_confidence": <0.0-1.0>}`,
		task.Query, task.Research.Angle, task.Research.ResearchData, task.Validation.ValidationPassed, score)
}

// Worker forwards an arbitrary prompt to the backend.
type Worker struct {
	Backend llm.Backend
}

// Handle returns the raw completion. Unlike the pipeline roles, a worker
// reports backend failures as errors; its caller is a mailbox sender that
// receives an error reply.
func (w *Worker) Handle(ctx context.Context, droneID string, task Task) (Result, error) {
	prompt := task.Prompt
	if prompt == "" {
		prompt = task.Query
	}
	if prompt == "" {
		return Result{}, fmt.Errorf("worker: prompt is required")
	}
	if w.Backend == nil {
		return Result{}, llm.ErrNoBackend
	}
	text, err := w.Backend.Complete(ctx, prompt)
	if err != nil {
		metrics.BackendFailures.WithLabelValues(string(RoleWorker)).Inc()
		return Result{}, fmt.Errorf("worker: %w", err)
	}
	return Result{Worker: &WorkerResult{DroneID: droneID, Output: text}}, nil
}
