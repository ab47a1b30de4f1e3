package drone

import (
	"encoding/json"
	"fmt"
)

// Task is the input to a handler. Which fields are set depends on the role:
// Angle for research, Research for fact checking, Research and Validation for
// analysis, Prompt for generic workers.
type Task struct {
	Query      string           `json:"query"`
	Angle      string           `json:"angle,omitempty"`
	Research   *ResearchResult  `json:"research,omitempty"`
	Validation *FactCheckResult `json:"validation,omitempty"`
	Prompt     string           `json:"prompt,omitempty"`
}

// Result is the output of a handler; exactly one field is set.
type Result struct {
	Research  *ResearchResult  `json:"research,omitempty"`
	FactCheck *FactCheckResult `json:"fact_check,omitempty"`
	Analysis  *AnalysisResult  `json:"analysis,omitempty"`
	Worker    *WorkerResult    `json:"worker,omitempty"`
}

// ResearchResult is a Researcher's answer for one angle. A nil Confidence
// means the backend gave none.
type ResearchResult struct {
	DroneID      string   `json:"drone_id"`
	Angle        string   `json:"angle"`
	Confidence   *float64 `json:"confidence,omitempty"`
	ResearchData string   `json:"research_data"`
	Error        string   `json:"error,omitempty"`
}

// FactCheckResult is a FactChecker's verdict on one research result.
type FactCheckResult struct {
	DroneID          string           `json:"drone_id"`
	ResearchDroneID  string           `json:"research_drone_id"`
	ValidationPassed bool             `json:"validation_passed"`
	Validation       ValidationResult `json:"validation_result"`
	Error            string           `json:"error,omitempty"`
}

// ValidationResult holds the 0-10 validation score and findings.
type ValidationResult struct {
	OverallScore *float64 `json:"overall_validation_score,omitempty"`
	Issues       []string `json:"issues,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// AnalysisResult is a DataAnalyst's synthesis of a (research, validation) pair.
type AnalysisResult struct {
	DroneID         string         `json:"drone_id"`
	FinalConfidence *float64       `json:"final_confidence,omitempty"`
	Analysis        AnalysisDetail `json:"analysis_result"`
	Error           string         `json:"error,omitempty"`
}

// AnalysisDetail is the human-facing part of an analysis.
type AnalysisDetail struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// WorkerResult is the raw backend output of a generic task.
type WorkerResult struct {
	DroneID string `json:"drone_id"`
	Output  string `json:"output"`
}

// Fallback returns the result a role reports when its task could not run to
// completion: zero confidence or a failed validation, with cause recorded.
func Fallback(role Role, droneID string, task Task, cause error) Result {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	zero := 0.0
	switch role {
	case RoleResearcher:
		return Result{Research: &ResearchResult{
			DroneID:    droneID,
			Angle:      task.Angle,
			Confidence: &zero,
			Error:      msg,
		}}
	case RoleFactChecker:
		res := &FactCheckResult{
			DroneID:    droneID,
			Validation: ValidationResult{OverallScore: &zero},
			Error:      msg,
		}
		if task.Research != nil {
			res.ResearchDroneID = task.Research.DroneID
		}
		return Result{FactCheck: res}
	case RoleDataAnalyst:
		return Result{Analysis: &AnalysisResult{
			DroneID:         droneID,
			FinalConfidence: &zero,
			Analysis:        AnalysisDetail{Summary: "analysis unavailable: " + msg},
			Error:           msg,
		}}
	default:
		return Result{Worker: &WorkerResult{DroneID: droneID, Output: "error: " + msg}}
	}
}

// EncodeTask serializes a task for a mailbox message.
func EncodeTask(t Task) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("drone: encode task: %w", err)
	}
	return string(data), nil
}

// DecodeTask parses a mailbox message body into a Task.
func DecodeTask(content string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(content), &t); err != nil {
		return Task{}, fmt.Errorf("drone: decode task: %w", err)
	}
	return t, nil
}

// EncodeResult serializes a result for a reply message.
func EncodeResult(r Result) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("drone: encode result: %w", err)
	}
	return string(data), nil
}

// DecodeResult parses a reply message body.
func DecodeResult(content string) (Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return Result{}, fmt.Errorf("drone: decode result: %w", err)
	}
	return r, nil
}

func floatPtr(v float64) *float64 {
	return &v
}
