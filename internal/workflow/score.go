package workflow

import (
	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/parse"
)

// Phase weights in the final confidence score.
const (
	ResearchWeight  = 0.3
	FactCheckWeight = 0.4
	AnalysisWeight  = 0.3
)

// Score is the weighted mean of per-result confidences: research confidence,
// fact-check score scaled to [0,1], and analysis confidence. Unset fields
// count as neutral. With no results at all the score is 0.
func Score(research []drone.ResearchResult, checks []drone.FactCheckResult, analyses []drone.AnalysisResult) float64 {
	var total, weight float64

	for _, r := range research {
		c := drone.NeutralConfidence
		if r.Confidence != nil {
			c = *r.Confidence
		}
		total += c * ResearchWeight
		weight += ResearchWeight
	}
	for _, f := range checks {
		s := drone.NeutralScore
		if f.Validation.OverallScore != nil {
			s = *f.Validation.OverallScore
		}
		total += s / 10 * FactCheckWeight
		weight += FactCheckWeight
	}
	for _, a := range analyses {
		c := drone.NeutralConfidence
		if a.FinalConfidence != nil {
			c = *a.FinalConfidence
		}
		total += c * AnalysisWeight
		weight += AnalysisWeight
	}

	if weight == 0 {
		return 0
	}
	return parse.Clamp(total/weight, 0, 1)
}
