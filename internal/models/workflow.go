package models

import "time"

// Workflow is the persisted record of one research → validation → analysis run.
// The phase result columns hold JSON arrays.
type Workflow struct {
	ID              string  `gorm:"primaryKey;size:36"`
	Query           string  `gorm:"type:text;not null"`
	ResearchResult  string  `gorm:"type:text"`
	FactCheckResult string  `gorm:"type:text"`
	AnalysisResult  string  `gorm:"type:text"`
	FinalConfidence float64 `gorm:"default:0"`
	Status          string  `gorm:"size:16;index"`
	Phase           string  `gorm:"size:16"`
	Error           string  `gorm:"type:text"`
	CreatedAt       time.Time
	CompletedAt     *time.Time
}
