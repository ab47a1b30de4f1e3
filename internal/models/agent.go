package models

import "time"

// Agent is the persisted snapshot of a drone and its pool bookkeeping.
type Agent struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:128"`
	Role           string `gorm:"size:16;index"`
	CurrentTask    string `gorm:"size:128"`
	CompletedTasks int    `gorm:"default:0"`
	Active         bool   `gorm:"not null"`
	UpdatedAt      time.Time
}
