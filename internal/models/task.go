package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TaskStatusNew        = "new"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

const (
	TaskPriorityHigh   = "high"
	TaskPriorityMedium = "medium"
	TaskPriorityLow    = "low"
)

type Task struct {
	gorm.Model

	Title       string `gorm:"not null"`
	Description string
	Status      string `gorm:"not null;default:new"`
	Priority    string `gorm:"not null;default:medium"`
	DueDate     *time.Time
	ProjectID   uint `gorm:"not null;index"`
	Notes       string

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
