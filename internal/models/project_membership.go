package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProjectRoleManager   = "manager"
	ProjectRoleDeveloper = "developer"
	ProjectRoleTester    = "tester"
)

// ProjectMembership is the Project<->User pivot. Its DeletedAt mirrors the
// soft-delete state of the parent project: project deletion trashes every
// membership row, project restoration revives them. A user holds at most one
// role per project.
type ProjectMembership struct {
	gorm.Model

	ProjectID         uint   `gorm:"not null;uniqueIndex:idx_project_user"`
	UserID            uint   `gorm:"not null;uniqueIndex:idx_project_user"`
	Role              string `gorm:"not null"`
	ContributionHours int    `gorm:"not null;default:0"`
	LastActivity      *time.Time

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
