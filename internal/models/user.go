package models

import "gorm.io/gorm"

const (
	GlobalRoleAdmin = "admin"
	GlobalRoleUser  = "user"
)

type User struct {
	gorm.Model

	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:user"`

	// Relationships
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

func (u *User) IsAdmin() bool {
	return u.Role == GlobalRoleAdmin
}
